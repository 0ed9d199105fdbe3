// Command bdcore runs the ingestion/enrichment/persistence/sync core:
// it acquires the single-instance lock, opens the encrypted store,
// authenticates against Telegram, and hands periodic work to the
// scheduler until signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bdcore/internal/config"
	"bdcore/internal/crypto"
	"bdcore/internal/enrich"
	"bdcore/internal/ingest"
	"bdcore/internal/projector"
	"bdcore/internal/scheduler"
	"bdcore/internal/store"

	"go.uber.org/zap"
)

// Exit codes, part of the external interface for wrapping CLIs.
const (
	exitOK             = 0
	exitConfig         = 2
	exitAlreadyRunning = 3
	exitAuthRequired   = 4
	exitSchemaAhead    = 5
	exitInternal       = 10
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		envFile = flag.String("env", ".env", "optional .env file to load before reading the environment")
		force   = flag.Bool("force", false, "take the single-instance lock even if another process holds it")
		login   = flag.Bool("login", false, "enable the interactive first-run Telegram login (reads the code from stdin)")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bdcore: %v\n", err)
		return exitConfig
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bdcore: build logger: %v\n", err)
		return exitConfig
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runCore(ctx, cfg, *force, *login, log)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("shutdown complete")
		return exitOK
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		log.Error("another instance is running", zap.Error(err))
		return exitAlreadyRunning
	case errors.Is(err, ingest.ErrAuthRequired):
		log.Error("telegram login required, re-run with -login", zap.Error(err))
		return exitAuthRequired
	case errors.Is(err, store.ErrSchemaAhead):
		log.Error("database written by a newer binary", zap.Error(err))
		return exitSchemaAhead
	default:
		log.Error("unrecoverable error", zap.Error(err))
		return exitInternal
	}
}

func runCore(ctx context.Context, cfg *config.Config, force, login bool, log *zap.Logger) error {
	lock, err := scheduler.AcquireLock(cfg.DataDir, force, log)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(filepath.Join(cfg.DataDir, "core.db"), log)
	if err != nil {
		return err
	}
	defer st.Close()

	key, err := crypto.LoadKey("", cfg.FernetKey, cfg.DataDir, log)
	if err != nil {
		return err
	}
	aead, err := crypto.New(key)
	if err != nil {
		return err
	}

	tg := ingest.NewTelegramClient(cfg.TelegramAPIID, cfg.TelegramAPIHash,
		filepath.Join(cfg.DataDir, "core.session"), log)
	if login {
		tg.EnableInteractiveAuth(os.Stdin)
	}

	ingestor := ingest.New(tg, st, aead, cfg.SyncLimit, log)
	enricher := enrich.New(st, aead, log, nil)

	dest, filter, err := buildDestination(ctx, cfg, log)
	if err != nil {
		return err
	}
	var proj *projector.Projector
	if dest != nil {
		proj = projector.New(st, dest, filter, log, nil)
	}

	syncHour, syncMinute, err := cfg.ParseSyncTime()
	if err != nil {
		return err
	}

	funcs := scheduler.Funcs{
		Ingest: func(ctx context.Context) error {
			return ingestor.Run(ctx, func(p ingest.Progress) {
				log.Info("dialog ingested",
					zap.Int64("chat_id", p.ChatID),
					zap.String("title", p.Title),
					zap.Int("fetched", p.Fetched))
			})
		},
		Enrich: func(ctx context.Context) error {
			_, err := enricher.Run(ctx)
			return err
		},
	}
	if proj != nil {
		funcs.Sync = proj.IncrementalSync
	}
	funcs.DailyCycle = func(ctx context.Context) error {
		if err := backupStore(st, cfg.DataDir, log); err != nil {
			return err
		}
		if err := funcs.Ingest(ctx); err != nil {
			return err
		}
		if _, err := enricher.Run(ctx); err != nil {
			return err
		}
		if proj != nil {
			return proj.FullSync(ctx)
		}
		return nil
	}

	sched, err := scheduler.New(funcs, syncHour, syncMinute, log)
	if err != nil {
		return err
	}

	// Kick off one pipeline pass immediately so a fresh start does not
	// idle until the top of the hour.
	sched.Enqueue(scheduler.JobIngest)
	sched.Enqueue(scheduler.JobEnrich)
	if proj != nil {
		sched.Enqueue(scheduler.JobSync)
	}

	return tg.Run(ctx, cfg.TelegramPhone, func(ctx context.Context) error {
		return sched.Run(ctx)
	})
}

func buildDestination(ctx context.Context, cfg *config.Config, log *zap.Logger) (projector.Destination, *projector.FollowUpFilter, error) {
	if cfg.DestinationKind == config.DestinationNone {
		log.Info("no sync destination configured")
		return nil, nil, nil
	}

	filter, err := projector.LoadFollowUpFilter(filepath.Join(cfg.DataDir, projector.FiltersFileName))
	if err != nil {
		return nil, nil, err
	}

	switch cfg.DestinationKind {
	case config.DestinationCSV:
		dest, err := projector.NewCSVDestination(cfg.DestinationID)
		return dest, filter, err
	case config.DestinationSheets:
		dest, err := projector.NewSheetsDestination(ctx, cfg.DestinationID, cfg.ServiceAccountFile, log)
		return dest, filter, err
	default:
		return nil, nil, fmt.Errorf("configuration error: unknown DESTINATION_KIND %q", cfg.DestinationKind)
	}
}

func backupStore(st *store.Store, dataDir string, log *zap.Logger) error {
	dir := filepath.Join(dataDir, "backups")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("core-%s.db", time.Now().Format("20060102-150405")))
	if err := st.BackupTo(path); err != nil {
		return err
	}
	log.Info("backup written", zap.String("path", path))
	return nil
}

func buildLogger(level config.LogLevel) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	switch level {
	case config.LogDebug:
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case config.LogWarn:
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case config.LogError:
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zcfg.Build()
}
