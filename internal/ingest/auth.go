package ingest

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrAuthRequired is returned when the stored session is absent or
	// revoked and no interactive code source has been attached; the
	// operator must run an interactive login before scheduled ingestion
	// can proceed.
	ErrAuthRequired = errors.New("ingest: telegram authentication required, run an interactive login first")

	// ErrDialogFailed marks a single dialog that could not be ingested
	// after exhausting retries. The pass continues with the next dialog;
	// the failed one resumes from its watermark on the next run.
	ErrDialogFailed = errors.New("ingest: dialog ingestion failed")
)

// EnableInteractiveAuth attaches r (typically stdin) as the login-code
// source for the first-run handshake. Each line read from r is
// delivered as one code. Without this, an unauthenticated client fails
// with ErrAuthRequired instead of blocking forever on a code that will
// never arrive.
func (c *TelegramClient) EnableInteractiveAuth(r io.Reader) {
	c.interactive = true
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			c.codeCh <- strings.TrimSpace(scanner.Text())
		}
	}()
}
