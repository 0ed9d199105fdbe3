package projector

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CSVDestination projects tables as one CSV file per table under a
// directory (DESTINATION_KIND=csv, DESTINATION_ID=<dir>). No external
// service is involved, so "last modified" is the file's mtime.
type CSVDestination struct {
	dir string
}

// NewCSVDestination ensures dir exists and returns a destination
// writing <dir>/<table>.csv files.
func NewCSVDestination(dir string) (*CSVDestination, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv destination dir %s: %w", dir, err)
	}
	return &CSVDestination{dir: dir}, nil
}

func (d *CSVDestination) path(table string) string {
	return filepath.Join(d.dir, table+".csv")
}

// ReplaceTable writes the whole table to a temp file and renames it
// into place, so readers never observe a half-written file.
func (d *CSVDestination) ReplaceTable(_ context.Context, table string, header []string, rows [][]string) error {
	return d.writeAll(table, header, rows)
}

func (d *CSVDestination) writeAll(table string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(d.dir, table+"-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", table, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header for %s: %w", table, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row for %s: %w", table, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", table, err)
	}

	if err := os.Rename(tmp.Name(), d.path(table)); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	return nil
}

// readAll loads the current file, returning nil header when the table
// does not exist yet.
func (d *CSVDestination) readAll(table string) (header []string, rows [][]string, modTime time.Time, err error) {
	path := d.path(table)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil, time.Time{}, nil
	}
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, info.ModTime(), nil
	}
	return all[0], all[1:], info.ModTime(), nil
}

// ReadRow scans the table for the row whose first column equals
// recordID.
func (d *CSVDestination) ReadRow(_ context.Context, table, recordID string) ([]string, time.Time, bool, error) {
	_, rows, modTime, err := d.readAll(table)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == recordID {
			return row, modTime, true, nil
		}
	}
	return nil, modTime, false, nil
}

// UpsertRow replaces the row keyed by recordID, or appends it, then
// rewrites the file atomically.
func (d *CSVDestination) UpsertRow(_ context.Context, table, recordID string, header []string, row []string) error {
	existingHeader, rows, _, err := d.readAll(table)
	if err != nil {
		return err
	}
	if existingHeader == nil {
		existingHeader = header
	}

	replaced := false
	for i, r := range rows {
		if len(r) > 0 && r[0] == recordID {
			rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, row)
	}
	return d.writeAll(table, existingHeader, rows)
}

// DeleteRow removes the row keyed by recordID if present.
func (d *CSVDestination) DeleteRow(_ context.Context, table, recordID string) error {
	header, rows, _, err := d.readAll(table)
	if err != nil {
		return err
	}
	if header == nil {
		return nil
	}

	kept := rows[:0]
	for _, r := range rows {
		if len(r) > 0 && r[0] == recordID {
			continue
		}
		kept = append(kept, r)
	}
	return d.writeAll(table, header, kept)
}
