// Package projector renders Store rows into flat tabular form and
// pushes them to an external destination, either wholesale (full
// sync) or task-by-task (incremental sync with the SyncTask queue).
package projector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAuthorization marks a destination rejecting our credentials.
// Unlike transport errors it is not retried: the projector suppresses
// further sync work until the operator acknowledges.
var ErrAuthorization = errors.New("projector: destination authorization failed")

// ConflictError reports a destination row that was edited out-of-band
// since the last successful sync. The projector never overwrites it;
// the task lands in the conflict state for operator review.
type ConflictError struct {
	LastModified time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination row edited externally, last modified %s",
		e.LastModified.UTC().Format("2006-01-02 15:04:05"))
}

// Destination is one external tabular sink. Implementations exist for
// Google Sheets worksheets and local CSV files; both identify a row by
// the record ID in its first column.
type Destination interface {
	// ReplaceTable atomically replaces the table's full content,
	// header row included.
	ReplaceTable(ctx context.Context, table string, header []string, rows [][]string) error

	// ReadRow returns the current destination row for recordID, with
	// the destination's best notion of when it was last modified.
	// found is false when the row does not exist yet.
	ReadRow(ctx context.Context, table, recordID string) (row []string, modTime time.Time, found bool, err error)

	// UpsertRow writes one row, creating the table/header if needed.
	UpsertRow(ctx context.Context, table, recordID string, header []string, row []string) error

	// DeleteRow removes the row for recordID if present.
	DeleteRow(ctx context.Context, table, recordID string) error
}

// rowHash fingerprints a rendered row. The projector stores it after
// every successful write and compares it against the destination's
// current content to detect external edits.
func rowHash(row []string) string {
	sum := sha256.Sum256([]byte(strings.Join(row, "\x1f")))
	return hex.EncodeToString(sum[:])
}
