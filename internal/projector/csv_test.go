package projector

import (
	"context"
	"testing"
)

func TestCSVDestinationRoundTrip(t *testing.T) {
	dest, err := NewCSVDestination(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSVDestination: %v", err)
	}
	ctx := context.Background()
	header := []string{"user_id", "username"}

	if err := dest.ReplaceTable(ctx, "contacts", header, [][]string{
		{"1", "alice"},
		{"2", "bob"},
	}); err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}

	row, _, found, err := dest.ReadRow(ctx, "contacts", "2")
	if err != nil || !found {
		t.Fatalf("ReadRow: found=%v err=%v", found, err)
	}
	if row[1] != "bob" {
		t.Fatalf("row = %v, want bob", row)
	}

	if err := dest.UpsertRow(ctx, "contacts", "2", header, []string{"2", "robert"}); err != nil {
		t.Fatalf("UpsertRow (update): %v", err)
	}
	if err := dest.UpsertRow(ctx, "contacts", "3", header, []string{"3", "carol"}); err != nil {
		t.Fatalf("UpsertRow (append): %v", err)
	}

	row, _, found, err = dest.ReadRow(ctx, "contacts", "2")
	if err != nil || !found || row[1] != "robert" {
		t.Fatalf("after update: row=%v found=%v err=%v", row, found, err)
	}
	if _, _, found, _ = dest.ReadRow(ctx, "contacts", "3"); !found {
		t.Fatal("appended row not found")
	}

	if err := dest.DeleteRow(ctx, "contacts", "1"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if _, _, found, _ = dest.ReadRow(ctx, "contacts", "1"); found {
		t.Fatal("deleted row still present")
	}
}

func TestCSVReadRowOnMissingTable(t *testing.T) {
	dest, err := NewCSVDestination(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSVDestination: %v", err)
	}
	_, _, found, err := dest.ReadRow(context.Background(), "nope", "1")
	if err != nil || found {
		t.Fatalf("missing table: found=%v err=%v", found, err)
	}
}
