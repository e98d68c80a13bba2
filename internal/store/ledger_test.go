package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	now := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	id := uuid.New()
	if err := l.Begin(ctx, id, "abc123"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.RecordOutput(ctx, id, "union", "out/union.parquet", 42); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RecordOutput(ctx, id, "left", "out/left.parquet", 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	// re-recording replaces
	if err := l.RecordOutput(ctx, id, "union", "out/union.csv", 41); err != nil {
		t.Fatalf("record: %v", err)
	}

	r, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != StatusRunning || r.InputKey != "abc123" {
		t.Errorf("run = %+v", r)
	}

	now = now.Add(time.Minute)
	if err := l.Finish(ctx, id, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	r, _ = l.Get(ctx, id)
	if r.Status != StatusOK || r.FinishedAt != "2026-02-17T00:01:00Z" {
		t.Errorf("finished run = %+v", r)
	}

	outs, err := l.Outputs(ctx, id)
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("outputs = %+v", outs)
	}
	if outs[0].Name != "left" || outs[1].Name != "union" || outs[1].Rows != 41 || outs[1].Path != "out/union.csv" {
		t.Errorf("outputs = %+v", outs)
	}
}

func TestLedgerFailedRun(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id := uuid.New()
	if err := l.Begin(ctx, id, ""); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.Finish(ctx, id, errors.New("lookup missing")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != StatusFailed || runs[0].Error != "lookup missing" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestLedgerDuplicateRun(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	id := uuid.New()
	if err := l.Begin(ctx, id, ""); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.Begin(ctx, id, ""); err == nil {
		t.Error("expected duplicate run id to fail")
	}
}
