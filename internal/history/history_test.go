package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/varbridge/gpioctrl/internal/engine"
)

func openTestRecorder(t *testing.T, retention time.Duration) *Recorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := Open(path, retention)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func transition(at time.Time, varName string, value uint32) engine.Transition {
	return engine.Transition{
		Time:   at,
		Chip:   "gpiochip0",
		Offset: 4,
		Var:    varName,
		Value:  value,
		Source: "signal",
	}
}

// waitForRows polls until the recorder holds want rows for varName.
func waitForRows(t *testing.T, r *Recorder, varName string, want int) []engine.Transition {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := r.Recent(context.Background(), varName, 100)
		if err != nil {
			t.Fatalf("Recent() error: %v", err)
		}
		if len(rows) == want {
			return rows
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d history rows", want)
	return nil
}

func TestRecordAndQuery(t *testing.T) {
	r := openTestRecorder(t, time.Hour)

	base := time.Now()
	r.Record(transition(base, "/HW/GPIO/P4", 1))
	r.Record(transition(base.Add(time.Second), "/HW/GPIO/P4", 0))
	r.Record(transition(base.Add(2*time.Second), "/HW/GPIO/P4", 1))

	rows := waitForRows(t, r, "/HW/GPIO/P4", 3)

	// Newest first.
	if rows[0].Value != 1 || rows[1].Value != 0 || rows[2].Value != 1 {
		t.Errorf("values = %d, %d, %d", rows[0].Value, rows[1].Value, rows[2].Value)
	}
	if !rows[0].Time.After(rows[2].Time) {
		t.Error("rows should be ordered newest first")
	}
	if rows[0].Chip != "gpiochip0" || rows[0].Offset != 4 || rows[0].Source != "signal" {
		t.Errorf("row identity = %+v", rows[0])
	}
}

func TestRecent_FiltersByVariable(t *testing.T) {
	r := openTestRecorder(t, time.Hour)

	now := time.Now()
	r.Record(transition(now, "/HW/GPIO/P4", 1))
	r.Record(transition(now, "/HW/GPIO/P26", 0))

	waitForRows(t, r, "", 2)

	rows, err := r.Recent(context.Background(), "/HW/GPIO/P26", 100)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(rows) != 1 || rows[0].Var != "/HW/GPIO/P26" {
		t.Errorf("filtered rows = %+v", rows)
	}
}

func TestRecent_Limit(t *testing.T) {
	r := openTestRecorder(t, time.Hour)

	now := time.Now()
	for i := 0; i < 10; i++ {
		r.Record(transition(now.Add(time.Duration(i)*time.Second), "/HW/GPIO/P4", uint32(i%2)))
	}
	waitForRows(t, r, "", 10)

	rows, err := r.Recent(context.Background(), "", 3)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestPrune_RemovesExpiredRows(t *testing.T) {
	r := openTestRecorder(t, time.Hour)

	now := time.Now()
	r.Record(transition(now.Add(-2*time.Hour), "/HW/GPIO/P4", 1)) // expired
	r.Record(transition(now, "/HW/GPIO/P4", 0))                   // fresh
	waitForRows(t, r, "", 2)

	if err := r.prune(); err != nil {
		t.Fatalf("prune() error: %v", err)
	}

	rows, err := r.Recent(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows after prune = %d, want 1", len(rows))
	}
	if rows[0].Value != 0 {
		t.Error("the fresh row should survive pruning")
	}
}

func TestPrune_DisabledWithZeroRetention(t *testing.T) {
	r := openTestRecorder(t, 0)

	r.Record(transition(time.Now().Add(-24*time.Hour), "/HW/GPIO/P4", 1))
	waitForRows(t, r, "", 1)

	if err := r.prune(); err != nil {
		t.Fatalf("prune() error: %v", err)
	}
	rows, _ := r.Recent(context.Background(), "", 100)
	if len(rows) != 1 {
		t.Error("zero retention should never prune")
	}
}

func TestClose_FlushesQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := Open(path, time.Hour)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	for i := 0; i < 50; i++ {
		r.Record(transition(time.Now(), "/HW/GPIO/P4", uint32(i%2)))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Reopen and confirm every queued row landed.
	r2, err := Open(path, time.Hour)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer r2.Close()

	rows, err := r2.Recent(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(rows) != 50 {
		t.Errorf("rows after reopen = %d, want 50", len(rows))
	}
}

type silentLogger struct{}

func (silentLogger) Warn(string, ...any) {}

func TestSetLogger_ConcurrentWithRecord(t *testing.T) {
	r := openTestRecorder(t, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			r.SetLogger(silentLogger{})
		}
	}()

	// Flood well past the queue depth so Record exercises the drop
	// path's logger read while SetLogger swaps the field.
	for i := 0; i < 2000; i++ {
		r.Record(transition(time.Now(), "/HW/GPIO/FLOOD", uint32(i%2)))
	}
	<-done
}
