// Package history persists GPIO line transitions to SQLite.
//
// The recorder is an optional sink behind the engine's recorder interface.
// Writes are queued to a background goroutine so a slow disk never stalls
// the event loop; when the queue is full the transition is dropped with a
// warning rather than blocking. Rows older than the retention window are
// pruned periodically.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/varbridge/gpioctrl/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at INTEGER NOT NULL,
	chip        TEXT NOT NULL,
	line        INTEGER NOT NULL,
	var         TEXT NOT NULL,
	value       INTEGER NOT NULL,
	source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_recorded_at ON transitions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_transitions_var ON transitions(var, recorded_at);
`

const (
	queueDepth    = 256
	pruneInterval = time.Hour
)

// Logger is the minimal logging interface the recorder uses.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder writes line transitions to a SQLite database.
type Recorder struct {
	db        *sql.DB
	retention time.Duration

	logger   Logger
	loggerMu sync.RWMutex

	queue chan engine.Transition
	done  chan struct{}
}

// Open opens (creating if needed) the transition database at path.
//
// Parameters:
//   - path: SQLite database file path
//   - retention: how long rows are kept; zero disables pruning
func Open(path string, retention time.Duration) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// One writer goroutine owns all inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	r := &Recorder{
		db:        db,
		retention: retention,
		logger:    noopLogger{},
		queue:     make(chan engine.Transition, queueDepth),
		done:      make(chan struct{}),
	}
	go r.writeLoop()

	return r, nil
}

// SetLogger sets a logger for dropped-write warnings.
// Safe to call while the write loop is running.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// getLogger returns the current logger.
func (r *Recorder) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Record queues one transition. Never blocks; the transition is dropped when
// the queue is full.
func (r *Recorder) Record(t engine.Transition) {
	select {
	case r.queue <- t:
	default:
		r.getLogger().Warn("history queue full, transition dropped",
			"chip", t.Chip, "line", t.Offset)
	}
}

// Close flushes queued transitions and closes the database.
func (r *Recorder) Close() error {
	close(r.queue)
	<-r.done
	return r.db.Close()
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case t, ok := <-r.queue:
			if !ok {
				return
			}
			r.insert(t)
		case <-ticker.C:
			if err := r.prune(); err != nil {
				r.getLogger().Warn("history pruning failed", "error", err)
			}
		}
	}
}

func (r *Recorder) insert(t engine.Transition) {
	_, err := r.db.Exec(
		`INSERT INTO transitions (recorded_at, chip, line, var, value, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Time.UnixNano(), t.Chip, t.Offset, t.Var, t.Value, t.Source,
	)
	if err != nil {
		r.getLogger().Warn("history insert failed",
			"chip", t.Chip, "line", t.Offset, "error", err)
	}
}

// prune deletes rows older than the retention window.
func (r *Recorder) prune() error {
	if r.retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-r.retention).UnixNano()
	_, err := r.db.Exec(`DELETE FROM transitions WHERE recorded_at < ?`, cutoff)
	return err
}

// Recent returns up to limit transitions for a variable, newest first. An
// empty varName matches every variable.
func (r *Recorder) Recent(ctx context.Context, varName string, limit int) ([]engine.Transition, error) {
	query := `SELECT recorded_at, chip, line, var, value, source
		  FROM transitions`
	args := []any{}
	if varName != "" {
		query += ` WHERE var = ?`
		args = append(args, varName)
	}
	query += ` ORDER BY recorded_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []engine.Transition
	for rows.Next() {
		var t engine.Transition
		var nanos int64
		if err := rows.Scan(&nanos, &t.Chip, &t.Offset, &t.Var, &t.Value, &t.Source); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		t.Time = time.Unix(0, nanos)
		out = append(out, t)
	}
	return out, rows.Err()
}
