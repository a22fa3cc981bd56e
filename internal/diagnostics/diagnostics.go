// Package diagnostics is the VM's SQL-backed execution trace sink, its
// configuration-and-diagnostics surface, backed by database/sql
// against a pluggable driver. One row is persisted per instruction
// executed when Config.Debug is set.
package diagnostics

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Sink persists a trace_events row per instruction executed; it
// records no other events (function entry/exit, faults). Backed by
// whichever database/sql driver the DSN names; Sink itself is
// driver-agnostic.
type Sink struct {
	db *sql.DB
	mu sync.Mutex
}

// driverFor maps a short backend name to the database/sql driver name
// registered by that backend's blank import above.
func driverFor(backend string) (string, error) {
	switch backend {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "sqlite-pure":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("diagnostics: unsupported backend %q", backend)
	}
}

// Open connects to the diagnostics database named by dsn under the
// given backend, creates the trace_events table if it does not exist,
// and returns a ready-to-use Sink.
func Open(backend, dsn string) (*Sink, error) {
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: failed to open %s: %w", backend, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("diagnostics: failed to ping %s: %w", backend, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Sink{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trace_events (
			run_id      TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			function    TEXT NOT NULL,
			pc          INTEGER NOT NULL,
			opcode      TEXT NOT NULL,
			immediate   INTEGER NOT NULL,
			stack_depth INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("diagnostics: failed to create trace_events: %w", err)
	}
	return nil
}

// RecordInstruction persists one executed instruction. Called from the
// interpreter loop only when Config.Debug is set, so it never runs on
// a hot path that isn't already asking for it.
func (s *Sink) RecordInstruction(runID string, seq int, function string, pc int, opcode string, immediate int32, stackDepth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO trace_events (run_id, seq, function, pc, opcode, immediate, stack_depth, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, function, pc, opcode, immediate, stackDepth, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("diagnostics: failed to record instruction: %w", err)
	}
	return nil
}

// EventsForRun returns every recorded instruction for runID, in
// execution order, for offline inspection of a completed run.
func (s *Sink) EventsForRun(runID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT seq, function, pc, opcode, immediate, stack_depth, recorded_at
		 FROM trace_events WHERE run_id = ? ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Function, &e.PC, &e.OpCode, &e.Immediate, &e.StackDepth, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("diagnostics: failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Event is one row of the trace_events table, surfaced for inspection.
type Event struct {
	Seq        int
	Function   string
	PC         int
	OpCode     string
	Immediate  int32
	StackDepth int
	RecordedAt time.Time
}

// Close releases the underlying database/sql connection pool.
func (s *Sink) Close() error {
	return s.db.Close()
}
