package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	xerrors "AegisVault/internal/errors"
)

// MySQLStore persists audit events for durable replay. It doubles as a
// Publisher so it can sit behind the journal like any other sink.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens the database and ensures the schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "mysql dsn is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "open mysql")
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "connect to mysql")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS audit_events (
        seq BIGINT UNSIGNED PRIMARY KEY,
        event_type VARCHAR(64) NOT NULL,
        actor VARCHAR(64) NOT NULL DEFAULT '',
        trace_id VARCHAR(36) NOT NULL DEFAULT '',
        occurred_at BIGINT NOT NULL,
        data TEXT,
        INDEX idx_audit_type (event_type),
        INDEX idx_audit_occurred (occurred_at)
)`
	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "init audit_events table")
	}
	return nil
}

// Publish inserts one event. Replayed sequences are ignored so restarts
// that re-publish the tail of the journal stay idempotent.
func (s *MySQLStore) Publish(ctx context.Context, event Event) error {
	dataValue, err := marshalData(event.Data)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "encode event data")
	}
	const stmt = `INSERT IGNORE INTO audit_events
        (seq, event_type, actor, trace_id, occurred_at, data)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		event.Seq, event.Type, event.Actor, event.TraceID, event.At, dataValue,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "insert audit event")
	}
	return nil
}

// List returns up to limit events with seq > sinceSeq, oldest first.
func (s *MySQLStore) List(ctx context.Context, sinceSeq uint64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT seq, event_type, actor, trace_id, occurred_at, data
        FROM audit_events WHERE seq > ? ORDER BY seq ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, sinceSeq, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data sql.NullString
		if err := rows.Scan(&event.Seq, &event.Type, &event.Actor, &event.TraceID, &event.At, &data); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan audit event")
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &event.Data); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "decode event data")
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "iterate audit events")
	}
	return events, nil
}

// LatestSeq returns the highest persisted sequence number, or zero.
func (s *MySQLStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM audit_events`).Scan(&seq); err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "query latest seq")
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Close releases the database handle.
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func marshalData(data map[string]string) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

var _ Publisher = (*MySQLStore)(nil)
