package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/civicdispatch/core/model"
)

// SQLite stores current records and the audit trail in two tables updated in
// one transaction.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS submission_records (
    issue_id   TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    record     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS submission_rounds (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    issue_id    TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    status      TEXT NOT NULL,
    entry       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS submission_rounds_issue ON submission_rounds (issue_id, id);`

// NewSQLite opens or creates the database at dsn and ensures the schema.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordRound(ctx context.Context, issueID string, res model.DispatchResult) (err error) {
	e := newEntry(issueID, res)
	entry, err := json.Marshal(e)
	if err != nil {
		return err
	}
	record, err := json.Marshal(e.Record())
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	status := e.Result.Status.String()
	ts := e.RecordedAt.UnixNano()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO submission_records (issue_id, status, updated_at, record) VALUES (?, ?, ?, ?)
         ON CONFLICT(issue_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at, record = excluded.record`,
		issueID, status, ts, string(record)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO submission_rounds (issue_id, recorded_at, status, entry) VALUES (?, ?, ?, ?)`,
		issueID, ts, status, string(entry)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) CurrentRecord(ctx context.Context, issueID string) (SubmissionRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM submission_records WHERE issue_id = ?`, issueID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return EmptyRecord(issueID), nil
	}
	if err != nil {
		return SubmissionRecord{}, err
	}
	var rec SubmissionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return SubmissionRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func (s *SQLite) History(ctx context.Context, q Query) ([]RoundEntry, error) {
	var args []any
	query := `SELECT entry FROM submission_rounds WHERE 1=1`
	if q.IssueID != "" {
		query += ` AND issue_id = ?`
		args = append(args, q.IssueID)
	}
	if !q.Start.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND recorded_at <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []RoundEntry{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e RoundEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		if q.Matches(e) {
			res = append(res, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
