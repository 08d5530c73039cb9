package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_records (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		mode TEXT NOT NULL,
		planned_ms INTEGER NOT NULL,
		actual_ms INTEGER NOT NULL,
		worked_ms INTEGER NOT NULL,
		earned INTEGER NOT NULL,
		spent INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_user ON session_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_records_session ON session_records(session_id);
	CREATE INDEX IF NOT EXISTS idx_records_ended ON session_records(ended_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveRecord(record *SessionRecord) error {
	query := `
		INSERT INTO session_records (id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.UserID,
		string(record.Kind),
		record.Mode.String(),
		record.PlannedMs,
		record.ActualMs,
		record.WorkedMs,
		int64(record.Earned),
		int64(record.Spent),
		record.StartedAt.UTC(),
		record.EndedAt.UTC(),
	)

	return err
}

func (r *SQLiteRepository) GetRecordsBySession(sessionID string) ([]SessionRecord, error) {
	query := `
		SELECT id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at
		FROM session_records
		WHERE session_id = ?
		ORDER BY ended_at DESC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

func (r *SQLiteRepository) GetRecentRecords(userID string, since time.Time) ([]SessionRecord, error) {
	query := `
		SELECT id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at
		FROM session_records
		WHERE user_id = ? AND ended_at >= ?
		ORDER BY ended_at DESC
	`

	rows, err := r.db.Query(query, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

func (r *SQLiteRepository) GetStats(userID string) (*Stats, error) {
	return scanStats(r.db.QueryRow(fmt.Sprintf(statsQuery, "?"), userID))
}

func (r *SQLiteRepository) scanRecords(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
