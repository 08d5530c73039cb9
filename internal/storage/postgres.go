package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: create tables: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_records (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		mode TEXT NOT NULL,
		planned_ms BIGINT NOT NULL,
		actual_ms BIGINT NOT NULL,
		worked_ms BIGINT NOT NULL,
		earned BIGINT NOT NULL,
		spent BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_user ON session_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_records_session ON session_records(session_id);
	CREATE INDEX IF NOT EXISTS idx_records_ended ON session_records(ended_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) SaveRecord(record *SessionRecord) error {
	query := `
		INSERT INTO session_records (id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
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
		record.StartedAt,
		record.EndedAt,
	)

	return err
}

func (r *PostgresRepository) GetRecordsBySession(sessionID string) ([]SessionRecord, error) {
	query := `
		SELECT id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at
		FROM session_records
		WHERE session_id = $1
		ORDER BY ended_at DESC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

func (r *PostgresRepository) GetRecentRecords(userID string, since time.Time) ([]SessionRecord, error) {
	query := `
		SELECT id, session_id, user_id, kind, mode, planned_ms, actual_ms, worked_ms, earned, spent, started_at, ended_at
		FROM session_records
		WHERE user_id = $1 AND ended_at >= $2
		ORDER BY ended_at DESC
	`

	rows, err := r.db.Query(query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

func (r *PostgresRepository) GetStats(userID string) (*Stats, error) {
	return scanStats(r.db.QueryRow(fmt.Sprintf(statsQuery, "$1"), userID))
}

func (r *PostgresRepository) scanRecords(rows *sql.Rows) ([]SessionRecord, error) {
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

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
