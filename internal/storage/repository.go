package storage

import (
	"errors"
	"time"

	"github.com/hperssn/coindoro/internal/domain"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Repository keeps the append-only interval history. It is never used to
// restore a running session.
type Repository interface {
	SaveRecord(record *SessionRecord) error

	GetRecordsBySession(sessionID string) ([]SessionRecord, error)

	GetRecentRecords(userID string, since time.Time) ([]SessionRecord, error)

	GetStats(userID string) (*Stats, error)

	Close() error
}

type Stats struct {
	FocusSessions   int          `json:"focusSessions"`
	CompletedCount  int          `json:"completedCount"`
	BreaksPurchased int          `json:"breaksPurchased"`
	FocusMs         int64        `json:"focusMs"`
	BreakMs         int64        `json:"breakMs"`
	Earned          domain.Units `json:"earned"`
	Spent           domain.Units `json:"spent"`
	CompletionRate  float64      `json:"completionRate"`
}

// Open returns the repository for driver, or nil for "none".
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "sqlite":
		repo, err := NewSQLiteRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres":
		repo, err := NewPostgresRepository(dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "none", "":
		return nil, nil
	default:
		return nil, ErrUnknownDriver
	}
}

const statsQuery = `
	SELECT
		COALESCE(SUM(CASE WHEN worked_ms > 0 THEN 1 ELSE 0 END), 0) AS focus_sessions,
		COALESCE(SUM(CASE WHEN kind = 'work_finished' THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN kind = 'break_purchased' THEN 1 ELSE 0 END), 0) AS breaks,
		COALESCE(SUM(worked_ms), 0) AS focus_ms,
		COALESCE(SUM(CASE WHEN mode = 'break' THEN actual_ms ELSE 0 END), 0) AS break_ms,
		COALESCE(SUM(earned), 0) AS earned,
		COALESCE(SUM(spent), 0) AS spent
	FROM session_records
	WHERE user_id = %s
`

type scanner interface {
	Scan(dest ...any) error
}

func scanStats(row scanner) (*Stats, error) {
	var stats Stats
	var earned, spent int64

	err := row.Scan(
		&stats.FocusSessions,
		&stats.CompletedCount,
		&stats.BreaksPurchased,
		&stats.FocusMs,
		&stats.BreakMs,
		&earned,
		&spent,
	)
	if err != nil {
		return nil, err
	}

	stats.Earned = domain.Units(earned)
	stats.Spent = domain.Units(spent)
	if stats.FocusSessions > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.FocusSessions) * 100
	}
	return &stats, nil
}

func scanRecord(row scanner) (SessionRecord, error) {
	var record SessionRecord
	var mode string
	var earned, spent int64

	err := row.Scan(
		&record.ID,
		&record.SessionID,
		&record.UserID,
		&record.Kind,
		&mode,
		&record.PlannedMs,
		&record.ActualMs,
		&record.WorkedMs,
		&earned,
		&spent,
		&record.StartedAt,
		&record.EndedAt,
	)
	if err != nil {
		return record, err
	}
	if err := record.Mode.UnmarshalText([]byte(mode)); err != nil {
		return record, err
	}
	record.Earned = domain.Units(earned)
	record.Spent = domain.Units(spent)
	return record, nil
}
