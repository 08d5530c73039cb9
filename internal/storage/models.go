package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/hperssn/coindoro/internal/domain"
)

// SessionRecord is one closed interval of a session: a finished or
// abandoned work countdown, or a break.
type SessionRecord struct {
	ID        string                `json:"id"`
	SessionID string                `json:"sessionId"`
	UserID    string                `json:"userId"`
	Kind      domain.TransitionKind `json:"kind"`
	Mode      domain.Mode           `json:"mode"`
	PlannedMs int64                 `json:"plannedMs"`
	ActualMs  int64                 `json:"actualMs"`
	WorkedMs  int64                 `json:"workedMs"` // time that counted towards rewards
	Earned    domain.Units          `json:"earned"`
	Spent     domain.Units          `json:"spent"`
	StartedAt time.Time             `json:"startedAt"`
	EndedAt   time.Time             `json:"endedAt"`
}

// FromTransition converts a closing transition into a history record.
func FromTransition(sessionID, userID string, t domain.Transition) *SessionRecord {
	actual := t.At.Sub(t.StartedAt)
	if actual < 0 {
		actual = 0
	}

	return &SessionRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		Kind:      t.Kind,
		Mode:      t.From,
		PlannedMs: t.Planned.Milliseconds(),
		ActualMs:  actual.Milliseconds(),
		WorkedMs:  t.Worked.Milliseconds(),
		Earned:    t.Earned,
		Spent:     t.Cost,
		StartedAt: t.StartedAt,
		EndedAt:   t.At,
	}
}
