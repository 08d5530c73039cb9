package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/hperssn/coindoro/internal/clock"
)

const (
	DefaultSessionLength  = 25 * time.Minute
	DefaultMinutesPerUnit = 1
)

type Settings struct {
	SessionLength  time.Duration
	MinutesPerUnit int
}

func DefaultSettings() Settings {
	return Settings{
		SessionLength:  DefaultSessionLength,
		MinutesPerUnit: DefaultMinutesPerUnit,
	}
}

func (s Settings) Validate() error {
	if s.SessionLength <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

func (s Settings) Rate() Rate {
	return Rate{MinutesPerUnit: s.MinutesPerUnit}
}

// Session is the whole mutable state of one focus timer: countdown,
// accrual, ledger and mode. Every mutation goes through its transition
// methods. A Session is not safe for concurrent use; callers serialize
// access (runner.Runner does).
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	clock    clock.Clock
	settings Settings

	mode      Mode
	countdown Countdown
	accrual   Accrual
	ledger    Ledger
	finished  bool

	startedAt time.Time
	planned   time.Duration

	shopOpen   bool
	shopResume bool

	projection Projection
	generation uint64
	pending    []Transition
}

// NewSession opens in Work mode with a fresh countdown of the configured
// session length.
func NewSession(id, userID string, settings Settings, clk clock.Clock, autoStart bool) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	if clk == nil {
		clk = clock.Real{}
	}

	now := clk.Now()
	s := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		clock:     clk,
		settings:  settings,
	}
	s.startWork(now, autoStart)
	return s, nil
}

type Snapshot struct {
	SessionID      string    `json:"sessionId"`
	Mode           Mode      `json:"mode"`
	RemainingMs    int64     `json:"remainingMs"`
	Deadline       time.Time `json:"deadline"`
	Paused         bool      `json:"paused"`
	Finished       bool      `json:"finished"`
	Accruing       bool      `json:"isAccruing"`
	Balance        Units     `json:"balance"`
	SessionAccrued Units     `json:"sessionAccrued"`
	MaxSession     Units     `json:"maxSessionAccrual"`
	ShopOpen       bool      `json:"shopOpen"`
	SessionMinutes int       `json:"sessionLengthMinutes"`
	MinutesPerUnit int       `json:"minutesPerRewardUnit"`
	Generation     uint64    `json:"generation"`
	At             time.Time `json:"at"`
}

func (s Snapshot) Remaining() time.Duration {
	return time.Duration(s.RemainingMs) * time.Millisecond
}

// Sample runs one reconciliation pass at now: it credits work time, then
// reacts to the countdown reaching zero, and returns the resulting view.
// Sampling twice at the same instant yields the same snapshot.
func (s *Session) Sample(now time.Time) Snapshot {
	s.reconcile(now)
	return s.Peek(now)
}

// Peek reads the state at now without reconciling.
func (s *Session) Peek(now time.Time) Snapshot {
	return Snapshot{
		SessionID:      s.ID,
		Mode:           s.mode,
		RemainingMs:    s.countdown.Remaining(now).Milliseconds(),
		Deadline:       s.countdown.Deadline(),
		Paused:         s.countdown.Paused(),
		Finished:       s.finished,
		Accruing:       s.accruing(now),
		Balance:        s.ledger.Balance(),
		SessionAccrued: s.accrual.Accrued(),
		MaxSession:     s.accrual.MaxSession(),
		ShopOpen:       s.shopOpen,
		SessionMinutes: int(s.settings.SessionLength / time.Minute),
		MinutesPerUnit: s.settings.MinutesPerUnit,
		Generation:     s.generation,
		At:             now,
	}
}

// Projected is the display-smoothed balance at now.
func (s *Session) Projected(now time.Time) Units {
	return s.projection.At(now)
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) Balance() Units {
	return s.ledger.Balance()
}

func (s *Session) Settings() Settings {
	return s.settings
}

func (s *Session) Generation() uint64 {
	return s.generation
}

// DrainTransitions hands over the transitions recorded since the last call.
func (s *Session) DrainTransitions() []Transition {
	out := s.pending
	s.pending = nil
	return out
}

// StartWork begins a new work session of the given length, from any state.
func (s *Session) StartWork(length time.Duration, autoStart bool) error {
	if length <= 0 {
		return ErrInvalidDuration
	}
	now := s.clock.Now()
	s.reconcile(now)
	if s.mode == ModeBreak {
		s.closeBreak(now, BreakEnded)
	}
	s.settings.SessionLength = length
	s.startWork(now, autoStart)
	return nil
}

func (s *Session) Pause() error {
	if s.mode != ModeWork {
		return ErrInvalidMode
	}
	now := s.clock.Now()
	s.reconcile(now)
	if s.finished {
		return ErrInvalidMode
	}
	if s.countdown.Paused() {
		return nil
	}
	s.pause(now)
	return nil
}

func (s *Session) Resume() error {
	if s.mode != ModeWork {
		return ErrInvalidMode
	}
	now := s.clock.Now()
	s.reconcile(now)
	if s.finished {
		return ErrInvalidMode
	}
	if !s.countdown.Paused() {
		return nil
	}
	s.resume(now)
	return nil
}

func (s *Session) Toggle() error {
	if s.countdown.Paused() {
		return s.Resume()
	}
	return s.Pause()
}

// Restart starts the next work session once the current one has finished.
func (s *Session) Restart() error {
	now := s.clock.Now()
	s.reconcile(now)
	if s.mode != ModeWork || !s.finished {
		return ErrInvalidMode
	}
	s.startWork(now, true)
	return nil
}

// EndBreak cuts a break short. The next work session waits for the user.
func (s *Session) EndBreak() error {
	if s.mode != ModeBreak {
		return ErrInvalidMode
	}
	now := s.clock.Now()
	s.reconcile(now)
	if s.mode != ModeBreak {
		// the break ran out in the same pass
		return nil
	}
	s.closeBreak(now, BreakEnded)
	s.startWork(now, false)
	return nil
}

// OpenShop pauses a running work session while the user browses, and
// remembers to resume it on close.
func (s *Session) OpenShop() {
	now := s.clock.Now()
	s.reconcile(now)
	s.shopOpen = true
	if s.mode == ModeWork && !s.finished && !s.countdown.Paused() {
		s.shopResume = true
		s.pause(now)
	}
	s.sync(now)
}

func (s *Session) CloseShop() {
	now := s.clock.Now()
	s.reconcile(now)
	resume := s.shopResume
	s.shopOpen = false
	s.shopResume = false
	if resume && s.mode == ModeWork && !s.finished && s.countdown.Paused() {
		s.resume(now)
	}
	s.sync(now)
}

// UpdateSettings takes effect at once for the accrual rate and cap; a new
// session length applies from the next work session.
func (s *Session) UpdateSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	s.reconcile(now)
	s.settings = settings
	s.accrual.Rebase(settings.SessionLength, settings.Rate())
	s.sync(now)
	return nil
}

func (s *Session) startWork(now time.Time, autoStart bool) {
	from := s.mode
	s.mode = ModeWork
	s.finished = false
	s.countdown.Start(now, s.settings.SessionLength)
	s.accrual.Reset(s.settings.SessionLength, s.settings.Rate())
	s.startedAt = now
	s.planned = s.settings.SessionLength
	s.shopResume = false
	if autoStart {
		s.accrual.Activate(now)
	} else {
		s.countdown.Pause(now)
	}
	s.emit(Transition{Kind: WorkStarted, From: from, To: ModeWork, At: now, StartedAt: now, Planned: s.planned})
	s.sync(now)
}

func (s *Session) pause(now time.Time) {
	s.countdown.Pause(now)
	s.accrual.Deactivate()
	s.emit(Transition{Kind: WorkPaused, From: ModeWork, To: ModeWork, At: now})
	s.sync(now)
}

func (s *Session) resume(now time.Time) {
	s.countdown.Resume(now)
	s.accrual.Activate(now)
	s.emit(Transition{Kind: WorkResumed, From: ModeWork, To: ModeWork, At: now})
	s.sync(now)
}

func (s *Session) closeBreak(now time.Time, kind TransitionKind) {
	s.emit(Transition{
		Kind:      kind,
		From:      ModeBreak,
		To:        ModeWork,
		At:        now,
		StartedAt: s.startedAt,
		Planned:   s.planned,
	})
}

// reconcile is the single sampling pass. Accrual is credited before the
// zero-crossing is acted on, so the last increment of a session lands.
func (s *Session) reconcile(now time.Time) {
	switch s.mode {
	case ModeWork:
		if s.finished {
			return
		}
		if inc := s.accrual.Sample(now, s.countdown.Deadline()); inc > 0 {
			_ = s.ledger.Deposit(inc)
		}
		if s.countdown.Finished(now) {
			s.finished = true
			s.accrual.Deactivate()
			s.emit(Transition{
				Kind:      WorkFinished,
				From:      ModeWork,
				To:        ModeWork,
				At:        now,
				StartedAt: s.startedAt,
				Planned:   s.planned,
				Worked:    s.accrual.Worked(),
				Earned:    s.accrual.Accrued(),
			})
		}
		s.sync(now)
	case ModeBreak:
		if s.countdown.Finished(now) {
			s.closeBreak(now, BreakFinished)
			s.startWork(now, false)
		}
	}
}

func (s *Session) accruing(now time.Time) bool {
	return s.mode == ModeWork && !s.finished && !s.countdown.Paused() && s.countdown.Remaining(now) > 0
}

// sync snaps the display projection to the ledger.
func (s *Session) sync(now time.Time) {
	rate := s.accrual.Rate()
	headroom := s.accrual.MaxSession() - s.accrual.Accrued()
	if left := rate.UnitsFor(s.countdown.Remaining(now)); left < headroom {
		headroom = left
	}
	s.projection.Sync(s.ledger.Balance(), now, rate, headroom, s.accruing(now))
}

func (s *Session) emit(t Transition) {
	s.generation++
	t.Generation = s.generation
	s.pending = append(s.pending, t)
}
