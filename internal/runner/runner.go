package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hperssn/coindoro/internal/clock"
	"github.com/hperssn/coindoro/internal/domain"
	"github.com/hperssn/coindoro/internal/storage"
)

var ErrStopped = errors.New("session stopped")

const (
	DefaultSampleInterval = time.Second
	DefaultSmoothInterval = 100 * time.Millisecond

	eventBuffer  = 64
	recordBuffer = 32
)

// Recorder receives closed intervals for the history store.
type Recorder interface {
	SaveRecord(record *storage.SessionRecord) error
}

type Config struct {
	Clock          clock.Clock
	Logger         *zap.SugaredLogger
	Recorder       Recorder
	SampleInterval time.Duration
	SmoothInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.SmoothInterval <= 0 {
		c.SmoothInterval = DefaultSmoothInterval
	}
	return c
}

type EventType string

const (
	EventTick       EventType = "tick"
	EventProjection EventType = "projection"
	EventTransition EventType = "transition"
	EventCompleted  EventType = "completed"
)

type Event struct {
	Type       EventType             `json:"type"`
	Snapshot   domain.Snapshot       `json:"snapshot"`
	Transition domain.TransitionKind `json:"transition,omitempty"`
	Display    *domain.Units         `json:"display,omitempty"`
	Notice     *domain.Notice        `json:"notice,omitempty"`
}

// Runner drives one session. All access to the session happens under mu,
// which gives the single consistent view the samplers and user actions
// share. Each configuration of the session owns at most one countdown
// sampler and one smoothing sampler; both are replaced on every transition.
type Runner struct {
	mu sync.Mutex

	session *domain.Session
	cfg     Config
	log     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	subscribers map[int]chan Event
	nextSub     int
	records     chan *storage.SessionRecord
	writer      sync.WaitGroup

	sampler  *task
	smoother *task
	expanded bool

	lastActive time.Time
	stopped    bool
}

func NewRunner(s *domain.Session, cfg Config) *Runner {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		session:     s,
		cfg:         cfg,
		log:         cfg.Logger.With("session", s.ID, "user", s.UserID),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]chan Event),
		records:     make(chan *storage.SessionRecord, recordBuffer),
		lastActive:  cfg.Clock.Now(),
	}

	if cfg.Recorder != nil {
		r.writer.Add(1)
		go r.recordWorker()
	}

	r.mu.Lock()
	r.settle(cfg.Clock.Now(), true)
	r.mu.Unlock()

	return r
}

func (r *Runner) ID() string {
	return r.session.ID
}

func (r *Runner) UserID() string {
	return r.session.UserID
}

func (r *Runner) Settings() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Settings()
}

// Subscribe opens a new event stream. Every subscriber receives every
// event; a subscriber that falls behind by more than the buffer misses
// events rather than stalling the session. The stream is closed by the
// returned cancel func or when the runner stops.
func (r *Runner) Subscribe() (<-chan Event, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil, nil, ErrStopped
	}
	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, eventBuffer)
	r.subscribers[id] = ch
	r.lastActive = r.cfg.Clock.Now()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subscribers[id]; ok {
				delete(r.subscribers, id)
				close(c)
				r.lastActive = r.cfg.Clock.Now()
			}
		})
	}
	return ch, cancel, nil
}

func (r *Runner) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// Watched reports whether any event stream is open.
func (r *Runner) Watched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers) > 0
}

// Snapshot samples the session now.
func (r *Runner) Snapshot() (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return domain.Snapshot{}, ErrStopped
	}
	now := r.cfg.Clock.Now()
	r.lastActive = now
	r.session.Sample(now)
	return r.settle(now, false), nil
}

// Projection returns the display-smoothed balance alongside the snapshot.
func (r *Runner) Projection() (domain.Units, domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return 0, domain.Snapshot{}, ErrStopped
	}
	now := r.cfg.Clock.Now()
	r.lastActive = now
	r.session.Sample(now)
	snap := r.settle(now, false)
	return r.session.Projected(now), snap, nil
}

func (r *Runner) StartWork(length time.Duration, autoStart bool) (domain.Snapshot, error) {
	return r.do(func(s *domain.Session) error { return s.StartWork(length, autoStart) })
}

func (r *Runner) Pause() (domain.Snapshot, error) {
	return r.do((*domain.Session).Pause)
}

func (r *Runner) Resume() (domain.Snapshot, error) {
	return r.do((*domain.Session).Resume)
}

func (r *Runner) Toggle() (domain.Snapshot, error) {
	return r.do((*domain.Session).Toggle)
}

func (r *Runner) Restart() (domain.Snapshot, error) {
	return r.do((*domain.Session).Restart)
}

func (r *Runner) EndBreak() (domain.Snapshot, error) {
	return r.do((*domain.Session).EndBreak)
}

func (r *Runner) OpenShop() (domain.Snapshot, error) {
	return r.do(func(s *domain.Session) error {
		s.OpenShop()
		return nil
	})
}

func (r *Runner) CloseShop() (domain.Snapshot, error) {
	return r.do(func(s *domain.Session) error {
		s.CloseShop()
		return nil
	})
}

func (r *Runner) UpdateSettings(settings domain.Settings) (domain.Snapshot, error) {
	return r.do(func(s *domain.Session) error { return s.UpdateSettings(settings) })
}

// PurchaseBreak runs the purchase under the runner lock, so a double submit
// is applied at most once: the second attempt finds the session on break.
func (r *Runner) PurchaseBreak(minutes, minutesPerUnit int) (domain.Snapshot, error) {
	snap, err := r.do(func(s *domain.Session) error { return s.PurchaseBreak(minutes, minutesPerUnit) })
	switch {
	case err == nil:
		purchasesTotal.WithLabelValues("ok").Inc()
	case domain.Reason(err) != "":
		purchasesTotal.WithLabelValues(domain.Reason(err)).Inc()
		r.log.Debugw("break purchase rejected", "minutes", minutes, "reason", domain.Reason(err))
	}
	return snap, err
}

// SetExpanded switches the smooth balance display on or off.
func (r *Runner) SetExpanded(expanded bool) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return domain.Snapshot{}, ErrStopped
	}
	now := r.cfg.Clock.Now()
	r.expanded = expanded
	r.lastActive = now
	return r.settle(now, true), nil
}

// Stop cancels both samplers, closes every event stream and flushes pending
// history records.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.sampler.cancel()
	r.smoother.cancel()
	r.sampler, r.smoother = nil, nil
	close(r.records)
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
	r.mu.Unlock()

	r.cancel()
	r.writer.Wait()
}

func (r *Runner) do(op func(*domain.Session) error) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return domain.Snapshot{}, ErrStopped
	}
	now := r.cfg.Clock.Now()
	err := op(r.session)
	r.lastActive = now
	snap := r.settle(now, false)
	return snap, err
}

// settle handles the transitions the last operation produced and, when the
// configuration changed, replaces the samplers. Called with mu held.
func (r *Runner) settle(now time.Time, force bool) domain.Snapshot {
	transitions := r.session.DrainTransitions()
	snap := r.session.Peek(now)

	for _, t := range transitions {
		r.handle(t, snap)
	}
	if force || len(transitions) > 0 {
		r.reschedule(snap)
	}
	return snap
}

func (r *Runner) handle(t domain.Transition, snap domain.Snapshot) {
	transitionsTotal.WithLabelValues(string(t.Kind)).Inc()
	r.log.Infow("session transition",
		"kind", t.Kind,
		"from", t.From,
		"to", t.To,
		"balance", snap.Balance,
	)

	switch t.Kind {
	case domain.WorkFinished, domain.BreakPurchased:
		unitsEarned.Add(t.Earned.Float64())
		unitsSpent.Add(t.Cost.Float64())
	}

	r.publish(Event{Type: EventTransition, Transition: t.Kind, Snapshot: snap})
	if notice, ok := domain.CompletionNotice(t.Kind); ok {
		r.publish(Event{Type: EventCompleted, Transition: t.Kind, Snapshot: snap, Notice: &notice})
	}

	if r.cfg.Recorder != nil && t.Kind.Closes() {
		select {
		case r.records <- storage.FromTransition(r.session.ID, r.session.UserID, t):
		default:
			recordsDropped.Inc()
			r.log.Warnw("history queue full, dropping record", "kind", t.Kind)
		}
	}
}

func (r *Runner) reschedule(snap domain.Snapshot) {
	r.sampler.cancel()
	r.smoother.cancel()
	r.sampler, r.smoother = nil, nil

	if snap.Mode == domain.ModeBreak || (!snap.Paused && !snap.Finished) {
		r.sampler = startTask(r.ctx, &r.mu, r.cfg.SampleInterval, r.cfg.Clock.Now, r.onSample)
	}
	if r.expanded && snap.Accruing {
		r.smoother = startTask(r.ctx, &r.mu, r.cfg.SmoothInterval, r.cfg.Clock.Now, r.onSmooth)
	}
}

func (r *Runner) onSample(now time.Time) {
	snap := r.session.Sample(now)
	r.publish(Event{Type: EventTick, Snapshot: snap})
	r.settle(now, false)
}

func (r *Runner) onSmooth(now time.Time) {
	display := r.session.Projected(now)
	r.publish(Event{Type: EventProjection, Snapshot: r.session.Peek(now), Display: &display})
}

func (r *Runner) publish(e Event) {
	for _, ch := range r.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (r *Runner) recordWorker() {
	defer r.writer.Done()

	for rec := range r.records {
		if err := r.cfg.Recorder.SaveRecord(rec); err != nil {
			r.log.Errorw("failed to save history record", "kind", rec.Kind, "err", err)
		}
	}
}
