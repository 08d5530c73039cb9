package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/hperssn/coindoro/internal/clock"
)

func newTestSession(t *testing.T, length time.Duration, minutesPerUnit int, autoStart bool) (*Session, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(epoch)
	s, err := NewSession("s1", "u1", Settings{SessionLength: length, MinutesPerUnit: minutesPerUnit}, clk, autoStart)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, clk
}

func TestNewSessionRejectsInvalidLength(t *testing.T) {
	_, err := NewSession("", "", Settings{SessionLength: 0, MinutesPerUnit: 1}, clock.NewMock(epoch), true)
	if err != ErrInvalidDuration {
		t.Fatalf("error = %v, want %v", err, ErrInvalidDuration)
	}
}

func TestNewSessionGeneratesID(t *testing.T) {
	s, err := NewSession("", "u1", DefaultSettings(), clock.NewMock(epoch), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("expected generated session ID")
	}
}

func TestScenarioUninterruptedWork(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 5, true)

	clk.Advance(300000 * time.Millisecond)
	snap := s.Sample(clk.Now())

	if snap.Balance != WholeUnits(1) {
		t.Fatalf("balance = %v, want 1.000000", snap.Balance)
	}
	if !snap.Accruing {
		t.Fatalf("expected session to be accruing")
	}
}

func TestScenarioPauseDoesNotLoseTime(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 5, true)

	clk.Advance(150000 * time.Millisecond)
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clk.Advance(10000 * time.Millisecond)
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	snap := s.Sample(clk.Now())
	if got, want := snap.RemainingMs, int64(1350000); got != want {
		t.Fatalf("remaining = %dms, want %dms", got, want)
	}
	if snap.SessionAccrued != 500_000 {
		t.Fatalf("session accrued = %v, want 0.500000", snap.SessionAccrued)
	}
	if snap.Balance != 500_000 {
		t.Fatalf("balance = %v, want 0.500000", snap.Balance)
	}
}

func TestScenarioPurchaseBreak(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, false)
	s.ledger.balance = WholeUnits(3)

	if err := s.PurchaseBreak(2, 1); err != nil {
		t.Fatalf("PurchaseBreak: %v", err)
	}

	snap := s.Sample(clk.Now())
	if snap.Balance != WholeUnits(1) {
		t.Fatalf("balance = %v, want 1.000000", snap.Balance)
	}
	if snap.Mode != ModeBreak {
		t.Fatalf("mode = %v, want break", snap.Mode)
	}
	if want := clk.Now().Add(120000 * time.Millisecond); !snap.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", snap.Deadline, want)
	}
	if snap.Paused || snap.Accruing {
		t.Fatalf("break must run and never accrue: %+v", snap)
	}
}

func TestScenarioInsufficientBalance(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	s.ledger.balance = WholeUnits(1)
	deadline := s.countdown.Deadline()

	err := s.PurchaseBreak(5, 1)
	if err != ErrInsufficientBalance {
		t.Fatalf("error = %v, want %v", err, ErrInsufficientBalance)
	}

	snap := s.Peek(clk.Now())
	if snap.Balance != WholeUnits(1) {
		t.Fatalf("balance = %v, want 1.000000", snap.Balance)
	}
	if snap.Mode != ModeWork {
		t.Fatalf("mode = %v, want work", snap.Mode)
	}
	if !snap.Deadline.Equal(deadline) {
		t.Fatalf("deadline moved from %v to %v", deadline, snap.Deadline)
	}
}

func TestScenarioFinishedSessionStopsEarning(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 5, true)

	clk.Advance(25 * time.Minute)
	snap := s.Sample(clk.Now())
	if !snap.Finished || snap.RemainingMs != 0 {
		t.Fatalf("expected finished session, got %+v", snap)
	}
	if snap.Balance != WholeUnits(5) {
		t.Fatalf("balance = %v, want 5.000000", snap.Balance)
	}

	clk.Advance(time.Hour)
	snap = s.Sample(clk.Now())
	if snap.Balance != WholeUnits(5) {
		t.Fatalf("balance after idling = %v, want 5.000000", snap.Balance)
	}
	if snap.Accruing {
		t.Fatalf("finished session must not accrue")
	}
}

func TestFinalIncrementCapturedOnLateSample(t *testing.T) {
	s, clk := newTestSession(t, 10*time.Minute, 1, true)

	clk.Advance(9*time.Minute + 30*time.Second)
	s.Sample(clk.Now())
	clk.Advance(5 * time.Minute)
	snap := s.Sample(clk.Now())

	if snap.Balance != WholeUnits(10) {
		t.Fatalf("balance = %v, want 10.000000", snap.Balance)
	}

	var finished int
	for _, tr := range s.DrainTransitions() {
		if tr.Kind == WorkFinished {
			finished++
			if tr.Earned != WholeUnits(10) {
				t.Fatalf("finished transition earned %v, want 10", tr.Earned)
			}
		}
	}
	if finished != 1 {
		t.Fatalf("work_finished emitted %d times, want 1", finished)
	}
}

func TestSampleIsIdempotent(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	clk.Advance(95 * time.Second)

	now := clk.Now()
	a := s.Sample(now)
	b := s.Sample(now)

	if a.RemainingMs != b.RemainingMs || a.Balance != b.Balance {
		t.Fatalf("samples differ: %+v vs %+v", a, b)
	}
}

func TestModeGuards(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)

	if err := s.Restart(); err != ErrInvalidMode {
		t.Fatalf("Restart while running error = %v, want %v", err, ErrInvalidMode)
	}
	if err := s.EndBreak(); err != ErrInvalidMode {
		t.Fatalf("EndBreak in work error = %v, want %v", err, ErrInvalidMode)
	}

	clk.Advance(3 * time.Minute)
	s.Sample(clk.Now())
	if err := s.PurchaseBreak(1, 1); err != nil {
		t.Fatalf("PurchaseBreak: %v", err)
	}

	tests := []struct {
		name string
		op   func() error
	}{
		{"pause", s.Pause},
		{"resume", s.Resume},
		{"toggle", s.Toggle},
		{"restart", s.Restart},
		{"purchase", func() error { return s.PurchaseBreak(1, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); err != ErrInvalidMode {
				t.Fatalf("%s during break error = %v, want %v", tt.name, err, ErrInvalidMode)
			}
		})
	}
}

func TestPurchaseRejections(t *testing.T) {
	tests := []struct {
		name           string
		minutes        int
		minutesPerUnit int
		want           error
	}{
		{name: "zero minutes", minutes: 0, minutesPerUnit: 1, want: ErrInvalidDuration},
		{name: "negative minutes", minutes: -2, minutesPerUnit: 1, want: ErrInvalidDuration},
		{name: "disabled rate", minutes: 2, minutesPerUnit: 0, want: ErrAccrualDisabled},
		{name: "too expensive", minutes: 20, minutesPerUnit: 1, want: ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clk := newTestSession(t, 25*time.Minute, 1, false)
			s.ledger.balance = WholeUnits(10)
			before := s.Peek(clk.Now())
			gen := s.Generation()

			if err := s.PurchaseBreak(tt.minutes, tt.minutesPerUnit); err != tt.want {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}

			after := s.Peek(clk.Now())
			if after.Balance != before.Balance || after.Mode != before.Mode || !after.Deadline.Equal(before.Deadline) {
				t.Fatalf("rejected purchase mutated state: %+v -> %+v", before, after)
			}
			if s.Generation() != gen {
				t.Fatalf("rejected purchase emitted a transition")
			}
		})
	}
}

func TestBreakEndsIntoPausedWork(t *testing.T) {
	tests := []struct {
		name string
		end  func(s *Session, clk *clock.Mock)
		kind TransitionKind
	}{
		{
			name: "runs out",
			end: func(s *Session, clk *clock.Mock) {
				clk.Advance(2*time.Minute + time.Second)
				s.Sample(clk.Now())
			},
			kind: BreakFinished,
		},
		{
			name: "ended early",
			end: func(s *Session, clk *clock.Mock) {
				clk.Advance(30 * time.Second)
				if err := s.EndBreak(); err != nil {
					t.Fatalf("EndBreak: %v", err)
				}
			},
			kind: BreakEnded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clk := newTestSession(t, 25*time.Minute, 1, false)
			s.ledger.balance = WholeUnits(2)
			if err := s.PurchaseBreak(2, 1); err != nil {
				t.Fatalf("PurchaseBreak: %v", err)
			}
			s.DrainTransitions()

			tt.end(s, clk)

			snap := s.Sample(clk.Now())
			if snap.Mode != ModeWork || !snap.Paused {
				t.Fatalf("expected paused work, got %+v", snap)
			}
			if snap.Remaining() != 25*time.Minute {
				t.Fatalf("remaining = %v, want 25m", snap.Remaining())
			}

			trs := s.DrainTransitions()
			if len(trs) != 2 || trs[0].Kind != tt.kind || trs[1].Kind != WorkStarted {
				t.Fatalf("unexpected transitions %+v", trs)
			}

			clk.Advance(10 * time.Minute)
			if snap := s.Sample(clk.Now()); snap.Balance != 0 {
				t.Fatalf("paused work after break earned %v", snap.Balance)
			}
		})
	}
}

func TestRestartAfterFinish(t *testing.T) {
	s, clk := newTestSession(t, 5*time.Minute, 1, true)
	clk.Advance(6 * time.Minute)
	s.Sample(clk.Now())

	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	snap := s.Sample(clk.Now())
	if snap.Finished || snap.Paused || snap.Remaining() != 5*time.Minute {
		t.Fatalf("unexpected state after restart: %+v", snap)
	}
	if snap.SessionAccrued != 0 {
		t.Fatalf("session accrual not reset: %v", snap.SessionAccrued)
	}
	if snap.Balance != WholeUnits(5) {
		t.Fatalf("ledger must carry across sessions, got %v", snap.Balance)
	}
}

func TestFullSessionBuysEqualBreak(t *testing.T) {
	s, clk := newTestSession(t, 5*time.Minute, 3, true)
	clk.Advance(5 * time.Minute)
	if snap := s.Sample(clk.Now()); !snap.Finished {
		t.Fatalf("expected finished session, got %+v", snap)
	}

	if err := s.PurchaseBreak(5, 3); err != nil {
		t.Fatalf("PurchaseBreak(5, 3) after 5 worked minutes: %v", err)
	}
	snap := s.Sample(clk.Now())
	if snap.Mode != ModeBreak || snap.Balance != 0 {
		t.Fatalf("unexpected state after purchase: %+v", snap)
	}
}

func TestStartWork(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(s *Session, clk *clock.Mock)
		autoStart bool
		want      []TransitionKind
		balance   Units
	}{
		{
			name: "from break",
			setup: func(s *Session, clk *clock.Mock) {
				s.ledger.balance = WholeUnits(2)
				if err := s.PurchaseBreak(2, 1); err != nil {
					t.Fatalf("PurchaseBreak: %v", err)
				}
				clk.Advance(30 * time.Second)
			},
			autoStart: true,
			want:      []TransitionKind{BreakEnded, WorkStarted},
			balance:   0,
		},
		{
			name: "from running work",
			setup: func(s *Session, clk *clock.Mock) {
				if err := s.Resume(); err != nil {
					t.Fatalf("Resume: %v", err)
				}
				clk.Advance(3 * time.Minute)
			},
			autoStart: false,
			want:      []TransitionKind{WorkStarted},
			balance:   WholeUnits(3),
		},
		{
			name: "from finished work",
			setup: func(s *Session, clk *clock.Mock) {
				if err := s.Resume(); err != nil {
					t.Fatalf("Resume: %v", err)
				}
				clk.Advance(26 * time.Minute)
				s.Sample(clk.Now())
			},
			autoStart: true,
			want:      []TransitionKind{WorkStarted},
			balance:   WholeUnits(25),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clk := newTestSession(t, 25*time.Minute, 1, false)
			tt.setup(s, clk)
			s.DrainTransitions()

			if err := s.StartWork(10*time.Minute, tt.autoStart); err != nil {
				t.Fatalf("StartWork: %v", err)
			}

			trs := s.DrainTransitions()
			if len(trs) != len(tt.want) {
				t.Fatalf("transitions = %+v, want kinds %v", trs, tt.want)
			}
			for i, k := range tt.want {
				if trs[i].Kind != k {
					t.Fatalf("transition %d = %s, want %s", i, trs[i].Kind, k)
				}
			}

			snap := s.Peek(clk.Now())
			if snap.Mode != ModeWork || snap.Finished || snap.Paused != !tt.autoStart {
				t.Fatalf("unexpected state: %+v", snap)
			}
			if snap.Remaining() != 10*time.Minute || snap.SessionMinutes != 10 {
				t.Fatalf("new length not applied: %+v", snap)
			}
			if snap.SessionAccrued != 0 || snap.Balance != tt.balance {
				t.Fatalf("accrued = %v balance = %v, want 0 and %v", snap.SessionAccrued, snap.Balance, tt.balance)
			}
		})
	}
}

func TestStartWorkRejectsInvalidLength(t *testing.T) {
	s, _ := newTestSession(t, 25*time.Minute, 1, true)
	s.DrainTransitions()

	if err := s.StartWork(0, true); err != ErrInvalidDuration {
		t.Fatalf("error = %v, want %v", err, ErrInvalidDuration)
	}
	if trs := s.DrainTransitions(); len(trs) != 0 {
		t.Fatalf("rejected StartWork emitted %+v", trs)
	}
}

func TestShopPausesAndResumes(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	clk.Advance(time.Minute)

	s.OpenShop()
	if snap := s.Sample(clk.Now()); !snap.Paused || !snap.ShopOpen {
		t.Fatalf("opening the shop should pause work: %+v", snap)
	}
	clk.Advance(5 * time.Minute)
	s.CloseShop()

	snap := s.Sample(clk.Now())
	if snap.Paused || snap.ShopOpen {
		t.Fatalf("closing the shop should resume work: %+v", snap)
	}
	if snap.Remaining() != 24*time.Minute {
		t.Fatalf("remaining = %v, want 24m", snap.Remaining())
	}
	if snap.Balance != WholeUnits(1) {
		t.Fatalf("balance = %v, want 1.000000", snap.Balance)
	}
}

func TestShopDoesNotResumeUserPause(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	s.OpenShop()
	s.CloseShop()

	if snap := s.Sample(clk.Now()); !snap.Paused {
		t.Fatalf("shop must not resume a session the user paused")
	}
}

func TestUpdateSettingsDisablesAccrual(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	clk.Advance(2 * time.Minute)

	if err := s.UpdateSettings(Settings{SessionLength: 25 * time.Minute, MinutesPerUnit: 0}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	clk.Advance(5 * time.Minute)
	snap := s.Sample(clk.Now())

	if snap.Balance != WholeUnits(2) {
		t.Fatalf("balance = %v, want 2.000000", snap.Balance)
	}
	if snap.MaxSession != 0 || snap.SessionAccrued != 0 {
		t.Fatalf("disabled rate must zero the session cap: %+v", snap)
	}
	if err := s.UpdateSettings(Settings{}); err != ErrInvalidDuration {
		t.Fatalf("error = %v, want %v", err, ErrInvalidDuration)
	}
}

func TestProjectionIsReadOnly(t *testing.T) {
	s, clk := newTestSession(t, 25*time.Minute, 1, true)
	clk.Advance(time.Minute)
	s.Sample(clk.Now())

	clk.Advance(30 * time.Second)
	if got, want := s.Projected(clk.Now()), Units(1_500_000); got != want {
		t.Fatalf("Projected() = %v, want %v", got, want)
	}
	if got := s.Balance(); got != WholeUnits(1) {
		t.Fatalf("projection touched the ledger: balance %v", got)
	}

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clk.Advance(time.Hour)
	if got := s.Projected(clk.Now()); got != s.Balance() {
		t.Fatalf("paused projection = %v, want balance %v", got, s.Balance())
	}
}

func TestProjectionStopsAtSessionCap(t *testing.T) {
	s, clk := newTestSession(t, 5*time.Minute, 1, true)
	clk.Advance(4 * time.Minute)
	s.Sample(clk.Now())

	clk.Advance(10 * time.Minute)
	if got, want := s.Projected(clk.Now()), WholeUnits(5); got != want {
		t.Fatalf("Projected() = %v, want %v", got, want)
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	s, clk := newTestSession(t, 15*time.Minute, 1, true)

	ops := []func(){
		func() { _ = s.Pause() },
		func() { _ = s.Resume() },
		func() { _ = s.Toggle() },
		func() { _ = s.Restart() },
		func() { _ = s.EndBreak() },
		func() { s.OpenShop() },
		func() { s.CloseShop() },
		func() {
			before := s.Peek(clk.Now())
			if err := s.PurchaseBreak(r.Intn(8)-1, r.Intn(3)); err != nil {
				after := s.Peek(clk.Now())
				if after.Balance != before.Balance || after.Mode != before.Mode || !after.Deadline.Equal(before.Deadline) {
					t.Fatalf("rejected purchase (%v) mutated state", err)
				}
			}
		},
	}

	for i := 0; i < 5000; i++ {
		clk.Advance(time.Duration(r.Intn(90000)) * time.Millisecond)
		ops[r.Intn(len(ops))]()
		snap := s.Sample(clk.Now())

		if snap.Balance < 0 {
			t.Fatalf("step %d: negative balance %v", i, snap.Balance)
		}
		if snap.SessionAccrued < 0 || snap.SessionAccrued > snap.MaxSession {
			t.Fatalf("step %d: session accrued %v outside [0,%v]", i, snap.SessionAccrued, snap.MaxSession)
		}
		if snap.RemainingMs < 0 {
			t.Fatalf("step %d: negative remaining", i)
		}
		if snap.Mode == ModeBreak && (snap.Paused || snap.Accruing) {
			t.Fatalf("step %d: break paused or accruing", i)
		}
	}
}
