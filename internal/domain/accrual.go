package domain

import "time"

// Accrual turns focused wall-clock time into reward units for one work
// session. It counts worked time rather than summing per-sample fractions,
// so the session total depends only on how long the user worked and never
// exceeds MaxSession, however irregular the sampling.
type Accrual struct {
	length time.Duration
	rate   Rate

	// banked holds units earned under an earlier rate; segment is the work
	// time earned under the current one.
	banked  Units
	segment time.Duration
	worked  time.Duration

	last time.Time
}

func NewAccrual(length time.Duration, rate Rate) Accrual {
	return Accrual{length: length, rate: rate}
}

// Reset starts a fresh work session.
func (a *Accrual) Reset(length time.Duration, rate Rate) {
	*a = NewAccrual(length, rate)
}

// Rebase applies a settings change mid-session. Units already earned are
// clamped to the new cap and later work accrues at the new rate.
func (a *Accrual) Rebase(length time.Duration, rate Rate) {
	current := a.Accrued()
	a.length = length
	a.rate = rate
	if max := a.MaxSession(); current > max {
		current = max
	}
	a.banked = current
	a.segment = 0
}

func (a *Accrual) MaxSession() Units {
	return a.rate.UnitsFor(a.length)
}

func (a *Accrual) Accrued() Units {
	v := a.banked + a.rate.UnitsFor(a.segment)
	if max := a.MaxSession(); v > max {
		return max
	}
	return v
}

func (a *Accrual) Worked() time.Duration {
	return a.worked
}

func (a *Accrual) Rate() Rate {
	return a.rate
}

// Activate marks now as the first sample point. Time before activation,
// including any paused interval, never earns anything.
func (a *Accrual) Activate(now time.Time) {
	if a.last.IsZero() {
		a.last = now
	}
}

func (a *Accrual) Deactivate() {
	a.last = time.Time{}
}

func (a *Accrual) Active() bool {
	return !a.last.IsZero()
}

// Sample credits the work time since the previous sample, counting no
// further than until (the countdown deadline), and returns the increment
// to deposit. The increment is never negative.
func (a *Accrual) Sample(now, until time.Time) Units {
	if a.last.IsZero() {
		return 0
	}
	end := now
	if until.Before(end) {
		end = until
	}
	if !end.After(a.last) {
		return 0
	}
	d := end.Sub(a.last)
	a.last = end

	before := a.Accrued()
	a.segment += d
	a.worked += d
	return a.Accrued() - before
}
