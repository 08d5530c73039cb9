package domain

import "time"

// Rate is the exchange rate between focused minutes and reward units.
// A non-positive MinutesPerUnit disables both accrual and purchasing.
type Rate struct {
	MinutesPerUnit int
}

func (r Rate) Enabled() bool {
	return r.MinutesPerUnit > 0
}

// Interval is the work time that earns one unit. Zero when disabled.
func (r Rate) Interval() time.Duration {
	if !r.Enabled() {
		return 0
	}
	return time.Duration(r.MinutesPerUnit) * time.Minute
}

// UnitsFor converts worked time into units, rounding down to the micro-unit.
func (r Rate) UnitsFor(d time.Duration) Units {
	if !r.Enabled() || d <= 0 {
		return 0
	}
	interval := r.Interval().Milliseconds()
	return Units(d.Milliseconds() * UnitScale / interval)
}

// Cost prices a break of the given length. It truncates to the micro-unit
// exactly as UnitsFor does, so the units earned by working some number of
// minutes always buy a break of the same length.
func (r Rate) Cost(minutes int) (Units, error) {
	if minutes <= 0 {
		return 0, ErrInvalidDuration
	}
	if !r.Enabled() {
		return 0, ErrAccrualDisabled
	}
	return r.UnitsFor(time.Duration(minutes) * time.Minute), nil
}
