package domain

import "time"

// Projection interpolates the balance between authoritative samples for a
// smooth display. It only reads; the ledger is never touched from here.
type Projection struct {
	base     Units
	syncedAt time.Time
	rate     Rate
	ceiling  Units
	live     bool
}

// Sync snaps the projection to the authoritative balance. headroom bounds
// how far the projection may run ahead of it.
func (p *Projection) Sync(balance Units, at time.Time, rate Rate, headroom Units, live bool) {
	if headroom < 0 {
		headroom = 0
	}
	p.base = balance
	p.syncedAt = at
	p.rate = rate
	p.ceiling = balance + headroom
	p.live = live
}

func (p *Projection) At(now time.Time) Units {
	if !p.live || !now.After(p.syncedAt) {
		return p.base
	}
	v := p.base + p.rate.UnitsFor(now.Sub(p.syncedAt))
	if v > p.ceiling {
		return p.ceiling
	}
	return v
}
