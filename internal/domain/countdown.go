package domain

import "time"

// Countdown tracks a single wall-clock deadline. It owns no timer; every
// answer is a function of the deadline, the paused flag, the frozen
// remainder and the time passed in.
type Countdown struct {
	deadline time.Time
	paused   bool
	frozen   time.Duration
}

// Start arms the countdown for d from now. A non-positive d leaves the
// countdown already finished.
func (c *Countdown) Start(now time.Time, d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.deadline = now.Add(d)
	c.paused = false
	c.frozen = 0
}

// Pause freezes the remainder as of now. Pausing twice is a no-op.
func (c *Countdown) Pause(now time.Time) {
	if c.paused {
		return
	}
	c.frozen = c.Remaining(now)
	c.paused = true
}

// Resume moves the deadline so that the remainder frozen at pause time is
// preserved, however long the pause lasted.
func (c *Countdown) Resume(now time.Time) {
	if !c.paused {
		return
	}
	c.deadline = now.Add(c.frozen)
	c.paused = false
	c.frozen = 0
}

func (c *Countdown) Remaining(now time.Time) time.Duration {
	if c.paused {
		return c.frozen
	}
	if rem := c.deadline.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

func (c *Countdown) Finished(now time.Time) bool {
	return c.Remaining(now) <= 0
}

func (c *Countdown) Paused() bool {
	return c.paused
}

func (c *Countdown) Deadline() time.Time {
	return c.deadline
}
