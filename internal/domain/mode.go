package domain

import (
	"fmt"
	"time"
)

type Mode int

const (
	ModeWork Mode = iota
	ModeBreak
)

func (m Mode) String() string {
	switch m {
	case ModeWork:
		return "work"
	case ModeBreak:
		return "break"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "work":
		*m = ModeWork
	case "break":
		*m = ModeBreak
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}

type TransitionKind string

const (
	WorkStarted    TransitionKind = "work_started"
	WorkPaused     TransitionKind = "work_paused"
	WorkResumed    TransitionKind = "work_resumed"
	WorkFinished   TransitionKind = "work_finished"
	BreakPurchased TransitionKind = "break_purchased"
	BreakFinished  TransitionKind = "break_finished"
	BreakEnded     TransitionKind = "break_ended"
)

// Closes reports whether the transition ends a timed interval worth
// keeping in history.
func (k TransitionKind) Closes() bool {
	switch k {
	case WorkFinished, BreakPurchased, BreakFinished, BreakEnded:
		return true
	}
	return false
}

// Transition records one state change of a session. For kinds that close
// an interval, StartedAt/Planned describe that interval.
type Transition struct {
	Kind       TransitionKind
	From       Mode
	To         Mode
	At         time.Time
	StartedAt  time.Time
	Planned    time.Duration
	Worked     time.Duration
	Earned     Units
	Cost       Units
	Generation uint64
}

// Notice is the user-facing message for a countdown reaching zero.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CompletionNotice returns the notice for a transition that fired because
// a countdown hit zero.
func CompletionNotice(k TransitionKind) (Notice, bool) {
	switch k {
	case WorkFinished:
		return Notice{
			Title: "Focus session complete",
			Body:  "Good stuff, your focus timer just hit zero. Select a new work or fun timer!",
		}, true
	case BreakFinished:
		return Notice{
			Title: "Break finished",
			Body:  "Break time is over. Ready to get back to the grind?",
		}, true
	}
	return Notice{}, false
}
