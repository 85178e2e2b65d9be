package platetimer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current phase.
	ErrInvalidState = errors.New("invalid timer state")
	// ErrEmptyDuration is returned by Start when no time remains.
	ErrEmptyDuration = errors.New("empty duration")
	// ErrInvalidDuration is returned by Arm for negative durations.
	ErrInvalidDuration = errors.New("invalid duration")
)

// ------------------- Phase -------------------

type Phase int

const (
	Idle Phase = iota
	Running
	Paused
	Completed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ------------------- TimerState -------------------

// TimerState is the countdown's mutable state. 0 <= Remaining <= Total always holds.
type TimerState struct {
	Total     int
	Remaining int
	Phase     Phase
}

// armed returns the state for a fresh countdown of the given length.
func armed(total int) TimerState {
	s := TimerState{Total: total, Remaining: total, Phase: Idle}
	if total == 0 {
		s.Phase = Completed
	}
	return s
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Total     int
	Remaining int
	Clock     string
	Percent   float64
	Phase     Phase
}

func (s TimerState) snapshot() Snapshot {
	return Snapshot{
		Total:     s.Total,
		Remaining: s.Remaining,
		Clock:     FormatClock(s.Remaining),
		Percent:   Percent(s.Remaining, s.Total),
		Phase:     s.Phase,
	}
}

// ------------------- Derived values -------------------

// FormatClock renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Percent returns how much of total has elapsed, in [0, 100].
func Percent(remaining, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(total-remaining) * 100 / float64(total)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
