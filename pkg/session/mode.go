package session

import (
	"errors"
	"fmt"
)

// ErrInvalidMode reports a sampling mode outside the known set. It is a
// configuration error and is never silently defaulted.
var ErrInvalidMode = errors.New("invalid sampling mode")

// Mode selects what the sampling engine's ticks measure.
type Mode int

const (
	// ModeWall samples elapsed wall-clock time.
	ModeWall Mode = iota + 1
	// ModeCPU samples consumed CPU time.
	ModeCPU
)

// String returns the selector name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeWall:
		return "wall"
	case ModeCPU:
		return "cpu"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a selector string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "wall":
		return ModeWall, nil
	case "cpu":
		return ModeCPU, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
