package vm

import (
	"fmt"
	"strings"
)

// Phase is the host runtime's lifecycle phase as delivered by the
// lifecycle layer.
type Phase int32

const (
	PhaseBootstrap Phase = iota
	PhaseStart
	PhaseLive
	PhaseDead
)

// Mode selects how strictly checks are enforced.
type Mode int

const (
	// ModeSystem trusts the runtime's own startup and shutdown code.
	ModeSystem Mode = iota
	// ModeUser enforces every check.
	ModeUser
)

func (m Mode) String() string {
	if m == ModeUser {
		return "user-native"
	}
	return "system-native"
}

// Mode returns the enforcement mode for the phase.
func (p Phase) Mode() Mode {
	if p == PhaseLive {
		return ModeUser
	}
	return ModeSystem
}

func (p Phase) String() string {
	switch p {
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseStart:
		return "start"
	case PhaseLive:
		return "live"
	case PhaseDead:
		return "dead"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ParsePhase parses a phase name. "onload" and "primordial" are accepted as
// aliases of bootstrap.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bootstrap", "onload", "primordial":
		return PhaseBootstrap, nil
	case "start":
		return PhaseStart, nil
	case "live":
		return PhaseLive, nil
	case "dead":
		return PhaseDead, nil
	}
	return PhaseBootstrap, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
