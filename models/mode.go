package models

import (
	"fmt"
	"strings"
)

// Mode is the operating mode of a bot instance.
//
// Modes are compared by an explicit precedence rank, not by their
// declaration order. Lower ranks are more severe.
type Mode string

const (
	// ModeKilled means the process must not serve. Terminal.
	ModeKilled Mode = "killed"

	// ModeStopped means the process must not serve until an operator
	// clears the signal and restarts it.
	ModeStopped Mode = "stopped"

	// ModeMaintenance means the process serves privileged users only.
	ModeMaintenance Mode = "maintenance"

	// ModeNormal means the process serves all users.
	ModeNormal Mode = "normal"
)

// StatusPrefix is the marker written in front of the mode token on the
// first line of a status probe file.
const StatusPrefix = "Bot mode: "

// unknownPrecedence ranks anything unrecognised after ModeNormal so it can
// never win a severity comparison.
const unknownPrecedence = 100

var precedence = map[Mode]int{
	ModeKilled:      0,
	ModeStopped:     1,
	ModeMaintenance: 2,
	ModeNormal:      10,
}

var activity = map[Mode]string{
	ModeKilled:      "Deactivated",
	ModeStopped:     "Deactivated",
	ModeMaintenance: "Maintenance",
	ModeNormal:      "Online",
}

// AllModes returns every known mode, most severe first.
func AllModes() []Mode {
	return []Mode{ModeKilled, ModeStopped, ModeMaintenance, ModeNormal}
}

// ParseMode converts a persisted token back into a Mode.
func ParseMode(token string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(token)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, token)
	}
	return m, nil
}

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	_, ok := precedence[m]
	return ok
}

// Precedence returns the severity rank of m.
func (m Mode) Precedence() int {
	if p, ok := precedence[m]; ok {
		return p
	}
	return unknownPrecedence
}

// Token returns the machine token stored in files and the database.
func (m Mode) Token() string {
	return string(m)
}

// Activity returns the presence label shown while m is in effect.
func (m Mode) Activity() string {
	return activity[m]
}

// Deactivated reports whether m forbids normal service entirely.
func (m Mode) Deactivated() bool {
	return m == ModeStopped || m == ModeKilled
}

func (m Mode) String() string {
	return string(m)
}

// MostSevere returns whichever of a and b has the lower precedence rank.
// Ties resolve to a.
func MostSevere(a, b Mode) Mode {
	if b.Precedence() < a.Precedence() {
		return b
	}
	return a
}

// MostSevereOf folds modes with MostSevere, starting from ModeNormal.
func MostSevereOf(modes ...Mode) Mode {
	result := ModeNormal
	for _, m := range modes {
		result = MostSevere(result, m)
	}
	return result
}
