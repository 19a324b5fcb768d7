package session

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a sort session
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateClassifying
	StateRelocating
	StateCompleted
	StateFailed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateClassifying:
		return "classifying"
	case StateRelocating:
		return "relocating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Policy decides what a session does after a per-file failure
type Policy int

const (
	// PolicyContinue records the failure and moves on to the next file
	PolicyContinue Policy = iota
	// PolicyAbort stops the session at the first failure
	PolicyAbort
)

// String returns the config spelling of the policy
func (p Policy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	default:
		return "continue"
	}
}

// ParsePolicy parses "continue" or "abort". Empty means continue.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return PolicyContinue, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicyContinue, fmt.Errorf("unknown failure policy %q (want continue or abort)", s)
	}
}
