package workflow

import "errors"

var (
	// ErrInvalidState is returned when a trigger is fired from a state that
	// does not permit it, including any trigger fired on a terminal request
	ErrInvalidState = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every candidate transition for a
	// trigger is blocked by its guard
	ErrGuardFailed = errors.New("guard condition failed")
)
