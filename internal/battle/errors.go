package battle

import "errors"

var (
	// ErrSessionLost is returned by Act when no live session exists; the caller should Load again.
	ErrSessionLost = errors.New("battle session lost")
	// ErrPermission is returned when the battle belongs to a different user.
	ErrPermission = errors.New("battle does not belong to caller")
	// ErrInvalidSkill is returned for a skill choice outside the actor's usable set.
	ErrInvalidSkill = errors.New("invalid skill choice")
	// ErrInvalidRequest is returned for malformed creation requests.
	ErrInvalidRequest = errors.New("invalid battle request")
	// ErrNotFound is returned when a battle, boss, or character record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSetupPending is returned while precomputed tables are still being generated.
	ErrSetupPending = errors.New("battle setup pending")
	// ErrAlreadyStarted is returned when a setup failure arrives after the first engagement.
	ErrAlreadyStarted = errors.New("battle already started")
	// ErrNotDurable is returned alongside a terminal snapshot whose final write did not land.
	ErrNotDurable = errors.New("battle result not yet durable")
)
