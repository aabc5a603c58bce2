package dedupe

import "errors"

var (
	// ErrInFlight is returned when the event is already being checked.
	ErrInFlight = errors.New("event check already in flight")
	// ErrFull is returned when too many checks are in flight.
	ErrFull = errors.New("in-flight guard is full")
)
