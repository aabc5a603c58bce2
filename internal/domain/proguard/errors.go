package proguard

import "errors"

var (
	// ErrLookupFailed is the default cause of a failed lookup.
	ErrLookupFailed = errors.New("debug file lookup failed")
	// ErrNoLookup is reported when the checker has no registry configured.
	ErrNoLookup = errors.New("no debug file lookup configured")
)
