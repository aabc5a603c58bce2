package debugfiles

import "errors"

var (
	// ErrNotFound is returned when a file does not exist in the project.
	ErrNotFound = errors.New("debug file not found")
	// ErrInvalidFile is returned for files missing required fields.
	ErrInvalidFile = errors.New("invalid debug file")
	// ErrUnsupportedDriver is returned by Open for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrUpstream is returned when the remote registry answers with an error.
	ErrUpstream = errors.New("debug file registry error")
)
