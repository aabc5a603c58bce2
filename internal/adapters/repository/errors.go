package repository

import "errors"

var (
	ErrNotFound       = errors.New("diagnosis not found")
	ErrInvalidEventID = errors.New("invalid event id")
)
