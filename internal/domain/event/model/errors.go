package model

import "errors"

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventExists      = errors.New("event already exists")
	ErrCapacityExceeded = errors.New("event capacity exceeded")
	ErrEventNotOpen     = errors.New("event is not open for check-in")
)
