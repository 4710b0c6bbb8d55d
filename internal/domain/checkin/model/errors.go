package model

import "errors"

var (
	ErrDuplicateCheckIn = errors.New("ticket already has a successful check-in")
	ErrImmutable        = errors.New("check-in records are append-only")
)
