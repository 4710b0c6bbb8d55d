package model

import "errors"

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketAlreadyUsed = errors.New("ticket already used")
	ErrTicketNotActive   = errors.New("ticket is not active")
	ErrOwnerMismatch     = errors.New("ticket owner changed")
	ErrInvalidPrice      = errors.New("invalid price")
)
