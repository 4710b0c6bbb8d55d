package model

import "errors"

var ErrImmutable = errors.New("transfer records are append-only")
