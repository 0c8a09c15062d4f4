package domain

import "errors"

var (
	ErrBroadcastNotFound = errors.New("broadcast not found")
	ErrNoLiveBroadcast   = errors.New("no live broadcast")
)
