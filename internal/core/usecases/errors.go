package usecases

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnknownPOI           = errors.New("unknown poi")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrUnknownTheme         = errors.New("unknown theme")
	ErrInvalidTransportMode = errors.New("invalid transport mode")
)
