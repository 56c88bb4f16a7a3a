package tokenstore

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyAccessToken is returned by Set when the pair carries no access token.
	ErrEmptyAccessToken = errors.New("access token is empty")
	// ErrBackendUnavailable marks persistence failures of the KeyValue backend.
	ErrBackendUnavailable = errors.New("token backend unavailable")
)

// StoreError describes a failed persistence operation.
type StoreError struct {
	Operation string // "load", "set", "clear"
	Keys      []string
	Cause     error
}

func (e *StoreError) Error() string {
	msg := e.Operation + " credentials"
	if len(e.Keys) > 0 {
		msg += " [" + strings.Join(e.Keys, ",") + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports every StoreError as ErrBackendUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrBackendUnavailable
}
