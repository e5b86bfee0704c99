package soniox

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrMalformedMessage marks an inbound frame that could not be decoded
	ErrMalformedMessage = errors.New("malformed message")
	// ErrSessionClosed is returned when sending on a closed session
	ErrSessionClosed = errors.New("session closed")
)

// recoverableCodes are service errors worth reconnecting for:
// request timeout, bad gateway and service unavailable.
var recoverableCodes = []int{408, 502, 503}

// ServiceError is an error payload sent by the service
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("soniox error %d: %s", e.Code, e.Message)
}

// Recoverable reports whether a new connection may succeed
func (e *ServiceError) Recoverable() bool {
	return slices.Contains(recoverableCodes, e.Code)
}

// IsRecoverable reports whether err is a recoverable service error
func IsRecoverable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Recoverable()
}
