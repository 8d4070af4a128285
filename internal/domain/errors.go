package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential     = errors.New("no credential available")
	ErrAuthExpired      = errors.New("authorization rejected")
	ErrPasswordRequired = errors.New("password change required")
	ErrTurnInFlight     = errors.New("a request is already in flight")
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionNotFound  = errors.New("session not found")
)

// ServiceError is a non-2xx service response that is neither an auth expiry
// nor a forced password change. Detail carries the service's structured
// "detail" field when the body was parseable, otherwise the trimmed raw
// body.
type ServiceError struct {
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Detail)
}
