package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ConfigurationError means the weight document is missing or malformed. It is
// fatal for a whole run.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// DataGapError marks a missing input (volume, rank, snapshot) for one entity.
// Callers default the value and continue.
type DataGapError struct {
	Entity string
	ID     string
	Field  string
}

func (e *DataGapError) Error() string {
	return "data gap: " + e.Entity + " " + e.ID + ": missing " + e.Field
}

// ExternalDependencyError wraps a failed rate-limited or network lookup for one
// entity. Callers fall back to the last-known value.
type ExternalDependencyError struct {
	Service string
	Err     error
}

func (e *ExternalDependencyError) Error() string {
	return "external " + e.Service + ": " + e.Err.Error()
}
func (e *ExternalDependencyError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed upsert of one entity. Callers skip the entity
// and count the failure.
type PersistenceError struct {
	Table string
	Key   string
	Err   error
}

func (e *PersistenceError) Error() string {
	return "persist " + e.Table + " " + e.Key + ": " + e.Err.Error()
}
func (e *PersistenceError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err with msg as a ConfigurationError.
func NewConfigurationError(err error, msg string) error {
	return &ConfigurationError{Err: eris.Wrap(err, msg)}
}

// NewPersistenceError wraps err as a PersistenceError for a table row.
func NewPersistenceError(err error, table, key string) error {
	return &PersistenceError{Table: table, Key: key, Err: err}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error chain holds a TransientError or a
// network timeout, reset or refused connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for statuses that are safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
