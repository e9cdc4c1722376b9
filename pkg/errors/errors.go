// Package errors holds the error types shared by the registry clients, the
// host catalog adapter and the reconciliation engine.
//
// Every type matches one of the sentinels below through errors.Is, so
// callers branch on the sentinel and log the typed error.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Re-exported so callers only import one errors package.
var (
	New  = errors.New
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAPIKeyRequired      = errors.New("API key required")
	ErrAPIKeyInvalid       = errors.New("API key rejected")
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrCanceled            = errors.New("operation canceled")

	// ErrProtocol marks an explicit GraphQL error payload. It is never retried.
	ErrProtocol = errors.New("protocol error")

	// ErrAmbiguous means a lookup that needs one studio found several.
	ErrAmbiguous = errors.New("ambiguous match")

	// ErrAlreadyRunning means another batch run holds the lock file.
	ErrAlreadyRunning = errors.New("another run is already in progress")
)

// NotFoundError reports a studio, parent or registry record that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError rejects a caller-supplied value before any remote call.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError creates a ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError is a non-2xx answer from a registry or the host.
type APIError struct {
	Registry   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Registry, e.Message)
	}
	return fmt.Sprintf("%s answered HTTP %d: %s", e.Registry, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is maps the status code onto the sentinel callers branch on.
func (e *APIError) Is(target error) bool {
	sentinel := statusSentinel(e.StatusCode)
	return sentinel != nil && target == sentinel
}

func statusSentinel(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrAPIKeyInvalid
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= http.StatusInternalServerError:
		return ErrRegistryUnavailable
	}
	return nil
}

// NewAPIError creates an APIError.
func NewAPIError(registry string, statusCode int, message string) *APIError {
	return &APIError{Registry: registry, StatusCode: statusCode, Message: message}
}

// ProtocolError carries the messages of a GraphQL "errors" payload.
type ProtocolError struct {
	Registry string
	Messages []string
}

func (e *ProtocolError) Error() string {
	if len(e.Messages) == 0 {
		return e.Registry + " returned an error payload"
	}
	return fmt.Sprintf("%s returned errors: %s", e.Registry, strings.Join(e.Messages, "; "))
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// NewProtocolError creates a ProtocolError.
func NewProtocolError(registry string, messages ...string) *ProtocolError {
	return &ProtocolError{Registry: registry, Messages: messages}
}

// ConfigError is a problem with the config file, the environment or the
// registry list.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Component != "" {
		msg += " " + e.Component
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// Stage names the reconcile step that failed.
type Stage string

const (
	StageMatch  Stage = "match"
	StageParent Stage = "parent"
	StageApply  Stage = "apply"
)

// ReconcileError records why one studio could not be reconciled. Batch
// runs log it and move on.
type ReconcileError struct {
	StudioID string
	Name     string
	Stage    Stage
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("studio %q (%s): %s: %v", e.Name, e.StudioID, e.Stage, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// NewReconcileError creates a ReconcileError.
func NewReconcileError(studioID, name string, stage Stage, err error) *ReconcileError {
	return &ReconcileError{StudioID: studioID, Name: name, Stage: stage, Err: err}
}

// IOError wraps a local file or stream failure.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ResourceError wraps a failed create, update or fetch of a named record.
type ResourceError struct {
	Operation string
	Resource  string
	ID        string
	Err       error
}

func (e *ResourceError) Error() string {
	target := e.Resource
	if e.ID != "" {
		target += " " + e.ID
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, target, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NewResourceError creates a ResourceError.
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Err: err}
}

// ParseError is a payload that could not be decoded.
type ParseError struct {
	Format string
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s from %s: %v", e.Format, e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WrapIO returns nil for a nil err, else an IOError.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}

// WrapResource returns nil for a nil err, else a ResourceError.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse returns nil for a nil err, else a ParseError.
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Source: source, Err: err}
}

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool       { return errors.Is(err, ErrAlreadyExists) }
func IsValidationError(err error) bool     { return errors.Is(err, ErrInvalidInput) }
func IsRateLimited(err error) bool         { return errors.Is(err, ErrRateLimited) }
func IsRegistryUnavailable(err error) bool { return errors.Is(err, ErrRegistryUnavailable) }
func IsProtocol(err error) bool            { return errors.Is(err, ErrProtocol) }

// IsAPIKeyError reports a missing or rejected key.
func IsAPIKeyError(err error) bool {
	return errors.Is(err, ErrAPIKeyRequired) || errors.Is(err, ErrAPIKeyInvalid)
}

// IsCanceled reports caller cancellation, ours or the context's.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsTransient reports whether a failed call is worth retrying: network
// failures, deadlines, rate limiting, 5xx answers and broken response
// bodies. Protocol errors, key errors and cancellation never are.
func IsTransient(err error) bool {
	switch {
	case err == nil, IsCanceled(err), IsProtocol(err), IsAPIKeyError(err):
		return false
	case IsRateLimited(err), IsRegistryUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	// A dial failure arrives wrapped in a status-less APIError.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if apiErr := (*APIError)(nil); errors.As(err, &apiErr) {
		return false
	}
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
