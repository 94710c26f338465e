package entity

import (
	"errors"
	"fmt"
)

// Kind is the closed error taxonomy from spec.md §7. Components tag errors
// with a Kind instead of defining their own error types, so callers can
// branch with errors.Is against the sentinel per kind regardless of which
// component produced the error.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindFormat             Kind = "format"
	KindIO                  Kind = "io"
	KindDB                  Kind = "db"
	KindNotReady            Kind = "not_ready"
	KindNotFound            Kind = "not_found"
	KindPolicy              Kind = "policy"
	KindProviderRequest     Kind = "provider_request"
	KindDimensionMismatch   Kind = "dimension_mismatch"
	KindCancelled           Kind = "cancelled"
)

// Sentinel values, one per Kind, so errors.Is(err, entity.ErrNotFound) works
// even through wrapping.
var (
	ErrValidation      = errors.New("validation error")
	ErrFormat          = errors.New("format error")
	ErrIO              = errors.New("io error")
	ErrDB              = errors.New("db error")
	ErrNotReady        = errors.New("not ready")
	ErrNotFound        = errors.New("not found")
	ErrPolicy          = errors.New("policy violation")
	ErrProviderRequest = errors.New("provider request error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrCancelled       = errors.New("cancelled")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindFormat:
		return ErrFormat
	case KindIO:
		return ErrIO
	case KindDB:
		return ErrDB
	case KindNotReady:
		return ErrNotReady
	case KindNotFound:
		return ErrNotFound
	case KindPolicy:
		return ErrPolicy
	case KindProviderRequest:
		return ErrProviderRequest
	case KindDimensionMismatch:
		return ErrDimensionMismatch
	case KindCancelled:
		return ErrCancelled
	default:
		return errors.New(string(k))
	}
}

// Error is the structured, wrapped error every public operation returns.
// It carries enough context (operation, record id, file name) to satisfy
// spec.md §7's propagation policy without resorting to exceptions.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	File string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ID != "" {
		msg += fmt.Sprintf(" id=%s", e.ID)
	}
	if e.File != "" {
		msg += fmt.Sprintf(" file=%s", e.File)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, entity.ErrNotFound) (etc) work against an *Error
// by comparing its Kind's sentinel.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// Wrap builds a Kind-tagged *Error with operation/id/file context.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapID is Wrap with a record id attached.
func WrapID(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// WrapFile is Wrap with a file name attached.
func WrapFile(kind Kind, op, file string, err error) *Error {
	return &Error{Kind: kind, Op: op, File: file, Err: err}
}

// New builds a Kind-tagged *Error from a message rather than a wrapped error.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *entity.Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
