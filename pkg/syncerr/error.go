// Package syncerr classifies failures raised while syncing from the POS.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of a sync error.
type Kind string

const (
	KindAuth           Kind = "auth"
	KindNetwork        Kind = "network"
	KindUpstreamFormat Kind = "upstream_format"
	KindStorage        Kind = "storage"
)

// Error is a classified sync failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Auth creates an authentication error.
func Auth(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// Network creates a transport error.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// UpstreamFormat creates an error for an unexpected upstream payload.
func UpstreamFormat(op string, err error) *Error {
	return &Error{Kind: KindUpstreamFormat, Op: op, Err: err}
}

// Storage creates a persistence error.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// Is reports whether err is a sync error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or an empty Kind if it is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
