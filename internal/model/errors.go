package model

import (
	"errors"
	"fmt"
)

// ErrorKind names one category of the error taxonomy.
type ErrorKind string

const (
	KindInvalidReference       ErrorKind = "invalid_reference"
	KindResolution             ErrorKind = "resolution_error"
	KindNoDownloadableQuality  ErrorKind = "no_downloadable_quality"
	KindInvalidTierSelection   ErrorKind = "invalid_tier_selection"
	KindNoMatchingStream       ErrorKind = "no_matching_stream"
	KindOperationInProgress    ErrorKind = "operation_in_progress"
	KindDestinationUnavailable ErrorKind = "destination_unavailable"
	KindDownload               ErrorKind = "download_error"
	KindCancelled              ErrorKind = "cancelled"
)

// Error is a categorized failure. errors.Is matches any *Error of the same
// kind, so the sentinels below can be used as targets. A cancelled error
// also matches ErrDownload.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindDownload && e.Kind == KindCancelled
}

var (
	ErrInvalidReference       = &Error{Kind: KindInvalidReference}
	ErrResolution             = &Error{Kind: KindResolution}
	ErrNoDownloadableQuality  = &Error{Kind: KindNoDownloadableQuality}
	ErrInvalidTierSelection   = &Error{Kind: KindInvalidTierSelection}
	ErrNoMatchingStream       = &Error{Kind: KindNoMatchingStream}
	ErrOperationInProgress    = &Error{Kind: KindOperationInProgress}
	ErrDestinationUnavailable = &Error{Kind: KindDestinationUnavailable}
	ErrDownload               = &Error{Kind: KindDownload}
	ErrCancelled              = &Error{Kind: KindCancelled}
)

// NewError builds a categorized error wrapping cause (which may be nil).
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Errorf builds a categorized error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Ensure returns err unchanged when it already carries a kind, and wraps it
// as kind otherwise.
func Ensure(kind ErrorKind, msg string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return NewError(kind, msg, err)
}
