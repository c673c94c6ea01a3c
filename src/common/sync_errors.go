package common

import (
	"errors"
	"fmt"
)

// SyncErrType classifies the failures of the synchronization engine.
type SyncErrType uint32

const (
	// Untracked means the file is outside any repository or is ignored.
	Untracked SyncErrType = iota
	// Protocol is a malformed wire message.
	Protocol
	// ResyncNeeded means an operation referenced an unseen predecessor.
	ResyncNeeded
	// UserActionable errors are reported to the user and change nothing.
	UserActionable
	// Internal is a broken invariant.
	Internal
	// RepositoryCommand is a failed repository command.
	RepositoryCommand
)

var syncErrTypes = []string{
	"Untracked",
	"Protocol",
	"Resync Needed",
	"User Actionable",
	"Internal",
	"Repository Command",
}

// String ...
func (t SyncErrType) String() string {
	if int(t) < len(syncErrTypes) {
		return syncErrTypes[t]
	}
	return "Unknown"
}

// SyncErr is an error raised by one of the engine operations.
type SyncErr struct {
	op      string
	errType SyncErrType
	msg     string
	cause   error
}

// NewSyncErr ...
func NewSyncErr(op string, errType SyncErrType, msg string) SyncErr {
	return SyncErr{
		op:      op,
		errType: errType,
		msg:     msg,
	}
}

// WrapSyncErr attaches a SyncErrType to an underlying error.
func WrapSyncErr(op string, errType SyncErrType, cause error) SyncErr {
	return SyncErr{
		op:      op,
		errType: errType,
		msg:     cause.Error(),
		cause:   cause,
	}
}

// Error ...
func (e SyncErr) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.op, e.errType, e.msg)
}

// Unwrap returns the wrapped cause, if any.
func (e SyncErr) Unwrap() error {
	return e.cause
}

// Type returns the classification of the error.
func (e SyncErr) Type() SyncErrType {
	return e.errType
}

// Message returns the bare message, without operation and type.
func (e SyncErr) Message() string {
	return e.msg
}

// IsSync reports whether err, or an error it wraps, is a SyncErr of type t.
func IsSync(err error, t SyncErrType) bool {
	var syncErr SyncErr
	return errors.As(err, &syncErr) && syncErr.errType == t
}
