package conn

import (
	"errors"
	"fmt"
)

var ErrTimeout = errors.New("connect timed out")
var ErrUnreachable = errors.New("authority unreachable")
var ErrConnectInProgress = errors.New("connect already in progress")
var ErrNotConnected = errors.New("not connected")
var ErrDisconnected = errors.New("connection lost")
var ErrCancelled = errors.New("cancelled by disconnect")

type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindUnreachable  ErrorKind = "unreachable"
	KindInProgress   ErrorKind = "in_progress"
	KindClosed       ErrorKind = "closed"
	KindDisconnected ErrorKind = "disconnected"
)

// ConnectionError is every transport-level failure the manager reports.
// All kinds are retryable by the caller; the manager never retries itself.
type ConnectionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func connErr(kind ErrorKind, sentinel, cause error) error {
	if cause == nil {
		return &ConnectionError{Kind: kind, Err: sentinel}
	}
	return &ConnectionError{Kind: kind, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
