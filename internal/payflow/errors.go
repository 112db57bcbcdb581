package payflow

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ValidationError rejects bad input at initiation: malformed phone number,
// out-of-range amount, unknown target. Not retryable.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NetworkError wraps a failed provider call. Retryable: the caller may
// re-invoke initiation, and already-created sessions self-heal through
// reconciliation.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: provider timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: provider unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// networkErr classifies a gateway failure, tagging timeouts so they can be
// logged as TIMEOUT events and counted separately.
func networkErr(op string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	if !timeout {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			timeout = true
		}
	}
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

// DataError marks a payload the engine cannot act on right now: missing
// callback fields, incomplete metadata, unparseable dates. The session (if
// any) stays PENDING so reconciliation can retry with fresh provider data.
type DataError struct {
	msg string
	err error
}

func (e *DataError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *DataError) Unwrap() error { return e.err }

func dataErr(msg string, err error) error {
	return &DataError{msg: msg, err: err}
}

func IsData(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
