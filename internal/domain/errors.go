package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidIdentifier         = errors.New("invalid content identifier")
	ErrNoCaptionsAvailable       = errors.New("no captions available")
	ErrCaptionParse              = errors.New("failed to parse captions")
	ErrIncompleteTransformResult = errors.New("incomplete transform result")
	ErrTransformParse            = errors.New("failed to parse transform result")
	ErrUnknownChannel            = errors.New("channel not in watched set")
	ErrNoChannelsAvailable       = errors.New("no channels could be initialized")
	ErrChannelNotFound           = errors.New("channel not found")
	ErrAlreadyProcessed          = errors.New("item already processed")
	ErrAlreadySubscribed         = errors.New("email already subscribed")
	ErrTransient                 = errors.New("transient upstream error")
)

// IncompleteTransformError names the required sections missing from a
// transform result.
type IncompleteTransformError struct {
	Missing []string
}

func (e *IncompleteTransformError) Error() string {
	return fmt.Sprintf("%s: missing keys: %s", ErrIncompleteTransformResult, strings.Join(e.Missing, ", "))
}

func (e *IncompleteTransformError) Is(target error) bool {
	return target == ErrIncompleteTransformResult
}

// TransientError marks a network or provider failure that the next cycle may
// not hit again.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
