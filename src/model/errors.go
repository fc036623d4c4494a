package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingInfo signals that a recommendation precondition is unmet
	ErrMissingInfo = errors.New("missing trip information")
	// ErrIDSpaceExhausted is returned when every 3-digit id is taken
	ErrIDSpaceExhausted = errors.New("no free user id left")
)

// OracleError covers timeouts, transport failures and unusable replies
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// StorageError is fatal for the turn that produced it
type StorageError struct {
	Op     string
	UserID string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s (user %s): %v", e.Op, e.UserID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError reports a malformed argument or configuration value
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// InputAmbiguityError means the user has to be asked again
type InputAmbiguityError struct {
	Field    string
	Attempts int
}

func (e *InputAmbiguityError) Error() string {
	return fmt.Sprintf("could not understand %s after %d attempt(s)", e.Field, e.Attempts)
}

// MissingInfoError names the trip fields the gate found empty
type MissingInfoError struct {
	Fields []string
}

func (e *MissingInfoError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingInfo, strings.Join(e.Fields, ", "))
}

func (e *MissingInfoError) Unwrap() error { return ErrMissingInfo }
