package gitstate

import (
	"errors"
	"fmt"
)

// ErrRemoteEmpty is returned when the remote repository advertises no refs
// at all, so there is nothing to clone or update to.
var ErrRemoteEmpty = errors.New("remote repository is empty")

// ErrRevisionNotFound is returned when the desired revision does not exist
// in the remote repository and cannot be interpreted as a raw SHA1.
var ErrRevisionNotFound = errors.New("revision not found in remote repository")

// ErrNotFastForward is returned when an update would not be a fast-forward
// and force-reset was not requested.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrLocalChanges is returned when a branch checkout would discard
// uncommitted local changes and force-checkout was not requested.
var ErrLocalChanges = errors.New("uncommitted local changes present")

// ErrInvalidState is returned when a DesiredState fails validation.
var ErrInvalidState = errors.New("invalid desired state")

// ErrAmbiguousUnset is returned when a config unset matches multiple values
// of a multivar and unsetting all of them was not requested.
var ErrAmbiguousUnset = errors.New("multiple config values matched")

// ErrConfirmationMismatch is returned when a config value read back after a
// write does not match what was requested.
var ErrConfirmationMismatch = errors.New("config read-back does not match requested value")

// ErrRemoteQuery is returned when listing remote refs or fetching from the
// remote fails.
var ErrRemoteQuery = errors.New("remote query failed")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while
// preserving the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
