package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned to the handler layer. Validation and not-found
// errors are final; a transient store error is safe for the caller to retry
// wholesale because every multi-document operation is idempotent.
var (
	ErrSelfRequest    = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends = errors.New("users are already friends")
	ErrNoSuchRequest  = errors.New("friend request not found")
	ErrNotPending     = errors.New("friend request is not pending")

	ErrAlreadyLiked = errors.New("already liked this build")
	ErrNotLiked     = errors.New("build is not liked")

	ErrInvalidBuild  = errors.New("build name is required")
	ErrBuildNotFound = errors.New("build not found")

	ErrTransientStore = errors.New("temporary storage failure")
)

// IsValidation reports whether err is a precondition failure the caller
// should not retry.
func IsValidation(err error) bool {
	return errors.Is(err, ErrSelfRequest) ||
		errors.Is(err, ErrAlreadyFriends) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrAlreadyLiked) ||
		errors.Is(err, ErrNotLiked) ||
		errors.Is(err, ErrInvalidBuild)
}

// IsNotFound reports whether err means the addressed entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchRequest) || errors.Is(err, ErrBuildNotFound)
}

// transientStore wraps a raw store failure so handlers can classify it with
// errors.Is while the log line keeps the underlying cause.
func transientStore(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransientStore, op, err)
}
