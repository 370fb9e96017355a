package model

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means the bearer token or the parsed identity is missing
	ErrAuth = errors.New("missing or invalid credentials")

	// ErrDuplicatePending means a pending request already blocks a new one
	ErrDuplicatePending = errors.New("a pending access request already exists")

	// ErrLookup means the pre-submission duplicate check could not reach the store
	ErrLookup = errors.New("unable to check existing access requests")

	// ErrSubmission means the store rejected or failed the create call
	ErrSubmission = errors.New("failed to submit access request")

	// ErrPoll means a background approval check failed
	ErrPoll = errors.New("approval check failed")

	ErrSubmitInFlight     = errors.New("an access request submission is already in progress")
	ErrUnknownModule      = errors.New("unknown module")
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrPollerStopped      = errors.New("approval poller is not running")

	ErrAccessRequestNotFound          = errors.New("access request not found")
	ErrAccessRequestAlreadyReviewed   = errors.New("access request already reviewed")
	ErrInvalidAccessRequest           = errors.New("invalid access request")
	ErrAccessRequestDatabaseNotFound  = errors.New("access request database file not found")
	ErrAccessRequestDatabaseCorrupted = errors.New("access request database file corrupted")
	ErrInvalidChecksum                = errors.New("invalid file checksum")
	ErrInvalidToken                   = errors.New("invalid token")
	ErrForbidden                      = errors.New("insufficient permissions")
)

// DuplicatePendingError carries the type of the request that blocks a new one
type DuplicatePendingError struct {
	Module       Module
	ExistingType RequestType
	RequestID    string
}

func (e *DuplicatePendingError) Error() string {
	return fmt.Sprintf("a pending %s request already exists for %s", e.ExistingType, e.Module)
}

func (e *DuplicatePendingError) Is(target error) bool {
	return target == ErrDuplicatePending
}

// SubmissionError wraps a failed create call; Message is the store-provided text when there is one
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrSubmission.Error()
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// StoreError is a non-2xx answer from the access request store
type StoreError struct {
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("store returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("store returned %d", e.StatusCode)
}

// StoreMessage extracts the store-provided message from err, if any
func StoreMessage(err error) string {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Message
	}
	return ""
}
