package services

import "errors"

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports that a username or email is already taken.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthError reports bad credentials or an authorization mismatch.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// NotFoundError reports a missing target account.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// SelfDeleteError is returned when an admin tries to delete their own account.
type SelfDeleteError struct{}

func (e *SelfDeleteError) Error() string { return "you cannot delete your own account" }

// StoreUnavailableError wraps a storage failure. Its message is safe to
// show to end users; the cause is only reachable through Unwrap.
type StoreUnavailableError struct {
	Cause error
}

func (e *StoreUnavailableError) Error() string {
	return "the service is temporarily unavailable, please try again later"
}

func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

var (
	// ErrInvalidCredentials is the single error returned for every failed
	// login, whatever the cause.
	ErrInvalidCredentials = &AuthError{Message: "invalid username/email or password"}

	// ErrLoginRequired is returned when a request carries no usable session.
	ErrLoginRequired = &AuthError{Message: "please log in to continue"}

	// ErrAdminRequired is returned when a non-admin reaches an admin operation.
	ErrAdminRequired = &AuthError{Message: "administrator access required"}

	// ErrNotOwner is returned when a user edits a profile other than their own.
	ErrNotOwner = &AuthError{Message: "you can only edit your own profile"}

	errDuplicateAccount = &ConflictError{Message: "username or email is already registered"}
)

func unavailable(err error) error {
	var sue *StoreUnavailableError
	if errors.As(err, &sue) {
		return sue
	}
	return &StoreUnavailableError{Cause: err}
}
