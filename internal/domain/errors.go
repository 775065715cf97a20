package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quest session is not in the catalog.
	ErrSessionNotFound = errors.New("quest session not found")
	// ErrWordNotFound indicates a word that is not part of the quest session.
	ErrWordNotFound = errors.New("word not found in session")
	// ErrAttemptNotFound is returned when completion is requested for a session the user never started.
	ErrAttemptNotFound = errors.New("no attempt in progress for session")
	// ErrWordStateNotFound indicates the user has never seen the word.
	ErrWordStateNotFound = errors.New("word state not found")

	// ErrMissingUser is returned when a call carries no user identity.
	ErrMissingUser = errors.New("user id is required")
	// ErrInvalidAnswer indicates an answer without a word id.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrInvalidAmount is returned for negative XP credits.
	ErrInvalidAmount = errors.New("xp amount must not be negative")
	// ErrInvalidSnapshot indicates a structurally malformed guest snapshot.
	ErrInvalidSnapshot = errors.New("invalid guest progress snapshot")

	// ErrStoreUnavailable marks transient storage failures; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps a failed storage operation. It matches both ErrStoreUnavailable and the
// underlying driver error with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrWordNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrWordStateNotFound)
}

// IsValidation reports whether err was caused by malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingUser) ||
		errors.Is(err, ErrInvalidAnswer) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSnapshot)
}
