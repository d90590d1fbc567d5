package domain

import "fmt"

// VerificationError means the acting principal carried by a job no longer
// matches the user store. Permanent: the job is dead-lettered, never retried.
type VerificationError struct {
	UserID string
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("principal verification failed for user %s: %s", e.UserID, e.Reason)
}

func NewVerificationError(userID, reason string) error {
	return &VerificationError{UserID: userID, Reason: reason}
}
