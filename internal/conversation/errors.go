package conversation

import "github.com/pkg/errors"

var (
	// ErrEmptyInput rejects a submission whose text is blank after trimming.
	ErrEmptyInput = errors.New("message is empty")
	// ErrSubmitting rejects a submission while another one is in flight.
	ErrSubmitting = errors.New("a submission is already in flight")
	// ErrTurnNotFound is returned when no turn matches the requested id and role.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrInvalidFeedback rejects feedback kinds other than like and dislike.
	ErrInvalidFeedback = errors.New("invalid feedback kind")
	// ErrNoClipboard is reported by Copy when no clipboard is wired.
	ErrNoClipboard = errors.New("clipboard unavailable")
)

// IsRejection reports whether err is a validation rejection that callers
// should ignore silently.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrSubmitting)
}
