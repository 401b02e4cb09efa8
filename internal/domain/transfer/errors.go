package transfer

import "errors"

var (
	// ErrNotFound covers a missing patient or request, and a request whose
	// hospital does not match the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a caller acts on a patient it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned for invalid state transitions.
	ErrConflict = errors.New("conflict")
	// ErrNotEligible is returned when a match retry is requested for a
	// patient no longer in the searching state.
	ErrNotEligible = errors.New("patient not eligible for matching")
	// ErrMatchingFailed is returned when an explicit retry produces no
	// usable candidates.
	ErrMatchingFailed = errors.New("matching failed")
)

// ValidationError reports a bad input shape or range.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErr(msg string) error { return &ValidationError{Msg: msg} }
