package storage

// unavailableError tags an underlying I/O error as a store outage while
// preserving the original error chain.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string { return e.err.Error() }

func (e *unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.err} }

// Unavailable wraps err so errors.Is(err, ErrUnavailable) reports true.
// Store adapters use it on connection and query failures; pure data
// errors (e.g. a corrupt record) are returned unwrapped.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{err: err}
}
