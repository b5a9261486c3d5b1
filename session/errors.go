package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable wraps any network or protocol failure talking to the store.
	ErrBackendUnavailable = errors.New("session backend unavailable")

	// ErrDecodeFailure is returned when stored bytes for a field cannot be decoded.
	ErrDecodeFailure = errors.New("session value decode failure")

	// ErrUnsupportedValueType is returned by Set when a value falls outside the
	// codec's closed set of storable types. Nothing is buffered when it fires.
	ErrUnsupportedValueType = errors.New("unsupported session value type")

	// ErrNotRepresentable is returned by View when a stored value has no
	// external (JSON) representation.
	ErrNotRepresentable = errors.New("session value not representable in external view")
)

// DecodeError reports a single field whose stored bytes could not be decoded.
// It matches ErrDecodeFailure with errors.Is.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("session: field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
