package core

import "errors"

// ErrorKind classifies failures so callers can react without string matching.
type ErrorKind string

// ErrorKind values.
const (
	ErrCycleDetected     ErrorKind = "CycleDetected"
	ErrInvalidIdentifier ErrorKind = "InvalidIdentifier"
	ErrUnknownReference  ErrorKind = "UnknownReference"
	ErrUnknownSource     ErrorKind = "UnknownSource"
	ErrUnknownAsset      ErrorKind = "UnknownAsset"
	ErrRender            ErrorKind = "RenderError"
	ErrMaterialization   ErrorKind = "MaterializationError"
	ErrTimeout           ErrorKind = "Timeout"
	ErrCancelled         ErrorKind = "Cancelled"
	ErrTransform         ErrorKind = "TransformError"
	ErrInvalidModel      ErrorKind = "InvalidModel"
	ErrUnknown           ErrorKind = ""
)

// KindedError is implemented by errors that carry an ErrorKind.
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first error in err's chain that carries one.
func KindOf(err error) ErrorKind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return ErrUnknown
}

// IsKind reports whether err's chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// KindError attaches a kind to an arbitrary error.
type KindError struct {
	K   ErrorKind
	Err error
}

func (e *KindError) Error() string   { return e.Err.Error() }
func (e *KindError) Unwrap() error   { return e.Err }
func (e *KindError) Kind() ErrorKind { return e.K }

// WithKind wraps err so that KindOf reports kind.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{K: kind, Err: err}
}
