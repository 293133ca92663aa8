package exchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed remote call. The execution policy retries
// Transient errors, surfaces Permanent ones immediately and resolves
// Ambiguous ones via an order-status query before any resubmission.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindPermanent
	KindAmbiguous
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Error wraps a gateway failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from an error chain. Errors that never
// carried a Kind are treated as Ambiguous: without a classification the only
// safe assumption for a mutating call is "outcome unknown".
func KindOf(err error) ErrorKind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindAmbiguous
}

func IsTransient(err error) bool { return err != nil && KindOf(err) == KindTransient }
func IsPermanent(err error) bool { return err != nil && KindOf(err) == KindPermanent }
func IsAmbiguous(err error) bool { return err != nil && KindOf(err) == KindAmbiguous }
