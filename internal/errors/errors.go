// Package errors defines the failure taxonomy of the reference registry.
//
// Sentinels are matched with errors.Is; typed errors carry the offending key
// and match their sentinel through an Is method, so wrapping with %w keeps
// them recognisable.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the identity or slot does not resolve to a live reference.
	ErrNotFound = errors.New("reference not found")

	// ErrTypeMismatch: the reference resolved but fails the requested type.
	ErrTypeMismatch = errors.New("reference type mismatch")

	// ErrDuplicate: an identity or slot supplied by the caller already exists.
	ErrDuplicate = errors.New("reference already exists")

	// ErrPrecondition: a strict destroy was attempted while other sessions
	// were outstanding.
	ErrPrecondition = errors.New("precondition violated")

	// ErrClosed: the registry has been torn down.
	ErrClosed = errors.New("registry closed")
)

type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reference with %s not found", e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type TypeMismatchError struct {
	Key  string
	Have fmt.Stringer
	Want fmt.Stringer
}

func (e *TypeMismatchError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("type %v does not satisfy %v", e.Have, e.Want)
	}
	return fmt.Sprintf("reference with %s is %v, not %v", e.Key, e.Have, e.Want)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("reference with %s already exists", e.Key)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

type PreconditionError struct {
	Op       string
	Sessions int32
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s requires a single session, have %d", e.Op, e.Sessions)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// CastError reports a failed handle cast. An empty source and an
// incompatible target are both reported as not-found; a cast never yields a
// partially valid handle. When the source was bound, CastError also matches
// ErrTypeMismatch.
type CastError struct {
	Key  string
	Have fmt.Stringer
	Want fmt.Stringer
}

func (e *CastError) Error() string {
	if e.Have == nil {
		return fmt.Sprintf("cannot cast empty handle to %v", e.Want)
	}
	return fmt.Sprintf("cannot cast reference with %s from %v to %v", e.Key, e.Have, e.Want)
}

func (e *CastError) Is(target error) bool {
	return target == ErrNotFound || (target == ErrTypeMismatch && e.Have != nil)
}

// IndexCorruptError is the panic payload raised when the identity and slot
// indexes disagree. It signals a registry bug, never a caller error.
type IndexCorruptError struct {
	Key    string
	Detail string
}

func (e *IndexCorruptError) Error() string {
	return fmt.Sprintf("registry index corrupt at %s: %s", e.Key, e.Detail)
}

// LookupPanic is the panic payload of Handle.Must on an empty handle. The
// raising dispatch policy recovers it and returns Err.
type LookupPanic struct {
	Err error
}

func (p *LookupPanic) Error() string { return p.Err.Error() }
func (p *LookupPanic) Unwrap() error { return p.Err }

func NewNotFoundError(key string) error {
	return &NotFoundError{Key: key}
}

func NewTypeMismatchError(key string, have, want fmt.Stringer) error {
	return &TypeMismatchError{Key: key, Have: have, Want: want}
}

func NewDuplicateError(key string) error {
	return &DuplicateError{Key: key}
}

func NewCastError(key string, have, want fmt.Stringer) error {
	return &CastError{Key: key, Have: have, Want: want}
}

func NewPreconditionError(op string, sessions int32) error {
	return &PreconditionError{Op: op, Sessions: sessions}
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsTypeMismatch(err error) bool { return errors.Is(err, ErrTypeMismatch) }
func IsDuplicate(err error) bool    { return errors.Is(err, ErrDuplicate) }
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }
func IsClosed(err error) bool       { return errors.Is(err, ErrClosed) }
