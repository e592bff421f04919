// Package griberr defines the failure kinds reported while translating GRIB
// messages to cubes and back.
//
// Every error produced by the translators carries one of the sentinel kinds
// below, so callers can branch with errors.Is:
//
//	if errors.Is(err, griberr.ErrUnsupportedGridKind) { ... }
package griberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds.
var (
	ErrUnsupportedGridKind       = errors.New("unsupported grid kind")
	ErrUnsupportedSurfaceType    = errors.New("unsupported surface type")
	ErrMalformedSection          = errors.New("malformed section")
	ErrInvalidGridParameter      = errors.New("invalid grid parameter")
	ErrUnsupportedEditionFeature = errors.New("unsupported edition feature")
	ErrUnsupportedTranslation    = errors.New("unsupported translation")
)

// Error is a failure of a known kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newf(kind error, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// UnsupportedGridKind reports a grid definition template that has no translation.
func UnsupportedGridKind(template int64) error {
	return newf(ErrUnsupportedGridKind, "grid definition template %d is not supported", template)
}

// UnsupportedSurfaceType reports a fixed surface type that has no coordinate.
// It is not fatal: translators log it and carry on.
func UnsupportedSurfaceType(code int64) error {
	return newf(ErrUnsupportedSurfaceType, "fixed surface type %d has no known coordinate", code)
}

// MalformedSection reports a required key that is absent from a section.
func MalformedSection(section int, key string) error {
	return newf(ErrMalformedSection, "section %d: required key %q is absent", section, key)
}

// MalformedSectionf reports a structural problem with a section.
func MalformedSectionf(format string, args ...interface{}) error {
	return newf(ErrMalformedSection, format, args...)
}

// InvalidGridParameterf reports a grid value that is present but out of range.
func InvalidGridParameterf(format string, args ...interface{}) error {
	return newf(ErrInvalidGridParameter, format, args...)
}

// UnsupportedEditionFeaturef reports a feature valid in the GRIB edition but
// not handled here.
func UnsupportedEditionFeaturef(format string, args ...interface{}) error {
	return newf(ErrUnsupportedEditionFeature, format, args...)
}

// Unsupportedf reports a value combination the translators cannot express.
func Unsupportedf(format string, args ...interface{}) error {
	return newf(ErrUnsupportedTranslation, format, args...)
}

// TranslationError wraps any translator failure with the identity of the
// message that caused it.
type TranslationError struct {
	// Message identifies the message, usually "path@offset".
	Message string
	Err     error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translating message %s: %v", e.Message, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Wrap attaches message identity to err. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &TranslationError{Message: message, Err: err}
}
