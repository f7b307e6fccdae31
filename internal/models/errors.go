package models

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the component boundary it crossed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers bad caller input such as an empty corpus or query.
	KindValidation
	// KindIO covers missing or corrupt index and metadata files.
	KindIO
	// KindUpstream covers embedding and LLM service failures, including auth.
	KindUpstream
	// KindConsistency covers an index that does not belong to its metadata.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindUpstream:
		return "upstream"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrCorpusMismatch    = errors.New("corpus mismatch")
	ErrMissingCredential = errors.New("missing credential")
	ErrZeroVector        = errors.New("text has no embeddable content")
)

// Error is returned at component boundaries.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	// keep the innermost classification
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func ValidationError(op string, err error) error  { return newError(KindValidation, op, err) }
func IOError(op string, err error) error          { return newError(KindIO, op, err) }
func UpstreamError(op string, err error) error    { return newError(KindUpstream, op, err) }
func ConsistencyError(op string, err error) error { return newError(KindConsistency, op, err) }
