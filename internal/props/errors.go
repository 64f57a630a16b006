package props

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound is returned by required lookups for absent keys.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNoEvaluator is returned when an expression value is resolved and no
	// Evaluator is registered.
	ErrNoEvaluator = errors.New("no evaluator registered")
	// ErrCacheNil is returned when a cached expression evaluates to null.
	ErrCacheNil = errors.New("cannot cache null result")
	// ErrInvalidEncoding is returned for encoded values with unknown tags.
	ErrInvalidEncoding = errors.New("invalid encoded value")
	// ErrNullResult is returned by an Evaluator whose expression yields no
	// value.
	ErrNullResult = errors.New("null result")
)

// SyntaxError reports a malformed logical line of a property document.
type SyntaxError struct {
	Source string
	Line   int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in property file '%s', line %d: %v", e.Source, e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
