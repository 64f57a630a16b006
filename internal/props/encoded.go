package props

import (
	"fmt"
	"strings"
)

// Sentinel marks an encoded value. Property files spell it "\u0000".
const Sentinel = "\x00"

// Tag is a processing step of an encoded value.
type Tag uint8

const (
	// TagJavaScript evaluates the payload with the registered Evaluator.
	TagJavaScript Tag = 1 << iota
	// TagVariants appends the values of "<key>-<variant>" for every variant.
	TagVariants
	// TagCache stores the computed value back under the original key.
	TagCache
)

var tagNames = map[string]Tag{
	"JavaScript": TagJavaScript,
	"Variants":   TagVariants,
	"Cache":      TagCache,
}

// Encoded is a decoded "\x00<tags>:<payload>" value.
type Encoded struct {
	Tags    Tag
	Payload string
	// Literal is set for the "\x00\x00<payload>" escape.
	Literal bool
}

// Has reports whether tag is set.
func (e Encoded) Has(tag Tag) bool {
	return e.Tags&tag != 0
}

// Decode splits raw into its tags and payload. It reports false for values
// that are not encoded.
func Decode(raw string) (Encoded, bool, error) {
	if !strings.HasPrefix(raw, Sentinel) {
		return Encoded{}, false, nil
	}
	if strings.HasPrefix(raw, Sentinel+Sentinel) {
		return Encoded{Literal: true, Payload: raw[2:]}, true, nil
	}
	spec, payload, ok := strings.Cut(raw[1:], ":")
	if !ok {
		return Encoded{}, false, nil
	}

	enc := Encoded{Payload: payload}
	for _, name := range strings.Split(spec, "/") {
		tag, ok := tagNames[name]
		if !ok {
			return Encoded{}, false, fmt.Errorf("%w: unknown preprocessing entry %q", ErrInvalidEncoding, name)
		}
		enc.Tags |= tag
	}
	return enc, true, nil
}

// Evaluator computes the value of an expression payload.
type Evaluator interface {
	// Evaluate returns the string value of expr. An expression without a
	// value yields ErrNullResult.
	Evaluate(expr string, bindings map[string]string) (string, error)
}
