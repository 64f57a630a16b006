package variant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncludeCycle is returned when an immediate include refers back to a
// suffix that is still being processed.
var ErrIncludeCycle = errors.New("include cycle")

// SyntaxError reports a malformed line of a rule document.
type SyntaxError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in configuration file '%s', line %d, %v: '%s'", e.Source, e.Line, e.Err, e.Text)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func cycleError(chain []string, suffix string) error {
	names := make([]string, 0, len(chain)+1)
	for _, s := range append(chain[:len(chain):len(chain)], suffix) {
		names = append(names, fmt.Sprintf("%q", s))
	}
	return fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(names, " -> "))
}
