// Package variant computes the ordered list of configuration variants that
// apply to the running environment.
//
// Rules are read from ".configuration" documents and from the
// ".configuration-<suffix>" documents they include. Each rule line names a
// set of attribute tests and the variant tags added when all of them pass.
// Includes come in two flavours: "@include.immediately" processes the named
// documents before the next line, "@include.afterwards" queues them behind
// everything already pending.
package variant

import (
	"bufio"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/redhatinsights/layerconf/internal/facts"
	"github.com/redhatinsights/layerconf/internal/source"
)

// DefaultBase is the document name rule files are derived from.
const DefaultBase = ".configuration"

// maxLineLength bounds a single rule line.
const maxLineLength = 1024 * 1024

// Options tune a resolution.
type Options struct {
	// Base is the document name; DefaultBase when empty.
	Base   string
	Logger *slog.Logger
}

// Result is the outcome of a resolution.
type Result struct {
	Variants    []string
	HostClasses []string
	UserClasses []string
}

type resolution struct {
	facts    facts.Facts
	provider source.Provider
	base     string
	logger   *slog.Logger
	parser   *parser

	variants    []string
	hostClasses []string
	userClasses []string

	queue  []string
	seen   map[string]bool
	active []string
}

// Resolve evaluates every reachable rule document against f and returns the
// resulting variants, most general first.
func Resolve(f facts.Facts, p source.Provider, opts Options) (Result, error) {
	r := &resolution{
		facts:    f,
		provider: p,
		base:     opts.Base,
		logger:   opts.Logger,
		parser:   newParser(),
		queue:    []string{""},
		seen:     map[string]bool{"": true},
	}
	if r.base == "" {
		r.base = DefaultBase
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.addVariants(f.ExplicitVariants)

	for len(r.queue) > 0 {
		suffix := r.queue[0]
		r.queue = r.queue[1:]
		if err := r.include(suffix); err != nil {
			return Result{}, err
		}
	}

	r.logger.Info("configuration variant", "variants", strings.Join(r.variants, ":"))
	return Result{
		Variants:    r.variants,
		HostClasses: r.hostClasses,
		UserClasses: r.userClasses,
	}, nil
}

func (r *resolution) documentName(suffix string) string {
	if suffix == "" {
		return r.base
	}
	return r.base + "-" + suffix
}

// include parses every document for suffix in precedence order.
func (r *resolution) include(suffix string) error {
	for _, s := range r.active {
		if s == suffix {
			return cycleError(r.active, suffix)
		}
	}
	r.active = append(r.active, suffix)
	defer func() { r.active = r.active[:len(r.active)-1] }()

	return r.provider.Walk(source.Request{Name: r.documentName(suffix)}, r.parse)
}

func (r *resolution) parse(doc source.Document) error {
	r.logger.Debug("parsing configuration variant file", "source", doc.ID)

	scanner := bufio.NewScanner(doc.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		d, ok, err := r.parser.parseLine(line)
		if err != nil {
			return &SyntaxError{Source: doc.ID, Line: lineNo, Text: line, Err: err}
		}
		if !ok {
			continue
		}
		if err := r.apply(doc.ID, lineNo, d); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", doc.ID, err)
	}
	return nil
}

func (r *resolution) apply(id string, lineNo int, d directive) error {
	switch d.kind {
	case kindHostClass:
		if contains(d.values, r.facts.Host) {
			r.hostClasses = appendUnique(r.hostClasses, d.label)
		}
	case kindUserClass:
		if contains(d.values, r.facts.User) {
			r.userClasses = appendUnique(r.userClasses, d.label)
		}
	case kindIncludeImmediately:
		for _, suffix := range d.values {
			if err := r.include(suffix); err != nil {
				return err
			}
		}
	case kindIncludeAfterwards:
		for _, suffix := range d.values {
			if !r.seen[suffix] {
				r.seen[suffix] = true
				r.queue = append(r.queue, suffix)
			}
		}
	case kindRule:
		for _, rule := range d.rules {
			if rule.Attr == AttrUnknown {
				r.logger.Debug("ignoring unknown rule attribute", "source", id, "line", lineNo, "attribute", rule.Name)
				continue
			}
			if !r.matches(rule) {
				return nil
			}
		}
		r.logger.Debug("rule matched", "source", id, "line", lineNo, "variants", strings.Join(d.values, ":"))
		r.addVariants(d.values)
	}
	return nil
}

func (r *resolution) matches(rule Rule) bool {
	switch rule.Attr {
	case AttrHost:
		return rule.test([]string{r.facts.Host})
	case AttrHostClass:
		return rule.test(r.hostClasses)
	case AttrUser:
		return rule.test([]string{r.facts.User})
	case AttrUserClass:
		return rule.test(r.userClasses)
	case AttrOS:
		return rule.test([]string{r.facts.OS})
	case AttrOSVersion:
		return rule.test([]string{r.facts.OSVersion})
	case AttrRuntimeVersion:
		return rule.test([]string{r.facts.RuntimeVersion})
	case AttrConfiguration:
		return rule.test([]string{r.facts.ConfigurationName})
	case AttrUI:
		return rule.test(orEmpty(r.facts.UINames))
	case AttrDB:
		return rule.test(orEmpty(r.facts.DBNames))
	case AttrVariants:
		if len(r.facts.ExplicitVariants) == 0 {
			return rule.test([]string{""})
		}
		return rule.test(orEmpty(r.variants))
	}
	return true
}

// test passes when some value matches the include pattern and none matches
// the exclude pattern.
func (rule Rule) test(values []string) bool {
	if rule.Include != nil && !anyMatch(rule.Include, values) {
		return false
	}
	if rule.Exclude != nil && anyMatch(rule.Exclude, values) {
		return false
	}
	return true
}

func anyMatch(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

func (r *resolution) addVariants(tags []string) {
	for _, t := range tags {
		r.variants = appendUnique(r.variants, t)
	}
}

func orEmpty(values []string) []string {
	if len(values) == 0 {
		return []string{""}
	}
	return values
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
