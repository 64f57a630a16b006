package variant

import (
	"fmt"
	"regexp"
	"strings"
)

// Attribute names the environment fact a Rule is matched against.
type Attribute int

const (
	AttrUnknown Attribute = iota
	AttrHost
	AttrHostClass
	AttrUser
	AttrUserClass
	AttrOS
	AttrOSVersion
	AttrRuntimeVersion
	AttrConfiguration
	AttrUI
	AttrDB
	AttrVariants
)

var attributeNames = map[string]Attribute{
	"host":           AttrHost,
	"hostclass":      AttrHostClass,
	"user":           AttrUser,
	"userclass":      AttrUserClass,
	"os":             AttrOS,
	"osversion":      AttrOSVersion,
	"runtimeversion": AttrRuntimeVersion,
	"javaversion":    AttrRuntimeVersion,
	"configuration":  AttrConfiguration,
	"ui":             AttrUI,
	"db":             AttrDB,
	"variants":       AttrVariants,
}

// String returns the canonical attribute name.
func (a Attribute) String() string {
	switch a {
	case AttrHost:
		return "host"
	case AttrHostClass:
		return "hostclass"
	case AttrUser:
		return "user"
	case AttrUserClass:
		return "userclass"
	case AttrOS:
		return "os"
	case AttrOSVersion:
		return "osversion"
	case AttrRuntimeVersion:
		return "runtimeversion"
	case AttrConfiguration:
		return "configuration"
	case AttrUI:
		return "ui"
	case AttrDB:
		return "db"
	case AttrVariants:
		return "variants"
	}
	return "unknown"
}

// Rule is one "attribute:include[:exclude]" clause of a rule line. A nil
// pattern is not tested.
type Rule struct {
	Attr    Attribute
	Name    string
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

type kind int

const (
	kindRule kind = iota
	kindHostClass
	kindUserClass
	kindIncludeImmediately
	kindIncludeAfterwards
)

// directive is the parsed form of one non-blank, non-comment line.
type directive struct {
	kind  kind
	label string
	// values holds host or user names for class directives, suffixes for
	// includes and variant tags for rules.
	values []string
	rules  []Rule
}

const (
	hostClassPrefix    = "@hostclass:"
	userClassPrefix    = "@userclass:"
	includeImmediately = "@include.immediately"
	includeAfterwards  = "@include.afterwards"
)

var (
	blankLine   = regexp.MustCompile(`^\s*$`)
	commentLine = regexp.MustCompile(`^\s*#`)
)

// parser turns lines into directives. Compiled patterns are shared between
// all lines of a resolution.
type parser struct {
	patterns map[string]*regexp.Regexp
}

func newParser() *parser {
	return &parser{patterns: make(map[string]*regexp.Regexp)}
}

// parseLine returns ok=false for lines that carry no directive. A non-nil
// error is the reason the line is malformed.
func (p *parser) parseLine(line string) (d directive, ok bool, err error) {
	if blankLine.MatchString(line) || commentLine.MatchString(line) {
		return d, false, nil
	}
	keyval := strings.Split(line, "=")
	if len(keyval) != 2 {
		return d, false, fmt.Errorf("expected exactly one '=' separator")
	}
	left := strings.TrimSpace(keyval[0])
	right := keyval[1]

	switch {
	case strings.HasPrefix(left, hostClassPrefix):
		d = directive{kind: kindHostClass, label: strings.TrimPrefix(left, hostClassPrefix)}
		if d.label == "" {
			return d, false, fmt.Errorf("host class is empty")
		}
		d.values = splitEntries(right, ",")
		return d, true, nil
	case strings.HasPrefix(left, userClassPrefix):
		d = directive{kind: kindUserClass, label: strings.TrimPrefix(left, userClassPrefix)}
		if d.label == "" {
			return d, false, fmt.Errorf("user class is empty")
		}
		d.values = splitEntries(right, ",")
		return d, true, nil
	case left == includeImmediately:
		return directive{kind: kindIncludeImmediately, values: splitEntries(right, ",")}, true, nil
	case left == includeAfterwards:
		return directive{kind: kindIncludeAfterwards, values: splitEntries(right, ",")}, true, nil
	}

	d = directive{kind: kindRule, values: splitEntries(right, ",:")}
	for _, key := range strings.Split(left, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		rule, err := p.parseRule(key)
		if err != nil {
			return d, false, err
		}
		d.rules = append(d.rules, rule)
	}
	return d, true, nil
}

func (p *parser) parseRule(key string) (Rule, error) {
	fields := strings.Split(key, ":")
	if len(fields) != 2 && len(fields) != 3 {
		return Rule{}, fmt.Errorf("a key rule entry must contain either one or two ':' separators")
	}
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Rule{}, fmt.Errorf("a key rule key must not be empty")
	}

	rule := Rule{Attr: attributeNames[name], Name: name}
	var err error
	if rule.Include, err = p.compile(fields[1]); err != nil {
		return Rule{}, err
	}
	if len(fields) == 3 {
		if rule.Exclude, err = p.compile(fields[2]); err != nil {
			return Rule{}, err
		}
	}
	return rule, nil
}

// compile anchors pattern so that it has to match a whole value.
func (p *parser) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := p.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	p.patterns[pattern] = re
	return re, nil
}

// splitEntries splits s at any of the separator characters, trims the
// entries and drops empty ones.
func splitEntries(s, separators string) []string {
	var out []string
	for _, e := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(separators, r) }) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
