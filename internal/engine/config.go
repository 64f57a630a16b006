package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/redhatinsights/layerconf/internal/l10n"
	"github.com/redhatinsights/layerconf/internal/props"
)

// Config reads the properties below a key prefix, optionally starting at a
// caller supplied scope.
type Config struct {
	e      *Engine
	prefix string
	scope  *props.Scope
}

// Config returns a view of the properties below prefix.
func (e *Engine) Config(prefix string) *Config {
	return &Config{e: e, prefix: prefix}
}

// WithScope returns a copy of c that resolves through scope first.
func (c *Config) WithScope(scope *props.Scope) *Config {
	return &Config{e: c.e, prefix: c.prefix, scope: scope}
}

// Prefix returns the key prefix of c.
func (c *Config) Prefix() string {
	return c.prefix
}

// Scope returns the scope of c, or nil.
func (c *Config) Scope() *props.Scope {
	return c.scope
}

func (c *Config) resolve(key string, widen bool) (string, bool, error) {
	r, err := c.e.Resolver()
	if err != nil {
		return "", false, err
	}
	return r.Resolve(c.scope, c.prefix, key, widen)
}

// Lookup returns the value of key below the prefix.
func (c *Config) Lookup(key string) (string, bool, error) {
	return c.resolve(key, false)
}

// Has reports whether key is set below the prefix.
func (c *Config) Has(key string) (bool, error) {
	_, ok, err := c.resolve(key, false)
	return ok, err
}

// Set writes key below the prefix into the nearest scope store, or into the
// override table.
func (c *Config) Set(key, value string) error {
	r, err := c.e.Resolver()
	if err != nil {
		return err
	}
	r.Set(c.scope, props.FullKey(c.prefix, key), value)
	return nil
}

// Apply performs mods with names relative to the prefix.
func (c *Config) Apply(mods ...props.Modifier) error {
	r, err := c.e.Resolver()
	if err != nil {
		return err
	}
	full := make([]props.Modifier, len(mods))
	for i, m := range mods {
		m.Name = props.FullKey(c.prefix, m.Name)
		full[i] = m
	}
	return r.Apply(c.scope, full...)
}

func (c *Config) invalid(key, value string) {
	c.e.logger.Warn(l10n.T("Property '%s' contains invalid entry '%s'", props.FullKey(c.prefix, key), value))
}

func (c *Config) str(key, def string, widen bool) (string, error) {
	v, ok, err := c.resolve(key, widen)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

func (c *Config) boolean(key string, def, widen bool) (bool, error) {
	v, ok, err := c.resolve(key, widen)
	if err != nil || !ok {
		return def, err
	}
	return c.parseBool(key, v, def), nil
}

func (c *Config) integer(key string, def int64, bits int, widen bool) (int64, error) {
	v, ok, err := c.resolve(key, widen)
	if err != nil || !ok {
		return def, err
	}
	return c.parseInt(key, v, def, bits), nil
}

func (c *Config) list(key string, def []string, widen bool) ([]string, error) {
	v, ok, err := c.resolve(key, widen)
	if err != nil || !ok {
		return def, err
	}
	return splitList(v), nil
}

func (c *Config) parseBool(key, v string, def bool) bool {
	switch v {
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}
	c.invalid(key, v)
	return def
}

func (c *Config) parseInt(key, v string, def int64, bits int) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, bits)
	if err != nil {
		c.invalid(key, v)
		return def
	}
	return n
}

func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// String returns the value of key, or def when it is not set.
func (c *Config) String(key, def string) (string, error) {
	return c.str(key, def, false)
}

// Bool returns the value of key, or def when it is not set or invalid.
func (c *Config) Bool(key string, def bool) (bool, error) {
	return c.boolean(key, def, false)
}

// Int returns the value of key, or def when it is not set or invalid.
func (c *Config) Int(key string, def int) (int, error) {
	n, err := c.integer(key, int64(def), strconv.IntSize, false)
	return int(n), err
}

// Int64 returns the value of key, or def when it is not set or invalid.
func (c *Config) Int64(key string, def int64) (int64, error) {
	return c.integer(key, def, 64, false)
}

// List splits the value of key on commas and spaces.
func (c *Config) List(key string, def []string) ([]string, error) {
	return c.list(key, def, false)
}

// RecursiveString is String with prefix widening.
func (c *Config) RecursiveString(key, def string) (string, error) {
	return c.str(key, def, true)
}

// RecursiveBool is Bool with prefix widening.
func (c *Config) RecursiveBool(key string, def bool) (bool, error) {
	return c.boolean(key, def, true)
}

// RecursiveInt is Int with prefix widening.
func (c *Config) RecursiveInt(key string, def int) (int, error) {
	n, err := c.integer(key, int64(def), strconv.IntSize, true)
	return int(n), err
}

// RecursiveInt64 is Int64 with prefix widening.
func (c *Config) RecursiveInt64(key string, def int64) (int64, error) {
	return c.integer(key, def, 64, true)
}

// RecursiveList is List with prefix widening.
func (c *Config) RecursiveList(key string, def []string) ([]string, error) {
	return c.list(key, def, true)
}

func (c *Config) require(key string, widen bool) (string, error) {
	v, ok, err := c.resolve(key, widen)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: '%s'", props.ErrEntryNotFound, props.FullKey(c.prefix, key))
	}
	return v, nil
}

// MustString returns the value of key or an error wrapping
// props.ErrEntryNotFound.
func (c *Config) MustString(key string) (string, error) {
	return c.require(key, false)
}

// MustBool is Bool for a key that has to be set. An invalid value yields
// false.
func (c *Config) MustBool(key string) (bool, error) {
	v, err := c.require(key, false)
	if err != nil {
		return false, err
	}
	return c.parseBool(key, v, false), nil
}

// MustInt is Int for a key that has to be set.
func (c *Config) MustInt(key string) (int, error) {
	v, err := c.require(key, false)
	if err != nil {
		return 0, err
	}
	return int(c.parseInt(key, v, 0, strconv.IntSize)), nil
}

// MustInt64 is Int64 for a key that has to be set.
func (c *Config) MustInt64(key string) (int64, error) {
	v, err := c.require(key, false)
	if err != nil {
		return 0, err
	}
	return c.parseInt(key, v, 0, 64), nil
}

// MustList is List for a key that has to be set.
func (c *Config) MustList(key string) ([]string, error) {
	v, err := c.require(key, false)
	if err != nil {
		return nil, err
	}
	return splitList(v), nil
}

// MustRecursiveString is RecursiveString for a key that has to be set.
func (c *Config) MustRecursiveString(key string) (string, error) {
	return c.require(key, true)
}
