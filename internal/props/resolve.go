// Package props implements property tables and the layered lookup of fully
// qualified keys through caller scopes, the process wide override table and
// the default table behind it.
package props

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// FullKey joins prefix and key with a dot. Either may be empty.
func FullKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// EnvName returns the environment variable name a key maps to when system
// properties are enabled, e.g. "layerconf.configuration.variant" becomes
// "LAYERCONF_CONFIGURATION_VARIANT".
func EnvName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// ResolverOptions tune a Resolver.
type ResolverOptions struct {
	// Evaluate enables processing of encoded values. When unset raw values
	// are returned verbatim.
	Evaluate bool
	// SystemProperties makes root misses fall back to the environment.
	SystemProperties bool
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// Trace logs every lookup at debug level, TraceOrigin adds the source
	// file of root entries.
	Trace       bool
	TraceOrigin bool
	Logger      *slog.Logger
}

// Resolver looks up keys through scopes and the root table.
type Resolver struct {
	root     *Table
	variants []string
	opts     ResolverOptions

	mu        sync.RWMutex
	evaluator Evaluator
}

// NewResolver returns a resolver over root, whose parent is the default
// table. variants are the active configuration variants used by the
// Variants tag.
func NewResolver(root *Table, variants []string, opts ResolverOptions) *Resolver {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{root: root, variants: variants, opts: opts}
}

// Root returns the override table.
func (r *Resolver) Root() *Table {
	return r.root
}

// Variants returns the active configuration variants.
func (r *Resolver) Variants() []string {
	return append([]string(nil), r.variants...)
}

// SetEvaluator registers the evaluator used for JavaScript tagged values.
func (r *Resolver) SetEvaluator(ev Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluator = ev
}

func (r *Resolver) currentEvaluator() Evaluator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evaluator
}

// Resolve looks up FullKey(prefix, key) starting at scope, which may be nil.
// With widen, misses are retried with the last segment of prefix removed
// until the bare key has been tried.
func (r *Resolver) Resolve(scope *Scope, prefix, key string, widen bool) (string, bool, error) {
	for {
		full := FullKey(prefix, key)
		v, ok, fromScope, err := r.find(scope, full)
		if err != nil {
			return "", false, err
		}
		if r.opts.Trace {
			r.trace(full, v, ok, fromScope)
		}
		if ok || !widen || prefix == "" {
			return v, ok, nil
		}
		if i := strings.LastIndexByte(prefix, '.'); i >= 0 {
			prefix = prefix[:i]
		} else {
			prefix = ""
		}
	}
}

// Lookup resolves a fully qualified key without widening.
func (r *Resolver) Lookup(scope *Scope, key string) (string, bool, error) {
	return r.Resolve(scope, "", key, false)
}

// Set writes value into the nearest store on the scope chain or, when there
// is none, into the root table.
func (r *Resolver) Set(scope *Scope, key, value string) {
	if t := scope.nearestStore(); t != nil {
		t.Set(key, value)
		return
	}
	r.root.Set(key, value)
}

func (r *Resolver) trace(key, value string, found, fromScope bool) {
	attrs := []any{"key", key, "found", found, "value", value}
	if r.opts.TraceOrigin && found {
		origin := "scope"
		if !fromScope {
			origin, _ = r.root.Origin(key)
		}
		attrs = append(attrs, "origin", origin)
	}
	r.opts.Logger.Debug("property lookup", attrs...)
}

func (r *Resolver) lookup(scope *Scope, key string) (string, bool, error) {
	v, ok, _, err := r.find(scope, key)
	return v, ok, err
}

// find resolves key through the scope chain and then the root table. It
// reports whether the hit came from a scope store.
func (r *Resolver) find(scope *Scope, key string) (string, bool, bool, error) {
	if scope != nil {
		v, ok, err := r.lookupScope(scope, key)
		if err != nil || ok {
			return v, ok, ok, err
		}
	}
	v, ok, err := r.lookupRoot(scope, key)
	return v, ok, false, err
}

// lookupScope tries the own store of s, then the Location chain, then the
// Call chain.
func (r *Resolver) lookupScope(s *Scope, key string) (string, bool, error) {
	if s.store != nil {
		if raw, ok := s.store.Get(key); ok {
			return r.evaluate(s, key, raw, s.store)
		}
	}
	for _, parent := range []*Scope{s.Location, s.Call} {
		if parent == nil {
			continue
		}
		if v, ok, err := r.lookupScope(parent, key); err != nil || ok {
			return v, ok, err
		}
	}
	return "", false, nil
}

func (r *Resolver) lookupRoot(scope *Scope, key string) (string, bool, error) {
	raw, ok := r.root.Get(key)
	if !ok && r.opts.SystemProperties {
		raw, ok = r.lookupEnv(key)
		if ok {
			r.root.SetWithOrigin(key, raw, "environment")
		}
	}
	if !ok {
		return "", false, nil
	}
	return r.evaluate(scope, key, raw, r.root)
}

func (r *Resolver) lookupEnv(key string) (string, bool) {
	if v, ok := r.opts.LookupEnv(key); ok {
		return v, true
	}
	return r.opts.LookupEnv(EnvName(key))
}

// evaluate processes an encoded raw value found under key. cache is the
// table the value was found in.
func (r *Resolver) evaluate(scope *Scope, key, raw string, cache *Table) (string, bool, error) {
	if !r.opts.Evaluate {
		return raw, true, nil
	}
	enc, ok, err := Decode(raw)
	if err != nil {
		return "", false, fmt.Errorf("property '%s': %w", key, err)
	}
	if !ok {
		return raw, true, nil
	}
	if enc.Literal {
		return enc.Payload, true, nil
	}

	value, valid := enc.Payload, true
	if enc.Has(TagJavaScript) {
		ev := r.currentEvaluator()
		if ev == nil {
			return "", false, fmt.Errorf("property '%s': %w", key, ErrNoEvaluator)
		}
		value, err = ev.Evaluate(enc.Payload, map[string]string{
			"key":      key,
			"variants": strings.Join(r.variants, ":"),
		})
		switch {
		case errors.Is(err, ErrNullResult):
			value, valid = "", false
		case err != nil:
			return "", false, fmt.Errorf("cannot evaluate property '%s': %w", key, err)
		}
		if r.opts.Trace {
			r.opts.Logger.Debug("property evaluated", "key", key, "expression", enc.Payload, "value", value)
		}
	}
	if enc.Has(TagVariants) {
		var b strings.Builder
		b.WriteString(value)
		for _, v := range r.variants {
			vv, ok, err := r.lookup(scope, key+"-"+v)
			if err != nil {
				return "", false, err
			}
			if ok {
				b.WriteString(vv)
			}
		}
		value, valid = b.String(), true
	}
	if enc.Has(TagCache) {
		if !valid {
			return "", false, fmt.Errorf("property '%s': %w", key, ErrCacheNil)
		}
		cache.Set(key, value)
	}
	return value, valid, nil
}
