// Package engine ties variant resolution and property tables together.
//
// An Engine initialises itself once, on first use: it detects the
// environment facts, resolves the configuration variants, loads the property
// files of the bundle and of every application specific folder together with
// their variant specific counterparts, applies the startup overrides and
// finally runs the registered package initialisers. The resulting state is
// published atomically; lookups never take the engine lock.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/redhatinsights/layerconf/internal/facts"
	"github.com/redhatinsights/layerconf/internal/props"
	"github.com/redhatinsights/layerconf/internal/source"
	"github.com/redhatinsights/layerconf/internal/variant"
)

// DefaultName is the application name used for folders, file prefixes and
// property keys.
const DefaultName = "layerconf"

// Base names of the documents an engine reads.
const (
	ConfigurationNameResource = ".configuration-name"
	PropertiesResource        = ".properties"
	GeneratedResource         = ".generated.properties"
)

var configurationNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrInvalidConfigurationName is returned when the bundled configuration
// name does not consist of letters, digits and underscores.
var ErrInvalidConfigurationName = errors.New("invalid configuration name syntax")

// EvaluatorFunc builds the evaluator for a property table generation. lookup
// resolves fully qualified keys through that generation.
type EvaluatorFunc func(lookup func(key string) (string, bool, error)) props.Evaluator

// Options configure an Engine.
type Options struct {
	// Name is the application name; DefaultName when empty.
	Name string
	// Params are the startup parameters. They are sealed by Init.
	Params *facts.Params
	// Bundle holds the resources compiled into the application.
	Bundle fs.FS
	// Folders replaces the default folder sequence when non-nil. Folders
	// registered through Params are appended either way.
	Folders []source.Folder
	// IncludeSystemProperties makes lookups fall back to the environment.
	IncludeSystemProperties bool
	// EvaluateEncoded enables processing of encoded property values.
	EvaluateEncoded bool
	// ReloadInterval enables the modification check of loaded files.
	ReloadInterval time.Duration
	Evaluator      EvaluatorFunc
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	Logger    *slog.Logger
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		Name:            DefaultName,
		EvaluateEncoded: true,
	}
}

// Engine resolves configuration for one application.
type Engine struct {
	*core

	// pinned is set on the view handed to initialisers. It is the
	// generation being loaded, which is not published yet.
	pinned *state
}

type core struct {
	opts     Options
	params   *facts.Params
	logger   *slog.Logger
	defaults *props.Table

	mu          sync.Mutex
	initialised bool
	initErr     error
	provider    *source.FS
	facts       facts.Facts
	resolved    variant.Result

	state atomic.Pointer[state]

	evaluatorMu sync.RWMutex
	evaluator   EvaluatorFunc

	registryMu   sync.Mutex
	initialisers map[string]Initialiser
	done         map[string]bool
}

// state is one generation of loaded property tables.
type state struct {
	generation uuid.UUID
	root       *props.Table
	resolver   *props.Resolver
	files      map[string]time.Time
	loadedAt   time.Time
	checkedAt  atomic.Int64
}

// New returns an engine that initialises itself on first use.
func New(opts Options) *Engine {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Params == nil {
		opts.Params = facts.NewParams()
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{core: &core{
		opts:         opts,
		params:       opts.Params,
		logger:       opts.Logger,
		defaults:     props.NewTable(nil),
		evaluator:    opts.Evaluator,
		initialisers: make(map[string]Initialiser),
		done:         make(map[string]bool),
	}}
}

// Params returns the startup parameters of e.
func (e *Engine) Params() *facts.Params {
	return e.params
}

// key returns the application scoped property key for name.
func (e *Engine) key(name string) string {
	return e.opts.Name + "." + name
}

// Init initialises e. It runs once; every call returns the same error.
// Callers block until the initialisers have run. Called from an
// initialiser it returns nil.
func (e *Engine) Init() error {
	if e.pinned != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialised {
		return e.initErr
	}
	e.initialised = true
	e.initErr = e.initialise()
	if e.initErr != nil {
		e.state.Store(nil)
		e.logger.Error("configuration initialisation failed", "error", e.initErr)
	}
	return e.initErr
}

func (e *Engine) initialise() error {
	e.params.Seal()

	name, err := e.configurationName()
	if err != nil {
		return err
	}
	e.facts = facts.Detect(e.params, name, e.logger)
	if e.opts.IncludeSystemProperties {
		if v, ok := e.opts.LookupEnv(props.EnvName(e.key("configuration.variant"))); ok {
			for _, s := range splitColon(v) {
				if !contains(e.facts.ExplicitVariants, s) {
					e.facts.ExplicitVariants = append(e.facts.ExplicitVariants, s)
				}
			}
		}
	}
	e.logger.Info("system properties", "enabled", e.opts.IncludeSystemProperties)

	e.provider = &source.FS{App: e.opts.Name, Bundle: e.opts.Bundle, Folders: e.folders()}
	return e.load(true)
}

// configurationName reads the bundled configuration name unless one was
// set explicitly.
func (e *Engine) configurationName() (string, error) {
	if name, ok := e.params.ConfigurationName(); ok {
		return name, nil
	}
	if e.opts.Bundle == nil {
		return "", nil
	}
	f, err := e.opts.Bundle.Open(ConfigurationNameResource)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("error while reading from '%s': %w", ConfigurationNameResource, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("error while reading from '%s': %w", ConfigurationNameResource, err)
		}
		return "", nil
	}
	line := strings.Trim(scanner.Text(), " \r\n")
	if !configurationNamePattern.MatchString(line) {
		return "", fmt.Errorf("error while reading '%s': %w '%s'", ConfigurationNameResource, ErrInvalidConfigurationName, line)
	}
	return line, nil
}

func (e *Engine) folders() []source.Folder {
	folders := e.opts.Folders
	if folders == nil {
		home, _ := os.UserHomeDir()
		cwd, _ := os.Getwd()
		folders = source.DefaultFolders(e.opts.Name, home, cwd)
	}
	folders = append([]source.Folder(nil), folders...)
	for _, dir := range e.params.ConfigFolders() {
		folders = append(folders, source.ExtraFolders(e.opts.Name, dir)...)
	}
	return folders
}

// load builds a new table generation and publishes it once the initialisers
// succeed. The variants are resolved on the first load only.
func (e *Engine) load(first bool) error {
	s := &state{
		generation: uuid.New(),
		root:       props.NewTable(e.defaults),
		files:      make(map[string]time.Time),
		loadedAt:   time.Now(),
	}
	s.checkedAt.Store(s.loadedAt.UnixNano())

	if err := e.loadInto(s, s.root, PropertiesResource); err != nil {
		return err
	}
	trace := parseBoolDefault(s.root, e.key("configuration.DEBUG_TRACE"))
	traceOrigin := parseBoolDefault(s.root, e.key("configuration.DEBUG_ORIGIN"))
	e.logger.Info("loaded initial property resources", "entries", s.root.Len(), "trace", trace, "origin", traceOrigin)

	if first {
		res, err := variant.Resolve(e.facts, e.provider, variant.Options{Logger: e.logger})
		if err != nil {
			return err
		}
		e.resolved = res
	}

	s.resolver = props.NewResolver(s.root, e.resolved.Variants, props.ResolverOptions{
		Evaluate:         e.opts.EvaluateEncoded,
		SystemProperties: e.opts.IncludeSystemProperties,
		LookupEnv:        e.opts.LookupEnv,
		Trace:            trace,
		TraceOrigin:      traceOrigin,
		Logger:           e.logger,
	})
	e.attachEvaluator(s.resolver)

	for _, v := range e.resolved.Variants {
		if err := e.loadInto(s, s.root, PropertiesResource+"-"+v); err != nil {
			return err
		}
	}

	includes, err := e.includeProperties(s.resolver)
	if err != nil {
		return err
	}
	for _, name := range includes {
		if err := e.loadInto(s, s.root, name); err != nil {
			return err
		}
		for _, v := range e.resolved.Variants {
			if err := e.loadInto(s, s.root, name+"-"+v); err != nil {
				return err
			}
		}
	}

	for _, kv := range e.params.PropertyOverrides() {
		s.root.SetWithOrigin(kv[0], kv[1], "override")
	}

	view := &Engine{core: e.core, pinned: s}
	if err := view.runInitialisers(s.resolver); err != nil {
		return err
	}
	e.state.Store(s)
	e.logger.Info("configuration loaded",
		"generation", s.generation.String(),
		"variants", strings.Join(e.resolved.Variants, ":"),
		"files", len(s.files),
	)
	return nil
}

// loadInto loads name from the bundle and every specific folder into t.
func (e *Engine) loadInto(s *state, t *props.Table, name string) error {
	return e.provider.Walk(source.Request{Name: name, SpecificOnly: true}, func(doc source.Document) error {
		e.logger.Info("loading property resource", "source", doc.ID)
		if doc.Path != "" {
			s.files[doc.Path] = doc.ModTime
		}
		return t.Load(doc.Body, doc.ID)
	})
}

func (e *Engine) includeProperties(r *props.Resolver) ([]string, error) {
	v, ok, err := r.Lookup(nil, e.key("IncludeProperties"))
	if err != nil || !ok {
		return nil, err
	}
	return splitColon(v), nil
}

// current returns the published state, initialising e when necessary. A
// view returns its pinned state.
func (e *Engine) current() (*state, error) {
	if e.pinned != nil {
		return e.pinned, nil
	}
	s := e.state.Load()
	if s == nil {
		if err := e.Init(); err != nil {
			return nil, err
		}
		if s = e.state.Load(); s == nil {
			return nil, errors.New("configuration is not initialised")
		}
	}
	return e.maybeReload(s), nil
}

// maybeReload reloads the property tables when a loaded file changed. The
// files are checked at most once per reload interval.
func (e *Engine) maybeReload(s *state) *state {
	interval := e.opts.ReloadInterval
	if interval <= 0 {
		return s
	}
	now := time.Now().UnixNano()
	last := s.checkedAt.Load()
	if now-last < int64(interval) || !s.checkedAt.CompareAndSwap(last, now) {
		return s
	}
	if !s.stale() {
		return s
	}

	// Another goroutine is loading.
	if !e.mu.TryLock() {
		return s
	}
	defer e.mu.Unlock()
	if cur := e.state.Load(); cur != s {
		return cur
	}
	e.logger.Info("property files changed, reloading", "generation", s.generation.String())
	if err := e.load(false); err != nil {
		e.logger.Error("failed to reload configuration", "error", err)
	}
	return e.state.Load()
}

// stale reports whether a tracked file was modified or removed since it was
// loaded.
func (s *state) stale() bool {
	for path, mod := range s.files {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(mod) {
			return true
		}
	}
	return false
}

// SetEvaluator registers the factory of the expression evaluator.
func (e *Engine) SetEvaluator(fn EvaluatorFunc) {
	e.evaluatorMu.Lock()
	e.evaluator = fn
	e.evaluatorMu.Unlock()
	if s := e.state.Load(); s != nil {
		e.attachEvaluator(s.resolver)
	}
	if e.pinned != nil {
		e.attachEvaluator(e.pinned.resolver)
	}
}

func (e *Engine) attachEvaluator(r *props.Resolver) {
	e.evaluatorMu.RLock()
	fn := e.evaluator
	e.evaluatorMu.RUnlock()
	if fn == nil {
		r.SetEvaluator(nil)
		return
	}
	r.SetEvaluator(fn(func(key string) (string, bool, error) {
		return r.Lookup(nil, key)
	}))
}

// Facts returns the detected environment facts.
func (e *Engine) Facts() (facts.Facts, error) {
	if _, err := e.current(); err != nil {
		return facts.Facts{}, err
	}
	return e.facts, nil
}

// Variants returns the resolved variants together with the host and user
// classes.
func (e *Engine) Variants() (variant.Result, error) {
	if _, err := e.current(); err != nil {
		return variant.Result{}, err
	}
	return e.resolved, nil
}

// Generation identifies the currently loaded property tables. It changes on
// every reload.
func (e *Engine) Generation() (uuid.UUID, error) {
	s, err := e.current()
	if err != nil {
		return uuid.Nil, err
	}
	return s.generation, nil
}

// Resolver returns the resolver of the current table generation.
func (e *Engine) Resolver() (*props.Resolver, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return s.resolver, nil
}

// SetDefault stores value in the default table, below every loaded file.
func (e *Engine) SetDefault(key, value string) {
	e.defaults.Set(key, value)
}

// LoadDefaults loads the property resource name and its variants from fsys
// into the default table. With an empty name the standard resources and the
// included property names are loaded.
func (e *Engine) LoadDefaults(fsys fs.FS, name string) error {
	s, err := e.current()
	if err != nil {
		return err
	}
	names := []string{name}
	if name == "" {
		includes, err := e.includeProperties(s.resolver)
		if err != nil {
			return err
		}
		names = append([]string{PropertiesResource, GeneratedResource}, includes...)
	}

	for _, n := range names {
		if err := e.loadDefault(fsys, n); err != nil {
			return err
		}
	}
	for _, v := range e.resolved.Variants {
		for _, n := range names {
			if err := e.loadDefault(fsys, n+"-"+v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) loadDefault(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading of default properties failed: %w", err)
	}
	defer f.Close()
	e.logger.Info("loading default property resource", "name", name)
	return e.defaults.Load(f, "default:"+name)
}

// ConfigurationFiles lists every existing file named name+ext, followed by
// the files of every variant, name+"-"+variant+ext, in precedence order.
func (e *Engine) ConfigurationFiles(name, ext string) ([]string, error) {
	if _, err := e.current(); err != nil {
		return nil, err
	}
	var files []string
	collect := func(doc source.Document) error {
		files = append(files, doc.ID)
		return nil
	}
	if err := e.provider.Walk(source.Request{Name: name + ext}, collect); err != nil {
		return nil, err
	}
	for _, v := range e.resolved.Variants {
		if err := e.provider.Walk(source.Request{Name: name + "-" + v + ext}, collect); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func parseBoolDefault(t *props.Table, key string) bool {
	v, ok := t.Get(key)
	return ok && (v == "true" || v == "TRUE")
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
