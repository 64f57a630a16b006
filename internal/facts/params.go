package facts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrChangedAfterInit is returned when a startup parameter is modified after
// the engine that owns it has been initialised.
var ErrChangedAfterInit = errors.New("configuration changed after initialization")

// Params holds the startup parameters that influence variant resolution. All
// setters may be called freely until Seal; afterwards any call that would
// modify a value fails with ErrChangedAfterInit, while calls that leave the
// value as it is remain no-ops.
type Params struct {
	mu sync.Mutex

	sealed bool

	configurationName    string
	configurationNameSet bool
	uiNames              []string
	dbNames              []string
	explicitVariants     []string
	overrides            []string
	folders              []string
}

// NewParams returns an empty, unsealed parameter set.
func NewParams() *Params {
	return &Params{}
}

// Seal marks the parameters as consumed by initialization.
func (p *Params) Seal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
}

// Sealed reports whether Seal has been called.
func (p *Params) Sealed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sealed
}

func (p *Params) check(name string, modified bool) error {
	if modified && p.sealed {
		return fmt.Errorf("cannot set %s: %w", name, ErrChangedAfterInit)
	}
	return nil
}

// SetConfigurationName sets the configuration name matched by
// "configuration" rules.
func (p *Params) SetConfigurationName(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name == p.configurationName && (p.configurationNameSet || p.sealed) {
		return nil
	}
	if err := p.check("configuration name", true); err != nil {
		return err
	}
	p.configurationName = name
	p.configurationNameSet = true
	return nil
}

// ConfigurationName returns the configuration name and whether it was set
// explicitly.
func (p *Params) ConfigurationName() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configurationName, p.configurationNameSet
}

// AddUINames appends the colon separated UI names that are not present yet.
func (p *Params) AddUINames(names string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	merged, modified := addTo(p.uiNames, names)
	if err := p.check("configuration ui name", modified); err != nil {
		return err
	}
	p.uiNames = merged
	return nil
}

// AddDBNames appends the colon separated DB names that are not present yet.
func (p *Params) AddDBNames(names string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	merged, modified := addTo(p.dbNames, names)
	if err := p.check("configuration db name", modified); err != nil {
		return err
	}
	p.dbNames = merged
	return nil
}

// SetExplicitVariants replaces the colon separated explicit variant list.
func (p *Params) SetExplicitVariants(variants string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("explicit configuration variant", strings.Join(splitList(variants), ":") != strings.Join(p.explicitVariants, ":")); err != nil {
		return err
	}
	p.explicitVariants = splitList(variants)
	return nil
}

// AppendExplicitVariants appends the colon separated variants that are not
// present yet.
func (p *Params) AppendExplicitVariants(variants string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	merged, modified := addTo(p.explicitVariants, variants)
	if err := p.check("explicit configuration variant", modified); err != nil {
		return err
	}
	p.explicitVariants = merged
	return nil
}

// AddPropertyOverride records a "key:value" override applied after all
// property files have been loaded.
func (p *Params) AddPropertyOverride(override string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.Contains(override, ":") {
		return fmt.Errorf("invalid property override %q: expected key:value", override)
	}
	if err := p.check("property override", !contains(p.overrides, override)); err != nil {
		return err
	}
	if !contains(p.overrides, override) {
		p.overrides = append(p.overrides, override)
	}
	return nil
}

// AddConfigFolder registers an additional folder searched for configuration
// and property files.
func (p *Params) AddConfigFolder(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dir == "" {
		return nil
	}
	if err := p.check("configuration folder", !contains(p.folders, dir)); err != nil {
		return err
	}
	if !contains(p.folders, dir) {
		p.folders = append(p.folders, dir)
	}
	return nil
}

// UINames returns a copy of the UI names.
func (p *Params) UINames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.uiNames)
}

// DBNames returns a copy of the DB names.
func (p *Params) DBNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.dbNames)
}

// ExplicitVariants returns a copy of the explicit variants.
func (p *Params) ExplicitVariants() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.explicitVariants)
}

// PropertyOverrides returns the overrides split into key and value, in the
// order they were added.
func (p *Params) PropertyOverrides() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kvs := make([][2]string, 0, len(p.overrides))
	for _, o := range p.overrides {
		k, v, _ := strings.Cut(o, ":")
		kvs = append(kvs, [2]string{k, v})
	}
	return kvs
}

// ConfigFolders returns a copy of the additional folders.
func (p *Params) ConfigFolders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.folders)
}

// addTo appends the entries of the colon separated list additional that are
// missing from current. It reports whether anything was appended.
func addTo(current []string, additional string) ([]string, bool) {
	merged := clone(current)
	modified := false
	for _, a := range splitList(additional) {
		if !contains(merged, a) {
			merged = append(merged, a)
			modified = true
		}
	}
	return merged, modified
}

func splitList(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ":") {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
