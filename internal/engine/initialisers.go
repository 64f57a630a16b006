package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redhatinsights/layerconf/internal/props"
)

// ErrInitialiserNotFound is returned when a required initialiser was never
// registered.
var ErrInitialiserNotFound = errors.New("initialiser not found")

// Initialiser is run after the configuration is loaded and before it is
// published to other callers. phase is empty for the default phase. e reads
// the generation being loaded.
type Initialiser func(e *Engine, phase string) error

// Register makes fn available under name for the initialiser lists.
func (e *Engine) Register(name string, fn Initialiser) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	e.initialisers[name] = fn
}

// Initialised reports whether the initialiser name has run for phase.
func (e *Engine) Initialised(name, phase string) bool {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	return e.done[initialiserID(name, phase)]
}

func initialiserID(name, phase string) string {
	if phase == "" {
		return name
	}
	return name + "-Phase-" + phase
}

func phaseKey(key, phase string) string {
	if phase == "" {
		return key
	}
	return key + ".Phase." + phase
}

// runInitialisers runs the default phase followed by every phase listed in
// InitialisationPhases.
func (e *Engine) runInitialisers(r *props.Resolver) error {
	phases := []string{""}
	v, ok, err := r.Lookup(nil, e.key("InitialisationPhases"))
	if err != nil {
		return err
	}
	if ok {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				phases = append(phases, p)
			}
		}
	}

	for _, phase := range phases {
		if err := e.runPhase(r, phase); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runPhase(r *props.Resolver, phase string) error {
	v, _, err := r.Lookup(nil, phaseKey(e.key("PackageInitialisers"), phase))
	if err != nil {
		return err
	}
	for _, name := range splitColon(v) {
		optional := strings.HasSuffix(name, "?")
		if err := e.runInitialiser(strings.TrimSuffix(name, "?"), phase, optional); err != nil {
			return err
		}
	}

	index, _, err := r.Lookup(nil, e.key("InitialiserIndex"))
	if err != nil {
		return err
	}
	for _, name := range splitColon(index) {
		auto, _, err := r.Lookup(nil, phaseKey(name+".AutoInitialise", phase))
		if err != nil {
			return err
		}
		if auto == "true" || auto == "TRUE" {
			if err := e.runInitialiser(name, phase, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) runInitialiser(name, phase string, optional bool) error {
	id := initialiserID(name, phase)

	e.registryMu.Lock()
	fn, ok := e.initialisers[name]
	if e.done[id] {
		e.registryMu.Unlock()
		return nil
	}
	if ok {
		e.done[id] = true
	}
	e.registryMu.Unlock()

	if !ok {
		if optional {
			e.logger.Debug("optional initialiser not registered", "name", name, "phase", phase)
			return nil
		}
		return fmt.Errorf("%w: '%s'", ErrInitialiserNotFound, id)
	}

	e.logger.Info("running initialiser", "name", name, "phase", phase)
	if err := fn(e, phase); err != nil {
		return fmt.Errorf("initialiser '%s' failed: %w", id, err)
	}
	return nil
}

func splitColon(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ":") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
