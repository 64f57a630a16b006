package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEngine_Initialisers(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "" +
			"layerconf.PackageInitialisers=first:optional?\n" +
			"layerconf.PackageInitialisers.Phase.late=first:auto\n" +
			"layerconf.InitialisationPhases=late\n" +
			"layerconf.InitialiserIndex=auto:manual\n" +
			"auto.AutoInitialise=true\n" +
			"manual.AutoInitialise=no\n" +
			"first.setting=ready\n",
	}, "")

	var calls []string
	record := func(name string) Initialiser {
		return func(e *Engine, phase string) error {
			if err := e.Init(); err != nil {
				return err
			}
			v, err := e.Config(name).String("setting", "")
			if err != nil {
				return err
			}
			calls = append(calls, name+"/"+phase+"/"+v)
			return nil
		}
	}
	e.Register("first", record("first"))
	e.Register("auto", record("auto"))
	e.Register("manual", record("manual"))

	if err := e.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"first//ready", "auto//", "first/late/ready", "auto/late/"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("initialiser calls mismatch (-want +got):\n%s", diff)
	}

	if !e.Initialised("first", "late") || !e.Initialised("auto", "") {
		t.Errorf("expected the initialisers to be recorded")
	}
	if e.Initialised("manual", "") {
		t.Errorf("expected manual not to run")
	}
}

func TestEngine_InitialiserNotFound(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "layerconf.PackageInitialisers=missing\n",
	}, "")

	if err := e.Init(); !errors.Is(err, ErrInitialiserNotFound) {
		t.Errorf("expected ErrInitialiserNotFound, got %v", err)
	}
}

func TestEngine_InitialiserError(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "layerconf.PackageInitialisers=broken\n",
	}, "")
	boom := errors.New("boom")
	e.Register("broken", func(*Engine, string) error { return boom })

	if err := e.Init(); !errors.Is(err, boom) {
		t.Errorf("expected the initialiser error, got %v", err)
	}
	if _, err := e.Config("").String("a", ""); !errors.Is(err, boom) {
		t.Errorf("expected lookups to report the init error, got %v", err)
	}
}
