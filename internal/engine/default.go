package engine

import (
	"log/slog"
	"sync"

	"github.com/redhatinsights/layerconf/internal/bundle"
	"github.com/redhatinsights/layerconf/internal/conf"
	"github.com/redhatinsights/layerconf/internal/evaluator"
	"github.com/redhatinsights/layerconf/internal/facts"
	"github.com/redhatinsights/layerconf/internal/props"
)

// HCLEvaluator binds the HCL expression evaluator to a table generation.
func HCLEvaluator(lookup func(key string) (string, bool, error)) props.Evaluator {
	return evaluator.New(lookup)
}

// NewFromSettings returns an engine over the bundled resources configured by
// s. The settings are added to params, which may be nil. A nil logger means
// slog.Default.
func NewFromSettings(s conf.Settings, params *facts.Params, logger *slog.Logger) (*Engine, error) {
	if params == nil {
		params = facts.NewParams()
	}
	if err := s.Apply(params); err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	opts.Params = params
	opts.Bundle = bundle.FS
	opts.IncludeSystemProperties = s.IncludeSystemProperties
	opts.EvaluateEncoded = s.EvaluateEncoded
	opts.ReloadInterval = s.ReloadInterval
	opts.Evaluator = HCLEvaluator
	opts.Logger = logger
	return New(opts), nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default returns the process wide engine configured by conf.Configuration.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = NewFromSettings(conf.Configuration, nil, nil)
	})
	return defaultEngine, defaultErr
}
