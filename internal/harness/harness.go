package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Thox33/sync-tool/internal/config"
	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/provider/memory"
)

// DefaultRunID is the run id used when a scenario does not set one.
const DefaultRunID = "run-1"

// Harness executes one scenario. Every configured provider, whatever its
// kind, is served by a memory provider that records its calls.
type Harness struct {
	scenario *Scenario
	logger   *slog.Logger

	mu        sync.Mutex
	providers map[string]*memory.Provider
	calls     []Call
	idPaths   map[string]string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Parse the scenario configuration and resolve the rule
// 2. Register a recording memory factory for every provider kind
// 3. Initialize the controller and run the rule
// 4. Collect the final provider state and evaluate the assertions
//
// Errors from initialization or the run are part of the result. Run only
// fails when the scenario itself cannot be set up.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	filename := scenario.ConfigFile
	if filename == "" {
		filename = "sync.cue"
	}
	cfg, err := config.LoadBytes(filename, []byte(scenario.Config))
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario config: %w", err)
	}
	rule, err := cfg.Rule(scenario.Sync, scenario.Rule)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scenario rule: %w", err)
	}
	for name := range scenario.Seed {
		if _, ok := cfg.Providers[name]; !ok {
			return nil, fmt.Errorf("seed: unknown provider %q", name)
		}
	}

	h := &Harness{
		scenario:  scenario,
		logger:    slog.New(slog.DiscardHandler),
		providers: make(map[string]*memory.Provider),
		idPaths:   make(map[string]string),
	}

	registry := provider.NewRegistry()
	for _, pc := range cfg.Providers {
		if !registry.Has(pc.Kind) {
			registry.MustRegister(pc.Kind, h.newProvider)
		}
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	opts := []engine.Option{
		engine.WithRegistry(registry),
		engine.WithLogger(h.logger),
		engine.WithRunIDGenerator(engine.NewFixedRunIDs(runID)),
	}
	if scenario.Workers > 0 {
		opts = append(opts, engine.WithWorkers(scenario.Workers))
	}
	if scenario.StepFactor > 0 {
		opts = append(opts, engine.WithStepFactor(scenario.StepFactor))
	}

	result := NewResult()
	ctrl := engine.NewController(cfg, rule, opts...)
	if err := ctrl.Init(ctx); err != nil {
		result.Err = err
	} else {
		result.Report, result.Err = ctrl.Sync(ctx, scenario.DryRun)
	}

	h.collect(result)
	checkAssertions(result, scenario.Assertions)
	return result, nil
}

// newProvider is the registry factory. Both endpoints of a rule may name
// the same provider, so instances are shared by name.
func (h *Harness) newProvider(name string, options map[string]any) (provider.Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.providers[name]; ok {
		return p, nil
	}

	p, err := memory.New(name, options)
	if err != nil {
		return nil, err
	}
	for _, itemType := range slices.Sorted(maps.Keys(h.scenario.Seed[name])) {
		for i, rec := range h.scenario.Seed[name][itemType] {
			if err := p.Insert(itemType, rec); err != nil {
				return nil, fmt.Errorf("seed %s %s[%d]: %w", name, itemType, i, err)
			}
		}
	}
	p.SetHook(h.hook(name))

	idPath, err := provider.StringOption(options, "idPath", "id")
	if err != nil {
		return nil, err
	}
	h.idPaths[name] = idPath
	h.providers[name] = p
	return p, nil
}

// hook records every call and fails the ones a scenario failure matches.
func (h *Harness) hook(name string) memory.Hook {
	return func(op memory.Op, itemType, id string, _ provider.Record) error {
		var injected error
		for _, f := range h.scenario.Failures {
			if f.matches(name, op, id) {
				injected = errors.New(f.Error)
				break
			}
		}

		call := Call{Provider: name, Op: op, ItemType: itemType, ID: id}
		if injected != nil {
			call.Err = injected.Error()
		}
		h.mu.Lock()
		call.Seq = len(h.calls) + 1
		h.calls = append(h.calls, call)
		h.mu.Unlock()
		return injected
	}
}

func (h *Harness) collect(result *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	result.Calls = append(result.Calls, h.calls...)
	for name, p := range h.providers {
		byType := make(map[string][]provider.Record)
		for _, itemType := range p.ItemTypes() {
			byType[itemType] = p.Records(itemType)
		}
		result.State[name] = byType
		result.idPaths[name] = h.idPaths[name]
	}
}
