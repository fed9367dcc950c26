package pipeline

import (
	"context"
	"fmt"
	"time"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/ports"
)

// Orchestrator drives one test case through the pipeline: it splits the
// raw input into modules, walks every module through frontend analysis,
// conversion and artifact production in order, routes each artifact to the
// matching handlers, and aggregates every assertion failure into a single
// result.
//
// Unexpected failures (anything a handler or facade returns that is not an
// assertion failure, including registry violations) abort the remaining
// module loop: the error is wrapped into one recorded failure and the run
// still finishes its post-loop phases.
type Orchestrator struct {
	config    *Configuration
	extractor ports.StructureExtractor
	metadata  ports.MetadataHandler
}

var _ ports.TestRunner = (*Orchestrator)(nil)

// New wires an orchestrator from a validated configuration and a structure
// extractor. The metadata handler is optional; pass nil to skip the
// expectation-comparison pass.
func New(config *Configuration, extractor ports.StructureExtractor, metadata ports.MetadataHandler) (*Orchestrator, error) {
	if config == nil {
		return nil, fmt.Errorf("orchestrator: configuration cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("orchestrator: structure extractor cannot be nil")
	}
	return &Orchestrator{
		config:    config,
		extractor: extractor,
		metadata:  metadata,
	}, nil
}

// RunTest executes one test case end to end and returns every collected
// failure. The dependency registry and collector are scoped to this call,
// so distinct runs are independent and may execute concurrently.
func (o *Orchestrator) RunTest(ctx context.Context, test testrun.Test) testrun.Result {
	start := time.Now()
	collector := NewCollector()
	registry := NewDependencyRegistry()

	if unexpected := o.processAllModules(ctx, test, registry, collector); unexpected != nil {
		collector.Record(testrun.AssertCause("module processing aborted", unexpected))
	}

	o.afterAllModules(collector)

	if o.metadata != nil {
		if unexpected := collector.RunIsolated(o.metadata.CompareAll); unexpected != nil {
			collector.Record(testrun.AssertCause("metadata comparison failed", unexpected))
		}
	}

	return testrun.Result{
		TestID:   test.ID,
		Failures: collector.Failures(),
		Duration: time.Since(start),
	}
}

// processAllModules runs the split, the expectation snapshot and the module
// loop. The first unexpected failure is returned and aborts everything that
// would have followed inside the loop; post-loop phases are the caller's
// responsibility and always run.
func (o *Orchestrator) processAllModules(ctx context.Context, test testrun.Test, registry *DependencyRegistry, collector *Collector) error {
	structure, err := o.extractor.Split(test)
	if err != nil {
		return fmt.Errorf("split test input: %w", err)
	}

	if o.metadata != nil {
		if err := collector.RunIsolated(func() error { return o.metadata.ParseExisting(structure) }); err != nil {
			return fmt.Errorf("parse expectations: %w", err)
		}
	}

	for _, module := range structure.Modules {
		if err := o.processModule(ctx, module, structure, registry, collector); err != nil {
			return fmt.Errorf("module %q: %w", module.ID, err)
		}
	}

	return nil
}

func (o *Orchestrator) processModule(ctx context.Context, module testrun.Module, structure testrun.Structure, registry *DependencyRegistry, collector *Collector) error {
	frontend, err := o.config.frontendFor(module.Frontend)
	if err != nil {
		return err
	}
	if !frontend.enabled(module) {
		return nil
	}

	source, err := frontend.facade.Analyze(ctx, module, registry)
	if err != nil {
		return fmt.Errorf("frontend analysis: %w", err)
	}
	if source.Frontend != module.Frontend {
		return fmt.Errorf("frontend %q produced artifact tagged %q", module.Frontend, source.Frontend)
	}
	if err := registry.Register(module.ID, source); err != nil {
		return err
	}
	for _, handler := range frontend.handlers {
		if err := collector.RunIsolated(func() error { return handler.ProcessModule(module, source) }); err != nil {
			return fmt.Errorf("frontend handler: %w", err)
		}
	}

	if module.Backend == testrun.BackendNone {
		return nil
	}
	backend, err := o.config.backendFor(module.Backend)
	if err != nil {
		return err
	}
	if !backend.enabled(module) {
		return nil
	}

	converter, err := o.config.converterFor(module.Frontend, module.Backend)
	if err != nil {
		return err
	}
	input, err := converter.Convert(ctx, module, source, registry)
	if err != nil {
		return fmt.Errorf("conversion: %w", err)
	}
	if input.Backend != module.Backend {
		return fmt.Errorf("converter for backend %q produced artifact tagged %q", module.Backend, input.Backend)
	}
	if err := registry.Register(module.ID, input); err != nil {
		return err
	}
	for _, handler := range backend.handlers {
		if err := collector.RunIsolated(func() error { return handler.ProcessModule(module, input) }); err != nil {
			return fmt.Errorf("backend handler: %w", err)
		}
	}

	for _, kind := range structure.Required[module.ID] {
		binary, err := o.config.binaryFor(module.Backend, kind)
		if err != nil {
			return err
		}
		if !binary.enabled(module) {
			continue
		}

		artifact, err := binary.facade.Produce(ctx, module, input, registry)
		if err != nil {
			return fmt.Errorf("produce %q artifact: %w", kind, err)
		}
		if artifact.Binary != kind {
			return fmt.Errorf("backend facade for %q produced artifact tagged %q", kind, artifact.Binary)
		}
		if err := registry.Register(module.ID, artifact); err != nil {
			return err
		}
		for _, handler := range binary.handlers {
			if err := collector.RunIsolated(func() error { return handler.ProcessModule(module, artifact) }); err != nil {
				return fmt.Errorf("binary handler: %w", err)
			}
		}
	}

	return nil
}

// afterAllModules invokes every registered handler's after-all hook exactly
// once, in registration order, regardless of how the module loop ended.
// Hooks are isolated from each other; an unexpected failure here has no
// remaining loop to abort, so it is wrapped and recorded in place.
func (o *Orchestrator) afterAllModules(collector *Collector) {
	record := func(err error) {
		if err != nil {
			collector.Record(testrun.AssertCause("after-all handler failed", err))
		}
	}

	for _, entry := range o.config.frontends {
		for _, handler := range entry.handlers {
			record(collector.RunIsolated(handler.AfterAllModules))
		}
	}
	for _, entry := range o.config.backends {
		for _, handler := range entry.handlers {
			record(collector.RunIsolated(handler.AfterAllModules))
		}
	}
	for _, entry := range o.config.binaries {
		for _, handler := range entry.handlers {
			record(collector.RunIsolated(handler.AfterAllModules))
		}
	}
}
