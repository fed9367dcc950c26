package pipeline

import (
	"context"

	"testpipe/internal/domain/testrun"
)

// ArtifactLookup is the read-only view of the dependency registry handed to
// stage facades, so a later module's stage can retrieve an earlier module's
// artifacts. Lookups on keys that were never registered are errors: the
// orchestrator processes modules and tiers in dependency order, so a miss
// means a stage was skipped or ordered incorrectly, not a soft failure.
type ArtifactLookup interface {
	Source(id testrun.ModuleID, kind testrun.FrontendKind) (testrun.SourceArtifact, error)
	BackendInput(id testrun.ModuleID, kind testrun.BackendKind) (testrun.BackendInput, error)
	Binary(id testrun.ModuleID, kind testrun.BinaryKind) (testrun.BinaryArtifact, error)
}

// Gate decides whether a stage runs for a given module. A nil Gate in a
// registration means the stage always runs.
type Gate func(testrun.Module) bool

// FrontendFacade analyzes a module's sources into a Source artifact.
type FrontendFacade interface {
	Kind() testrun.FrontendKind
	Analyze(ctx context.Context, module testrun.Module, deps ArtifactLookup) (testrun.SourceArtifact, error)
}

// Converter turns a module's Source artifact into the input form consumed
// by one backend.
type Converter interface {
	Frontend() testrun.FrontendKind
	Backend() testrun.BackendKind
	Convert(ctx context.Context, module testrun.Module, source testrun.SourceArtifact, deps ArtifactLookup) (testrun.BackendInput, error)
}

// BackendFacade produces one binary output kind from a backend input.
type BackendFacade interface {
	Backend() testrun.BackendKind
	Produces() testrun.BinaryKind
	Produce(ctx context.Context, module testrun.Module, input testrun.BackendInput, deps ArtifactLookup) (testrun.BinaryArtifact, error)
}

// FrontendHandler verifies Source artifacts of one frontend kind.
//
// ProcessModule runs once per module producing such an artifact; it must
// not mutate the module or artifact, and reports mismatches by returning
// assertion failures (multiple via errors.Join). AfterAllModules runs
// exactly once per test run, after the module loop, even when the loop
// aborted early.
type FrontendHandler interface {
	Kind() testrun.FrontendKind
	ProcessModule(module testrun.Module, artifact testrun.SourceArtifact) error
	AfterAllModules() error
}

// BackendInputHandler verifies BackendInput artifacts of one backend kind.
type BackendInputHandler interface {
	Backend() testrun.BackendKind
	ProcessModule(module testrun.Module, artifact testrun.BackendInput) error
	AfterAllModules() error
}

// BinaryHandler verifies Binary artifacts of one output kind.
type BinaryHandler interface {
	Kind() testrun.BinaryKind
	ProcessModule(module testrun.Module, artifact testrun.BinaryArtifact) error
	AfterAllModules() error
}
