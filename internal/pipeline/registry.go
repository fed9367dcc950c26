package pipeline

import (
	"fmt"

	"testpipe/internal/domain/testrun"
)

type artifactKey struct {
	module testrun.ModuleID
	tier   testrun.Tier
	kind   string
}

// DependencyRegistry stores every artifact produced during one test run,
// keyed by (module, tier, kind). Registration is single-writer: a second
// write to the same key is a programming error, as is a lookup for a key
// that was never written. Both surface as plain errors so the orchestrator
// treats them as unexpected failures.
//
// A registry is scoped to a single run; construct a fresh one per RunTest
// call. Execution is single-threaded within a run, so no locking.
type DependencyRegistry struct {
	artifacts map[artifactKey]testrun.Artifact
}

// NewDependencyRegistry builds an empty per-run registry.
func NewDependencyRegistry() *DependencyRegistry {
	return &DependencyRegistry{artifacts: make(map[artifactKey]testrun.Artifact)}
}

// Register stores an artifact under the key derived from its tier and kind
// tags. The artifact must not already be registered for this module.
func (r *DependencyRegistry) Register(id testrun.ModuleID, artifact testrun.Artifact) error {
	key := artifactKey{module: id, tier: artifact.Tier(), kind: artifact.Kind()}
	if _, exists := r.artifacts[key]; exists {
		return fmt.Errorf("dependency registry: %s artifact %q already registered for module %q", key.tier, key.kind, id)
	}
	r.artifacts[key] = artifact
	return nil
}

// Get returns the artifact registered under the exact key, or an error if
// the key was never written.
func (r *DependencyRegistry) Get(id testrun.ModuleID, tier testrun.Tier, kind string) (testrun.Artifact, error) {
	artifact, ok := r.artifacts[artifactKey{module: id, tier: tier, kind: kind}]
	if !ok {
		return nil, fmt.Errorf("dependency registry: no %s artifact %q registered for module %q", tier, kind, id)
	}
	return artifact, nil
}

// Has reports whether the exact key holds an artifact.
func (r *DependencyRegistry) Has(id testrun.ModuleID, tier testrun.Tier, kind string) bool {
	_, ok := r.artifacts[artifactKey{module: id, tier: tier, kind: kind}]
	return ok
}

// Source retrieves a registered Source artifact.
func (r *DependencyRegistry) Source(id testrun.ModuleID, kind testrun.FrontendKind) (testrun.SourceArtifact, error) {
	artifact, err := r.Get(id, testrun.TierSource, string(kind))
	if err != nil {
		return testrun.SourceArtifact{}, err
	}
	return artifact.(testrun.SourceArtifact), nil
}

// BackendInput retrieves a registered BackendInput artifact.
func (r *DependencyRegistry) BackendInput(id testrun.ModuleID, kind testrun.BackendKind) (testrun.BackendInput, error) {
	artifact, err := r.Get(id, testrun.TierBackendInput, string(kind))
	if err != nil {
		return testrun.BackendInput{}, err
	}
	return artifact.(testrun.BackendInput), nil
}

// Binary retrieves a registered Binary artifact.
func (r *DependencyRegistry) Binary(id testrun.ModuleID, kind testrun.BinaryKind) (testrun.BinaryArtifact, error) {
	artifact, err := r.Get(id, testrun.TierBinary, string(kind))
	if err != nil {
		return testrun.BinaryArtifact{}, err
	}
	return artifact.(testrun.BinaryArtifact), nil
}

var _ ArtifactLookup = (*DependencyRegistry)(nil)
