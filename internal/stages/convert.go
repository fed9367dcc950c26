package stages

import (
	"context"
	"fmt"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/pipeline"
)

// CompileUnit is the BackendInput payload for the gc backend: every file
// the backend needs, dependency files first, in module-structure order.
type CompileUnit struct {
	Module testrun.ModuleID
	Files  []testrun.SourceFile
}

// LinkConverter assembles a module's compile unit from its own scanned
// sources plus those of every declared dependency, fetched from the
// dependency registry. The pipeline processes modules in dependency order,
// so every lookup hits an artifact registered earlier in the run.
type LinkConverter struct{}

var _ pipeline.Converter = LinkConverter{}

func (LinkConverter) Frontend() testrun.FrontendKind { return FrontendScan }
func (LinkConverter) Backend() testrun.BackendKind   { return BackendGC }

func (LinkConverter) Convert(_ context.Context, module testrun.Module, source testrun.SourceArtifact, deps pipeline.ArtifactLookup) (testrun.BackendInput, error) {
	payload, ok := source.Payload.(ScanPayload)
	if !ok {
		return testrun.BackendInput{}, fmt.Errorf("link: module %q: source payload is %T, not ScanPayload", module.ID, source.Payload)
	}

	unit := CompileUnit{Module: module.ID}
	seen := make(map[string]testrun.ModuleID)

	add := func(owner testrun.ModuleID, files []testrun.SourceFile) error {
		for _, file := range files {
			if prev, dup := seen[file.Name]; dup {
				return fmt.Errorf("link: module %q: file %s provided by both %q and %q", module.ID, file.Name, prev, owner)
			}
			seen[file.Name] = owner
			unit.Files = append(unit.Files, file)
		}
		return nil
	}

	for _, dep := range module.Dependencies {
		depSource, err := deps.Source(dep, FrontendScan)
		if err != nil {
			return testrun.BackendInput{}, err
		}
		depPayload, ok := depSource.Payload.(ScanPayload)
		if !ok {
			return testrun.BackendInput{}, fmt.Errorf("link: dependency %q: source payload is %T, not ScanPayload", dep, depSource.Payload)
		}
		if err := add(dep, depPayload.Files); err != nil {
			return testrun.BackendInput{}, err
		}
	}
	if err := add(module.ID, payload.Files); err != nil {
		return testrun.BackendInput{}, err
	}

	return testrun.BackendInput{Backend: BackendGC, Payload: unit}, nil
}
