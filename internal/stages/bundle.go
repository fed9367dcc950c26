package stages

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/pipeline"
)

// BundleBackend produces the bundle binary kind: a deterministic tar
// archive of the compile unit. It runs fully in process and exists so a
// module can require more than one output format from the same backend.
type BundleBackend struct{}

var _ pipeline.BackendFacade = BundleBackend{}

func (BundleBackend) Backend() testrun.BackendKind { return BackendGC }
func (BundleBackend) Produces() testrun.BinaryKind { return BinaryBundle }

func (BundleBackend) Produce(_ context.Context, module testrun.Module, input testrun.BackendInput, _ pipeline.ArtifactLookup) (testrun.BinaryArtifact, error) {
	unit, ok := input.Payload.(CompileUnit)
	if !ok {
		return testrun.BinaryArtifact{}, fmt.Errorf("bundle: module %q: input payload is %T, not CompileUnit", module.ID, input.Payload)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, file := range unit.Files {
		header := &tar.Header{
			Name: file.Name,
			Mode: 0o644,
			Size: int64(len(file.Content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return testrun.BinaryArtifact{}, fmt.Errorf("bundle: write header for %s: %w", file.Name, err)
		}
		if _, err := tw.Write([]byte(file.Content)); err != nil {
			return testrun.BinaryArtifact{}, fmt.Errorf("bundle: write %s: %w", file.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return testrun.BinaryArtifact{}, fmt.Errorf("bundle: close archive: %w", err)
	}

	return testrun.BinaryArtifact{Binary: BinaryBundle, Data: buf.Bytes()}, nil
}
