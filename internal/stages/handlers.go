package stages

import (
	"errors"
	"fmt"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/pipeline"
)

// Recorder receives observations for the metadata comparison pass.
type Recorder interface {
	Record(id testrun.ModuleID, text string)
}

// DiagnosticsHandler forwards every scan diagnostic to the metadata
// recorder, where the end-of-run comparison diffs them against the EXPECT
// annotations in the test source.
type DiagnosticsHandler struct {
	recorder Recorder
}

var _ pipeline.FrontendHandler = (*DiagnosticsHandler)(nil)

// NewDiagnosticsHandler builds a handler recording into rec.
func NewDiagnosticsHandler(rec Recorder) *DiagnosticsHandler {
	return &DiagnosticsHandler{recorder: rec}
}

func (h *DiagnosticsHandler) Kind() testrun.FrontendKind { return FrontendScan }

func (h *DiagnosticsHandler) ProcessModule(module testrun.Module, artifact testrun.SourceArtifact) error {
	payload, ok := artifact.Payload.(ScanPayload)
	if !ok {
		return fmt.Errorf("diagnostics: module %q: payload is %T, not ScanPayload", module.ID, artifact.Payload)
	}
	for _, diag := range payload.Diags {
		h.recorder.Record(module.ID, diag)
	}
	return nil
}

func (h *DiagnosticsHandler) AfterAllModules() error { return nil }

// UnitHandler verifies compile units: a unit must be non-empty and must
// contain every file of the module it was assembled for.
type UnitHandler struct{}

var _ pipeline.BackendInputHandler = UnitHandler{}

func (UnitHandler) Backend() testrun.BackendKind { return BackendGC }

func (UnitHandler) ProcessModule(module testrun.Module, artifact testrun.BackendInput) error {
	unit, ok := artifact.Payload.(CompileUnit)
	if !ok {
		return fmt.Errorf("unit: module %q: payload is %T, not CompileUnit", module.ID, artifact.Payload)
	}

	var failures []error
	if len(unit.Files) == 0 {
		failures = append(failures, testrun.Assertf("module %q: compile unit is empty", module.ID))
	}

	inUnit := make(map[string]bool, len(unit.Files))
	for _, file := range unit.Files {
		inUnit[file.Name] = true
	}
	for _, file := range module.Files {
		if !inUnit[file.Name] {
			failures = append(failures, testrun.Assertf("module %q: compile unit is missing %s", module.ID, file.Name))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return errors.Join(failures...)
}

func (UnitHandler) AfterAllModules() error { return nil }

// SizeHandler verifies produced binaries of one kind: each must carry
// data, and across the whole run at least minArtifacts must have been
// produced.
type SizeHandler struct {
	kind         testrun.BinaryKind
	minArtifacts int
	seen         int
	totalBytes   int
}

var _ pipeline.BinaryHandler = (*SizeHandler)(nil)

// NewSizeHandler builds a handler for one binary kind. minArtifacts of
// zero disables the after-all production check.
func NewSizeHandler(kind testrun.BinaryKind, minArtifacts int) *SizeHandler {
	return &SizeHandler{kind: kind, minArtifacts: minArtifacts}
}

func (h *SizeHandler) Kind() testrun.BinaryKind { return h.kind }

func (h *SizeHandler) ProcessModule(module testrun.Module, artifact testrun.BinaryArtifact) error {
	h.seen++
	h.totalBytes += len(artifact.Data)
	if len(artifact.Data) == 0 {
		return testrun.Assertf("module %q: produced empty %q artifact", module.ID, h.kind)
	}
	return nil
}

func (h *SizeHandler) AfterAllModules() error {
	if h.minArtifacts > 0 && h.seen < h.minArtifacts {
		return testrun.Assertf("expected at least %d %q artifact(s), saw %d", h.minArtifacts, h.kind, h.seen)
	}
	return nil
}

// TotalBytes reports the accumulated artifact size across the run.
func (h *SizeHandler) TotalBytes() int { return h.totalBytes }
