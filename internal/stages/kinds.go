package stages

import "testpipe/internal/domain/testrun"

// Kinds of the default pipeline over Go-source test cases.
const (
	// FrontendScan is the lightweight source-analysis frontend.
	FrontendScan testrun.FrontendKind = "scan"
	// BackendGC targets the Go compiler.
	BackendGC testrun.BackendKind = "gc"
	// BinaryExecutable is a compiled program.
	BinaryExecutable testrun.BinaryKind = "executable"
	// BinaryBundle is a tar archive of the compile unit.
	BinaryBundle testrun.BinaryKind = "bundle"
)
