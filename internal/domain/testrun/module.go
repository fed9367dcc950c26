package testrun

// ModuleID identifies one compilation unit within a test case.
type ModuleID string

// FrontendKind selects which frontend facade analyzes a module's sources.
type FrontendKind string

// BackendKind selects which backend consumes a module's converted form.
//
// The zero value means the module has no backend stages at all.
type BackendKind string

// BinaryKind names one concrete output format a backend can produce.
type BinaryKind string

// BackendNone disables backend conversion and artifact production for a module.
const BackendNone BackendKind = ""

// SourceFile is a single named source file belonging to a module.
type SourceFile struct {
	Name    string
	Content string
}

// Module describes one compilation unit of a test case.
//
// Modules are immutable once constructed and are created by the module
// structure extractor, never by the pipeline itself.
type Module struct {
	ID           ModuleID
	Frontend     FrontendKind
	Backend      BackendKind
	Dependencies []ModuleID
	Files        []SourceFile
}

// Structure is the ordered module list of one test case plus, per module,
// the binary kinds that must ultimately be produced for it.
//
// Modules are ordered so that every module appears after all of its
// dependencies; the extractor guarantees this, the pipeline relies on it.
type Structure struct {
	Modules    []Module
	Required   map[ModuleID][]BinaryKind
	Directives map[string]string
}

// Test is one raw test case as handed to the pipeline.
type Test struct {
	ID     string
	Source string
}
