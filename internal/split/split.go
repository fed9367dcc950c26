// Package split implements the module structure extractor: it turns one
// raw test source into an ordered module list by interpreting inline
// directives.
//
// Directive syntax:
//
//	// KEY: value                   global directive (file prologue only)
//	// MODULE: name(dep1, dep2)     starts a module, dependencies optional
//	// FRONTEND: scan               per-module frontend override
//	// TARGET_BACKEND: gc           per-module backend override, "none" disables
//	// ARTIFACTS: executable, ...   binary kinds required of the module, "none" for nothing
//	// FILE: main.go                starts a named file within the module
//
// Everything else is source text of the current file. Text before the
// first MODULE directive belongs to an implicit module named "main".
package split

import (
	"fmt"
	"regexp"
	"strings"

	"testpipe/internal/domain/testrun"
)

const (
	keyModule    = "MODULE"
	keyFrontend  = "FRONTEND"
	keyBackend   = "TARGET_BACKEND"
	keyArtifacts = "ARTIFACTS"
	keyFile      = "FILE"
	keyExpect    = "EXPECT"

	implicitModule = "main"
	noneValue      = "none"
)

var (
	directiveRe = regexp.MustCompile(`^// ([A-Z][A-Z0-9_]*): ?(.*)$`)
	moduleRe    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.-]*)(?:\(([^)]*)\))?$`)
)

// Config carries the defaults applied to modules that do not override them.
type Config struct {
	DefaultFrontend  testrun.FrontendKind
	DefaultBackend   testrun.BackendKind
	DefaultArtifacts []testrun.BinaryKind
	DefaultFileName  string
}

// Extractor splits raw test input into a module structure.
type Extractor struct {
	cfg Config
}

// NewExtractor validates the defaults and builds an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.DefaultFrontend == "" {
		return nil, fmt.Errorf("split: default frontend kind must be configured")
	}
	if cfg.DefaultFileName == "" {
		cfg.DefaultFileName = "main.go"
	}
	return &Extractor{cfg: cfg}, nil
}

type moduleBuilder struct {
	module    testrun.Module
	artifacts []testrun.BinaryKind
	hasArts   bool
	fileName  string
	lines     []string
}

// Split parses the test source into its module structure. Modules must be
// declared after every module they depend on; a forward or unknown
// dependency reference is a split error, which is what lets the pipeline
// assume dependency order downstream.
func (e *Extractor) Split(test testrun.Test) (testrun.Structure, error) {
	structure := testrun.Structure{
		Required:   make(map[testrun.ModuleID][]testrun.BinaryKind),
		Directives: make(map[string]string),
	}

	var (
		builders []*moduleBuilder
		current  *moduleBuilder
		declared = make(map[testrun.ModuleID]bool)
		prologue = true
	)

	startModule := func(mod testrun.Module) {
		current = &moduleBuilder{
			module:   mod,
			fileName: e.cfg.DefaultFileName,
		}
		builders = append(builders, current)
	}

	for lineNo, line := range strings.Split(test.Source, "\n") {
		match := directiveRe.FindStringSubmatch(strings.TrimRight(line, " \t"))
		if match == nil {
			if prologue && strings.TrimSpace(line) == "" {
				continue
			}
			prologue = false
			if current == nil {
				startModule(e.defaultModule(implicitModule, nil))
				declared[implicitModule] = true
			}
			current.lines = append(current.lines, line)
			continue
		}

		key, value := match[1], strings.TrimSpace(match[2])
		switch key {
		case keyModule:
			name, deps, err := parseModuleHeader(value)
			if err != nil {
				return testrun.Structure{}, fmt.Errorf("split: line %d: %w", lineNo+1, err)
			}
			if declared[name] {
				return testrun.Structure{}, fmt.Errorf("split: line %d: duplicate module %q", lineNo+1, name)
			}
			for _, dep := range deps {
				if dep == name {
					return testrun.Structure{}, fmt.Errorf("split: line %d: module %q depends on itself", lineNo+1, name)
				}
				if !declared[dep] {
					return testrun.Structure{}, fmt.Errorf("split: line %d: module %q depends on undeclared module %q", lineNo+1, name, dep)
				}
			}
			if current != nil {
				current.flushFile()
			}
			startModule(e.defaultModule(name, deps))
			declared[name] = true
			prologue = false
		case keyFrontend:
			if current == nil {
				return testrun.Structure{}, fmt.Errorf("split: line %d: FRONTEND outside a module", lineNo+1)
			}
			current.module.Frontend = testrun.FrontendKind(value)
		case keyBackend:
			if current == nil {
				return testrun.Structure{}, fmt.Errorf("split: line %d: TARGET_BACKEND outside a module", lineNo+1)
			}
			if value == noneValue {
				current.module.Backend = testrun.BackendNone
			} else {
				current.module.Backend = testrun.BackendKind(value)
			}
		case keyArtifacts:
			if current == nil {
				return testrun.Structure{}, fmt.Errorf("split: line %d: ARTIFACTS outside a module", lineNo+1)
			}
			current.hasArts = true
			current.artifacts = parseArtifactList(value)
		case keyFile:
			if current == nil {
				startModule(e.defaultModule(implicitModule, nil))
				declared[implicitModule] = true
			}
			if value == "" {
				return testrun.Structure{}, fmt.Errorf("split: line %d: FILE directive missing name", lineNo+1)
			}
			current.flushFile()
			current.fileName = value
			prologue = false
		case keyExpect:
			// Expectations are source content for the metadata pass, not
			// structure directives.
			if current == nil {
				startModule(e.defaultModule(implicitModule, nil))
				declared[implicitModule] = true
			}
			current.lines = append(current.lines, line)
			prologue = false
		default:
			if prologue {
				structure.Directives[key] = value
				continue
			}
			if current == nil {
				startModule(e.defaultModule(implicitModule, nil))
				declared[implicitModule] = true
			}
			current.lines = append(current.lines, line)
		}
	}

	for _, b := range builders {
		b.flushFile()
		if len(b.module.Files) == 0 {
			return testrun.Structure{}, fmt.Errorf("split: module %q has no source files", b.module.ID)
		}
		structure.Modules = append(structure.Modules, b.module)
		if b.module.Backend == testrun.BackendNone {
			continue
		}
		if b.hasArts {
			structure.Required[b.module.ID] = b.artifacts
		} else if len(e.cfg.DefaultArtifacts) > 0 {
			structure.Required[b.module.ID] = append([]testrun.BinaryKind(nil), e.cfg.DefaultArtifacts...)
		}
	}

	if len(structure.Modules) == 0 {
		return testrun.Structure{}, fmt.Errorf("split: test %q contains no modules", test.ID)
	}

	return structure, nil
}

func (e *Extractor) defaultModule(id testrun.ModuleID, deps []testrun.ModuleID) testrun.Module {
	return testrun.Module{
		ID:           id,
		Frontend:     e.cfg.DefaultFrontend,
		Backend:      e.cfg.DefaultBackend,
		Dependencies: deps,
	}
}

func (b *moduleBuilder) flushFile() {
	content := strings.TrimRight(strings.Join(b.lines, "\n"), "\n")
	b.lines = nil
	if strings.TrimSpace(content) == "" {
		return
	}
	b.module.Files = append(b.module.Files, testrun.SourceFile{
		Name:    b.fileName,
		Content: content + "\n",
	})
}

func parseModuleHeader(value string) (testrun.ModuleID, []testrun.ModuleID, error) {
	match := moduleRe.FindStringSubmatch(value)
	if match == nil {
		return "", nil, fmt.Errorf("malformed MODULE directive %q", value)
	}
	name := testrun.ModuleID(match[1])
	if match[2] == "" {
		return name, nil, nil
	}
	var deps []testrun.ModuleID
	for _, field := range strings.Split(match[2], ",") {
		dep := strings.TrimSpace(field)
		if dep == "" {
			continue
		}
		deps = append(deps, testrun.ModuleID(dep))
	}
	return name, deps, nil
}

func parseArtifactList(value string) []testrun.BinaryKind {
	if value == "" || value == noneValue {
		return nil
	}
	var kinds []testrun.BinaryKind
	for _, field := range strings.Split(value, ",") {
		kind := strings.TrimSpace(field)
		if kind == "" {
			continue
		}
		kinds = append(kinds, testrun.BinaryKind(kind))
	}
	return kinds
}
