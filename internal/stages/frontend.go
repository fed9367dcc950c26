package stages

import (
	"context"
	"fmt"
	"strings"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/pipeline"
)

// brokenMarker flags a file as an intentional diagnostic in test sources.
const brokenMarker = "// BROKEN"

// ScanPayload is the Source artifact payload of the scan frontend.
type ScanPayload struct {
	Package string
	Files   []testrun.SourceFile
	Decls   []string
	Diags   []string
}

// ScanFrontend is a structural source analysis: it extracts the package
// clause and top-level declaration names and raises diagnostics for
// structural problems. It performs no semantic analysis; content-level
// verdicts belong to handlers.
type ScanFrontend struct{}

var _ pipeline.FrontendFacade = ScanFrontend{}

func (ScanFrontend) Kind() testrun.FrontendKind { return FrontendScan }

func (ScanFrontend) Analyze(_ context.Context, module testrun.Module, _ pipeline.ArtifactLookup) (testrun.SourceArtifact, error) {
	if len(module.Files) == 0 {
		return testrun.SourceArtifact{}, fmt.Errorf("scan: module %q has no source files", module.ID)
	}

	payload := ScanPayload{Files: module.Files}
	seen := make(map[string]bool, len(module.Files))

	for _, file := range module.Files {
		if seen[file.Name] {
			payload.Diags = append(payload.Diags, fmt.Sprintf("duplicate file %s", file.Name))
		}
		seen[file.Name] = true

		pkg := packageClause(file.Content)
		switch {
		case pkg == "":
			payload.Diags = append(payload.Diags, fmt.Sprintf("missing package clause in %s", file.Name))
		case payload.Package == "":
			payload.Package = pkg
		case pkg != payload.Package:
			payload.Diags = append(payload.Diags, fmt.Sprintf("package mismatch in %s: %s vs %s", file.Name, pkg, payload.Package))
		}

		payload.Decls = append(payload.Decls, topLevelDecls(file.Content)...)

		if strings.Contains(file.Content, brokenMarker) {
			payload.Diags = append(payload.Diags, fmt.Sprintf("broken file %s", file.Name))
		}
	}

	return testrun.SourceArtifact{Frontend: FrontendScan, Payload: payload}, nil
}

func packageClause(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(trimmed, "package "); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func topLevelDecls(content string) []string {
	var decls []string
	for _, line := range strings.Split(content, "\n") {
		for _, prefix := range []string{"func ", "type ", "var ", "const "} {
			rest, ok := strings.CutPrefix(line, prefix)
			if !ok {
				continue
			}
			if name := declName(rest); name != "" {
				decls = append(decls, name)
			}
			break
		}
	}
	return decls
}

func declName(rest string) string {
	rest = strings.TrimSpace(rest)
	for i, r := range rest {
		if r == '(' || r == ' ' || r == '[' || r == '=' {
			return rest[:i]
		}
	}
	return rest
}
