// Package metadata implements the expectation-comparison pass of a test
// run. Expectations are declared inline in module sources as
//
//	// EXPECT: <text>
//
// and handlers record what actually happened through the Recorder. After
// every handler has finished, CompareAll diffs the two sets per module.
package metadata

import (
	"errors"
	"strings"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/ports"
)

const expectPrefix = "// EXPECT:"

// Handler snapshots declared expectations before the module loop and
// compares them against recorded observations afterwards. A Handler is
// scoped to one test run.
type Handler struct {
	order    []testrun.ModuleID
	expected map[testrun.ModuleID][]string
	recorded map[testrun.ModuleID][]string
}

var _ ports.MetadataHandler = (*Handler)(nil)

// NewHandler builds an empty handler for one run.
func NewHandler() *Handler {
	return &Handler{
		expected: make(map[testrun.ModuleID][]string),
		recorded: make(map[testrun.ModuleID][]string),
	}
}

// Record notes one observation for a module, in the order handlers raise
// them. Handlers call this during the module loop.
func (h *Handler) Record(id testrun.ModuleID, text string) {
	h.recorded[id] = append(h.recorded[id], text)
}

// ParseExisting snapshots every EXPECT annotation across all module
// sources, in module order, then file order, then line order.
func (h *Handler) ParseExisting(structure testrun.Structure) error {
	for _, module := range structure.Modules {
		h.order = append(h.order, module.ID)
		for _, file := range module.Files {
			for _, line := range strings.Split(file.Content, "\n") {
				trimmed := strings.TrimSpace(line)
				if !strings.HasPrefix(trimmed, expectPrefix) {
					continue
				}
				text := strings.TrimSpace(strings.TrimPrefix(trimmed, expectPrefix))
				if text == "" {
					continue
				}
				h.expected[module.ID] = append(h.expected[module.ID], text)
			}
		}
	}
	return nil
}

// CompareAll diffs expectations against recordings per module: every
// expectation nothing recorded and every recording nothing expected is one
// assertion failure. Matching is per occurrence, so a doubled expectation
// needs two recordings.
func (h *Handler) CompareAll() error {
	var failures []error

	for _, id := range h.order {
		recordedLeft := countOccurrences(h.recorded[id])
		expectedLeft := countOccurrences(h.expected[id])

		for _, want := range h.expected[id] {
			if recordedLeft[want] > 0 {
				recordedLeft[want]--
				continue
			}
			failures = append(failures, testrun.Assertf("module %q: expected %q, nothing recorded", id, want))
		}
		for _, got := range h.recorded[id] {
			if expectedLeft[got] > 0 {
				expectedLeft[got]--
				continue
			}
			failures = append(failures, testrun.Assertf("module %q: recorded %q, nothing expected", id, got))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return errors.Join(failures...)
}

func countOccurrences(values []string) map[string]int {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	return counts
}
