// Package producer implements an in-memory test producer, mainly for
// running local test files without a broker.
package producer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"testpipe/internal/domain/testrun"
	"testpipe/internal/ports"
)

// Service implements ports.TestProducer over a fixed catalogue of tests.
type Service struct {
	mu    sync.Mutex
	tests []testrun.Test
	index int
}

var _ ports.TestProducer = (*Service)(nil)

// NewService builds a producer over the given tests.
func NewService(tests ...testrun.Test) *Service {
	return &Service{tests: tests}
}

// NewFromFiles reads each path as one test case. The test ID is the file
// name without its extension.
func NewFromFiles(paths []string) (*Service, error) {
	tests := make([]testrun.Test, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read test file: %w", err)
		}
		base := filepath.Base(path)
		tests = append(tests, testrun.Test{
			ID:     strings.TrimSuffix(base, filepath.Ext(base)),
			Source: string(data),
		})
	}
	return NewService(tests...), nil
}

// NextTest returns the next catalogued test, or io.EOF once exhausted.
func (s *Service) NextTest(ctx context.Context) (testrun.Test, error) {
	select {
	case <-ctx.Done():
		return testrun.Test{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.tests) {
		return testrun.Test{}, io.EOF
	}

	test := s.tests[s.index]
	s.index++

	return test, nil
}

// AddTest extends the catalogue at runtime.
func (s *Service) AddTest(test testrun.Test) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if test.ID == "" {
		test.ID = fmt.Sprintf("test-%d", len(s.tests)+1)
	}
	s.tests = append(s.tests, test)
}

// Close implements ports.TestProducer. It has nothing to release.
func (s *Service) Close() error { return nil }
