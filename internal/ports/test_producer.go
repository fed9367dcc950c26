package ports

import (
	"context"

	"testpipe/internal/domain/testrun"
)

// TestProducer supplies test cases to a runner service.
//
// NextTest returns io.EOF once no further tests will arrive.
type TestProducer interface {
	NextTest(ctx context.Context) (testrun.Test, error)
	Close() error
}
