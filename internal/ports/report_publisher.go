package ports

import (
	"context"

	"testpipe/internal/domain/testrun"
)

// ReportPublisher delivers test run results to an external system.
type ReportPublisher interface {
	PublishResult(ctx context.Context, result testrun.Result) error
	Close() error
}
