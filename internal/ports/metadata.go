package ports

import "testpipe/internal/domain/testrun"

// MetadataHandler runs the expectation-comparison pass of a test run.
//
// ParseExisting is invoked once before the module loop, with the full
// structure, to snapshot the expectations declared inline in module
// sources. CompareAll is invoked once after every handler has finished and
// diffs those expectations against whatever the run recorded. Both may
// return assertion failures; anything else aborts like any unexpected
// stage failure.
type MetadataHandler interface {
	ParseExisting(structure testrun.Structure) error
	CompareAll() error
}
