package ports

import "testpipe/internal/domain/testrun"

// StructureExtractor splits one raw test case into its module structure.
//
// The returned structure must list modules in dependency order: every
// module appears after all modules it depends on. Split is deterministic
// and is called exactly once per run.
type StructureExtractor interface {
	Split(test testrun.Test) (testrun.Structure, error)
}
