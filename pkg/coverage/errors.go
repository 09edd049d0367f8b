package coverage

import "errors"

// Sentinel errors returned by CoverageAnalyzer.
var (
	// ErrInvalidArgument is returned for caller-supplied arguments that
	// cannot be satisfied (empty solution path, nil method id list).
	ErrInvalidArgument = errors.New("coverage: invalid argument")

	// ErrBuild wraps a failure from the CallGraphBuilder collaborator.
	ErrBuild = errors.New("coverage: call graph build failed")
)
