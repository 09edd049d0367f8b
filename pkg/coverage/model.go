// Package coverage implements CoverageAnalyzer: deriving which tests cover
// which production methods, full-solution coverage reports, and diff-scoped
// coverage against a changed-method set.
package coverage

import (
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/traversal"
)

// ChangeType classifies how a file changed between two revisions.
type ChangeType string

// Known change types.
const (
	ChangeAdded    ChangeType = "Added"
	ChangeModified ChangeType = "Modified"
	ChangeDeleted  ChangeType = "Deleted"
)

// String implements fmt.Stringer.
func (c ChangeType) String() string {
	return string(c)
}

// FileChange is one file's entry in a ChangeSet, produced by a DiffParser
// collaborator.
type FileChange struct {
	File       string              `json:"file"`
	ChangeType ChangeType          `json:"change_type"`
	Methods    []callgraph.MethodId `json:"methods"`
	Types      []string            `json:"types"`
}

// ChangeSet is the full set of file changes under analysis.
type ChangeSet []FileChange

// ChangedMethods flattens every method touched across the change set,
// deduplicated.
func (cs ChangeSet) ChangedMethods() []callgraph.MethodId {
	seen := make(map[callgraph.MethodId]struct{})

	var out []callgraph.MethodId

	for _, fc := range cs {
		for _, id := range fc.Methods {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}

			out = append(out, id)
		}
	}

	return out
}

// Solution identifies the project set a coverage query runs against: Path
// is the cache key used with CallGraphCache, ProjectPaths is passed to the
// CallGraphBuilder collaborator, and Dependencies participates in cache
// identity the same way CallGraphCache.Get/Store does.
type Solution struct {
	Path         string
	ProjectPaths []string
	Dependencies []string
}

// CoverageRecord reports every test transitively covering a single
// production method.
type CoverageRecord struct {
	ProductionMethod callgraph.MethodId        `json:"production_method"`
	CoveringTests    []traversal.TestReference `json:"covering_tests"`
}

// CategoryBreakdown counts methods per traversal.Category.
type CategoryBreakdown map[traversal.Category]int

// CoverageStatistics summarizes a coverage report.
type CoverageStatistics struct {
	TotalProductionMethods int                `json:"total_production_methods"`
	CoveredMethods         int                `json:"covered_methods"`
	UncoveredMethods       int                `json:"uncovered_methods"`
	CoveragePercentage     float64            `json:"coverage_percentage"`
	ByCategory             CategoryBreakdown  `json:"by_category"`
}

// CoverageReport is the full-solution coverage result.
type CoverageReport struct {
	TestToExecution  map[callgraph.MethodId]traversal.ExecutionTrace `json:"test_to_execution"`
	UncoveredMethods []callgraph.MethodId                            `json:"uncovered_methods"`
	Statistics       CoverageStatistics                              `json:"statistics"`
}

// DiffCoverageResult reports how much of a change set is exercised by a
// candidate set of tests.
type DiffCoverageResult struct {
	TotalChangedMethods   int                   `json:"total_changed_methods"`
	CoveredChangedMethods int                   `json:"covered_changed_methods"`
	Percentage            float64               `json:"percentage"`
	UncoveredMethods       []callgraph.MethodId `json:"uncovered_methods"`
}
