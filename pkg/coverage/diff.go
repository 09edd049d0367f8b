package coverage

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
)

// AnalyzeDiffCoverage intersects changeSet's changed methods with the set
// of methods executed by any of candidateTests, against solution's current
// graph.
func (a *Analyzer) AnalyzeDiffCoverage(ctx context.Context, changeSet ChangeSet, candidateTests []callgraph.MethodId, solution Solution) (*DiffCoverageResult, error) {
	changed := changeSet.ChangedMethods()
	if len(changed) == 0 {
		return &DiffCoverageResult{}, nil
	}

	executed, err := a.executedMethodSet(ctx, candidateTests, solution)
	if err != nil {
		return nil, err
	}

	result := &DiffCoverageResult{TotalChangedMethods: len(changed)}

	for _, method := range changed {
		if _, ok := executed[method]; ok {
			result.CoveredChangedMethods++
		} else {
			result.UncoveredMethods = append(result.UncoveredMethods, method)
		}
	}

	sort.Slice(result.UncoveredMethods, func(i, j int) bool { return result.UncoveredMethods[i] < result.UncoveredMethods[j] })

	if result.TotalChangedMethods > 0 {
		result.Percentage = 100 * float64(result.CoveredChangedMethods) / float64(result.TotalChangedMethods)
	}

	return result, nil
}

// executedMethodSet unions every method executed by any of testIDs against
// solution's current graph.
func (a *Analyzer) executedMethodSet(ctx context.Context, testIDs []callgraph.MethodId, solution Solution) (map[callgraph.MethodId]struct{}, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	executed := make(map[callgraph.MethodId]struct{})

	for _, id := range testIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coverage: analyze diff coverage: %w", err)
		}

		trace, err := a.traversal.TraceForward(ctx, id, graph)
		if err != nil {
			return nil, err
		}

		a.stats.Queries.Add(1)

		for _, method := range trace.Executed {
			executed[method.ID] = struct{}{}
		}
	}

	return executed, nil
}

// AnalyzeDiffCoverageFromFile reads a diff from filePath, parses it via
// parser, and runs AnalyzeDiffCoverage against the result.
func (a *Analyzer) AnalyzeDiffCoverageFromFile(ctx context.Context, parser DiffParser, filePath string, candidateTests []callgraph.MethodId, solution Solution) (*DiffCoverageResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("coverage: read diff file: %w", err)
	}

	changeSet, err := parser.Parse(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("coverage: parse diff file: %w", err)
	}

	return a.AnalyzeDiffCoverage(ctx, changeSet, candidateTests, solution)
}

// AnalyzeDiffCoverageFromGit delegates entirely to parser to obtain a
// ChangeSet from source (a git ref, range, or similar); this module never
// shells out to git directly.
func (a *Analyzer) AnalyzeDiffCoverageFromGit(ctx context.Context, parser DiffParser, source string, candidateTests []callgraph.MethodId, solution Solution) (*DiffCoverageResult, error) {
	changeSet, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("coverage: parse git diff: %w", err)
	}

	return a.AnalyzeDiffCoverage(ctx, changeSet, candidateTests, solution)
}
