package coverage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/traversal"
)

// GenerateCoverageReport traces every test in solution's graph and
// classifies every known production method as covered or uncovered.
// A partial graph (methods referenced but never defined, i.e. external)
// does not fail the report; it is simply excluded from the production
// method universe.
func (a *Analyzer) GenerateCoverageReport(ctx context.Context, solution Solution) (*CoverageReport, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	report := &CoverageReport{
		TestToExecution: make(map[callgraph.MethodId]traversal.ExecutionTrace),
		Statistics:       CoverageStatistics{ByCategory: make(CategoryBreakdown)},
	}

	covered := make(map[callgraph.MethodId]struct{})

	for id, info := range graph.Definitions {
		if !info.IsTest {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coverage: generate report: %w", err)
		}

		trace, err := a.traversal.TraceForward(ctx, id, graph)
		if err != nil {
			return nil, err
		}

		a.stats.Queries.Add(1)
		report.TestToExecution[id] = *trace

		for _, executed := range trace.Executed {
			if executed.IsProduction {
				covered[executed.ID] = struct{}{}
			}
		}
	}

	var total int

	for id, info := range graph.Definitions {
		if info.IsTest {
			continue
		}

		category := a.classifier.Classify(info)
		if !a.classifier.IsProduction(category) {
			continue
		}

		total++
		report.Statistics.ByCategory[category]++

		if _, ok := covered[id]; !ok {
			report.UncoveredMethods = append(report.UncoveredMethods, id)
		}
	}

	sort.Slice(report.UncoveredMethods, func(i, j int) bool { return report.UncoveredMethods[i] < report.UncoveredMethods[j] })

	report.Statistics.TotalProductionMethods = total
	report.Statistics.CoveredMethods = total - len(report.UncoveredMethods)
	report.Statistics.UncoveredMethods = len(report.UncoveredMethods)

	if total > 0 {
		report.Statistics.CoveragePercentage = 100 * float64(report.Statistics.CoveredMethods) / float64(total)
	}

	return report, nil
}

// RenderTable formats a CoverageReport as a human-readable table via
// go-pretty, with the overall percentage colorized by fatih/color:
// green at or above 80%, yellow at or above 50%, red below.
func (r *CoverageReport) RenderTable() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Category", "Count"})

	categories := make([]string, 0, len(r.Statistics.ByCategory))
	for category := range r.Statistics.ByCategory {
		categories = append(categories, string(category))
	}

	sort.Strings(categories)

	for _, category := range categories {
		t.AppendRow(table.Row{category, r.Statistics.ByCategory[traversal.Category(category)]})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"Total production methods", r.Statistics.TotalProductionMethods})
	t.AppendRow(table.Row{"Covered", r.Statistics.CoveredMethods})
	t.AppendRow(table.Row{"Uncovered", r.Statistics.UncoveredMethods})

	var buf strings.Builder

	buf.WriteString(t.Render())
	buf.WriteString("\n")
	buf.WriteString(percentageColor(r.Statistics.CoveragePercentage)(
		fmt.Sprintf("Coverage: %.1f%%", r.Statistics.CoveragePercentage),
	))

	return buf.String()
}

func percentageColor(pct float64) func(a ...interface{}) string {
	switch {
	case pct >= 80:
		return color.New(color.FgGreen).SprintFunc()
	case pct >= 50:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}
