package callgraph

const defaultMaxIssues = 10

// IssueSeverity classifies an integrity issue.
type IssueSeverity string

const (
	// SeverityCritical marks an issue that makes the graph untrustworthy: a
	// null or empty caller/callee id.
	SeverityCritical IssueSeverity = "critical"

	// SeverityNote marks a non-critical issue: a one-directional edge
	// (present in Forward but not mirrored in Reverse, or vice versa).
	SeverityNote IssueSeverity = "note"
)

// IntegrityIssue describes a single consistency problem found in a
// CallGraph.
type IntegrityIssue struct {
	Severity IssueSeverity
	Caller   MethodId
	Callee   MethodId
	Detail   string
}

// IntegrityResult is the outcome of CheckIntegrity: Valid is false only
// when at least one critical issue was found, but Issues always carries
// every issue discovered (critical and non-critical), up to the configured
// cap.
type IntegrityResult struct {
	Valid     bool
	Issues    []IntegrityIssue
	Truncated bool
}

// CheckIntegrity validates a CallGraph's forward/reverse mirror invariant
// and rejects null/empty ids. This implements a tolerant-of-N policy: the
// graph is marked invalid only when a critical issue (null/empty id) is
// found; one-directional edges are recorded as notes but do not flip
// Valid to false. Reporting stops after maxIssues issues (0 uses the
// default of 10).
func CheckIntegrity(g *CallGraph, maxIssues int) IntegrityResult {
	if maxIssues <= 0 {
		maxIssues = defaultMaxIssues
	}

	result := IntegrityResult{Valid: true}

	record := func(issue IntegrityIssue) bool {
		if len(result.Issues) >= maxIssues {
			result.Truncated = true

			return false
		}

		if issue.Severity == SeverityCritical {
			result.Valid = false
		}

		result.Issues = append(result.Issues, issue)

		return true
	}

	for caller, callees := range g.Forward {
		if caller == "" {
			if !record(IntegrityIssue{Severity: SeverityCritical, Caller: caller, Detail: "empty caller id in forward map"}) {
				return result
			}

			continue
		}

		for callee := range callees {
			if callee == "" {
				if !record(IntegrityIssue{Severity: SeverityCritical, Caller: caller, Detail: "empty callee id in forward map"}) {
					return result
				}

				continue
			}

			if !g.Reverse[callee].Contains(caller) {
				if !record(IntegrityIssue{
					Severity: SeverityNote,
					Caller:   caller,
					Callee:   callee,
					Detail:   "edge present in forward but missing from reverse",
				}) {
					return result
				}
			}
		}
	}

	for callee, callers := range g.Reverse {
		if callee == "" {
			if !record(IntegrityIssue{Severity: SeverityCritical, Callee: callee, Detail: "empty callee id in reverse map"}) {
				return result
			}

			continue
		}

		for caller := range callers {
			if caller == "" {
				if !record(IntegrityIssue{Severity: SeverityCritical, Callee: callee, Detail: "empty caller id in reverse map"}) {
					return result
				}

				continue
			}

			if !g.Forward[caller].Contains(callee) {
				if !record(IntegrityIssue{
					Severity: SeverityNote,
					Caller:   caller,
					Callee:   callee,
					Detail:   "edge present in reverse but missing from forward",
				}) {
					return result
				}
			}
		}
	}

	return result
}
