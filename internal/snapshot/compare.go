package snapshot

// Comparison thresholds. Tuned for "page broke after an update" detection,
// not general performance monitoring.
const (
	// responseTimeWarnRatio and responseTimeCritRatio bound the post/pre
	// response time ratio before an issue is raised.
	responseTimeWarnRatio = 2.0
	responseTimeCritRatio = 5.0

	// responseTimeImprovedRatio below which the delta counts as an improvement.
	responseTimeImprovedRatio = 0.8

	// contentShrinkMinBytes is the minimum pre-change body size before the
	// shrink heuristic applies; tiny pages flap too much to judge.
	contentShrinkMinBytes = 500

	// contentShrinkRatio is the post/pre length ratio below which a changed
	// page is considered to have collapsed into an error/empty render.
	contentShrinkRatio = 0.5

	// phpErrorDelta is how many new log errors are tolerated before warning.
	phpErrorDelta = 5
)

// Compare diffs a pre-change and post-change snapshot. Pure function: only
// checks present in both snapshots (matched by name) are evaluated.
func Compare(pre, post *Snapshot) *ComparisonResult {
	result := &ComparisonResult{
		Verdict: VerdictOK,
		Issues:  []Issue{},
		PreID:   pre.ID,
		PostID:  post.ID,
	}

	for name, before := range pre.Checks {
		after, ok := post.Checks[name]
		if !ok {
			continue
		}
		result.ChecksCompared++

		if name == CheckPHPErrors {
			compareErrorLog(result, name, before, after)
			continue
		}

		// HTTP-style checks carry an http_status; everything else
		// (database, disk, memory) has no regression rule beyond its own
		// captured status and is informational in the diff.
		if before.HTTPStatus == 0 && after.HTTPStatus == 0 {
			continue
		}

		compareHTTPStatus(result, name, before, after)
		compareResponseTime(result, name, before, after)
		compareContent(result, name, before, after)
	}

	result.Verdict = overallVerdict(result.Issues)
	return result
}

func compareHTTPStatus(result *ComparisonResult, name string, before, after CheckResult) {
	// Only a working page that stopped working counts. A page that was
	// already broken before the change is not the update's fault.
	if before.HTTPStatus == 200 && after.HTTPStatus != 200 {
		result.Issues = append(result.Issues, Issue{
			Check:    name,
			Type:     IssueHTTPStatusRegression,
			Before:   before.HTTPStatus,
			After:    after.HTTPStatus,
			Severity: SeverityCritical,
		})
	}
}

func compareResponseTime(result *ComparisonResult, name string, before, after CheckResult) {
	if before.ResponseMS <= 0 {
		return
	}
	ratio := float64(after.ResponseMS) / float64(before.ResponseMS)

	switch {
	case ratio > responseTimeCritRatio:
		result.Issues = append(result.Issues, Issue{
			Check:    name,
			Type:     IssueResponseTimeCritical,
			Before:   before.ResponseMS,
			After:    after.ResponseMS,
			Severity: SeverityCritical,
		})
	case ratio > responseTimeWarnRatio:
		result.Issues = append(result.Issues, Issue{
			Check:    name,
			Type:     IssueResponseTimeWarning,
			Before:   before.ResponseMS,
			After:    after.ResponseMS,
			Severity: SeverityWarning,
		})
	case ratio < responseTimeImprovedRatio:
		result.Improvements = append(result.Improvements, Improvement{
			Check:  name,
			Type:   "response_time",
			Before: before.ResponseMS,
			After:  after.ResponseMS,
		})
	}
}

func compareContent(result *ComparisonResult, name string, before, after CheckResult) {
	// A changed hash alone is normal (nonces, timestamps). Only a change
	// combined with a large shrink suggests the page now renders an error.
	if before.ContentHash == "" || before.ContentHash == after.ContentHash {
		return
	}
	if before.ContentLength <= contentShrinkMinBytes {
		return
	}
	ratio := float64(after.ContentLength) / float64(before.ContentLength)
	if ratio < contentShrinkRatio {
		result.Issues = append(result.Issues, Issue{
			Check:    name,
			Type:     IssueContentShrunk,
			Before:   before.ContentLength,
			After:    after.ContentLength,
			Severity: SeverityCritical,
		})
	}
}

func compareErrorLog(result *ComparisonResult, name string, before, after CheckResult) {
	if after.ErrorCount > before.ErrorCount+phpErrorDelta {
		result.Issues = append(result.Issues, Issue{
			Check:    name,
			Type:     IssuePHPErrorsIncreased,
			Before:   before.ErrorCount,
			After:    after.ErrorCount,
			Severity: SeverityWarning,
		})
	}
}

// overallVerdict is the maximum severity across issues: critical dominates
// warning dominates ok, independent of issue ordering.
func overallVerdict(issues []Issue) Verdict {
	verdict := VerdictOK
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return VerdictCritical
		}
		verdict = VerdictWarning
	}
	return verdict
}
