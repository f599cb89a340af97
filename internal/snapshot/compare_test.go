// Package snapshot comparison tests
package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helper functions ---

func snapWithChecks(checks map[string]CheckResult) *Snapshot {
	return &Snapshot{Checks: checks}
}

func httpCheck(status int, responseMS, length int64, hash string) CheckResult {
	return CheckResult{
		Status:        StatusOK,
		HTTPStatus:    status,
		ResponseMS:    responseMS,
		ContentLength: length,
		ContentHash:   hash,
	}
}

func findIssue(t *testing.T, cmp *ComparisonResult, issueType string) Issue {
	t.Helper()
	for _, issue := range cmp.Issues {
		if issue.Type == issueType {
			return issue
		}
	}
	t.Fatalf("no issue of type %s in %+v", issueType, cmp.Issues)
	return Issue{}
}

// --- HTTP status tests ---

func TestCompareHTTPStatus(t *testing.T) {
	t.Run("200 to 500 is critical", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 5000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(500, 100, 5000, "aaa"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictCritical, cmp.Verdict)
		issue := findIssue(t, cmp, IssueHTTPStatusRegression)
		assert.Equal(t, CheckHomepage, issue.Check)
		assert.Equal(t, SeverityCritical, issue.Severity)
	})

	t.Run("already broken page is not a regression", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(404, 100, 200, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(500, 100, 200, "aaa"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
		assert.Empty(t, cmp.Issues)
	})

	t.Run("recovered page is not an issue", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(500, 100, 200, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 200, "aaa"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})
}

// --- Response time tests ---

func TestCompareResponseTime(t *testing.T) {
	base := func(postMS int64) (*Snapshot, *Snapshot) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 5000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, postMS, 5000, "aaa"),
		})
		return pre, post
	}

	t.Run("ratio above critical threshold", func(t *testing.T) {
		cmp := Compare(base(600)) // 6x
		assert.Equal(t, VerdictCritical, cmp.Verdict)
		issue := findIssue(t, cmp, IssueResponseTimeCritical)
		assert.Equal(t, SeverityCritical, issue.Severity)
	})

	t.Run("ratio above warning threshold", func(t *testing.T) {
		cmp := Compare(base(250)) // 2.5x
		assert.Equal(t, VerdictWarning, cmp.Verdict)
		findIssue(t, cmp, IssueResponseTimeWarning)
	})

	t.Run("ratio at warning threshold is tolerated", func(t *testing.T) {
		cmp := Compare(base(200)) // exactly 2x
		assert.Equal(t, VerdictOK, cmp.Verdict)
		assert.Empty(t, cmp.Issues)
	})

	t.Run("faster response recorded as improvement", func(t *testing.T) {
		cmp := Compare(base(70)) // 0.7x
		assert.Equal(t, VerdictOK, cmp.Verdict)
		require.Len(t, cmp.Improvements, 1)
		assert.Equal(t, "response_time", cmp.Improvements[0].Type)
	})

	t.Run("small change is neither", func(t *testing.T) {
		cmp := Compare(base(150)) // 1.5x
		assert.Empty(t, cmp.Issues)
		assert.Empty(t, cmp.Improvements)
	})

	t.Run("zero pre time is skipped", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 0, 5000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 900, 5000, "aaa"),
		})
		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})
}

// --- Content shrink tests ---

func TestCompareContent(t *testing.T) {
	t.Run("changed hash with large shrink is critical", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 10000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 4000, "bbb"), // 0.4x
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictCritical, cmp.Verdict)
		findIssue(t, cmp, IssueContentShrunk)
	})

	t.Run("moderate shrink is tolerated", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 10000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 6000, "bbb"), // 0.6x
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})

	t.Run("unchanged hash with shrink is tolerated", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 10000, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 1000, "aaa"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})

	t.Run("tiny pages are exempt", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 400, "aaa"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 50, "bbb"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})
}

// --- Error log tests ---

func TestCompareErrorLog(t *testing.T) {
	logCheck := func(count int) CheckResult {
		return CheckResult{Status: StatusOK, ErrorCount: count}
	}

	t.Run("large error increase warns", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{CheckPHPErrors: logCheck(2)})
		post := snapWithChecks(map[string]CheckResult{CheckPHPErrors: logCheck(10)})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictWarning, cmp.Verdict)
		issue := findIssue(t, cmp, IssuePHPErrorsIncreased)
		assert.Equal(t, SeverityWarning, issue.Severity)
	})

	t.Run("increase within tolerance is ok", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{CheckPHPErrors: logCheck(2)})
		post := snapWithChecks(map[string]CheckResult{CheckPHPErrors: logCheck(7)}) // +5 exactly

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})
}

// --- Overall behavior tests ---

func TestCompareOverall(t *testing.T) {
	t.Run("critical dominates warning", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage:  httpCheck(200, 100, 5000, "aaa"),
			CheckAdmin:     httpCheck(200, 100, 5000, "bbb"),
			CheckPHPErrors: {Status: StatusOK, ErrorCount: 0},
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage:  httpCheck(503, 100, 5000, "aaa"), // critical
			CheckAdmin:     httpCheck(200, 250, 5000, "bbb"), // warning
			CheckPHPErrors: {Status: StatusOK, ErrorCount: 20},
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictCritical, cmp.Verdict)
		assert.Len(t, cmp.Issues, 3)
		assert.Equal(t, 3, cmp.ChecksCompared)
	})

	t.Run("checks missing from post are skipped", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 5000, "aaa"),
			CheckAdmin:    httpCheck(200, 100, 5000, "bbb"),
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckHomepage: httpCheck(200, 100, 5000, "aaa"),
		})

		cmp := Compare(pre, post)
		assert.Equal(t, 1, cmp.ChecksCompared)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})

	t.Run("non-http checks carry no regression rules", func(t *testing.T) {
		pre := snapWithChecks(map[string]CheckResult{
			CheckDisk: {Status: StatusOK, FreeMB: 100000},
		})
		post := snapWithChecks(map[string]CheckResult{
			CheckDisk: {Status: StatusCritical, FreeMB: 10},
		})

		cmp := Compare(pre, post)
		assert.Equal(t, VerdictOK, cmp.Verdict)
	})

	t.Run("identical snapshots compare clean", func(t *testing.T) {
		checks := map[string]CheckResult{
			CheckHomepage:  httpCheck(200, 120, 45000, "aaa"),
			CheckRESTAPI:   httpCheck(200, 80, 2000, "ccc"),
			CheckPHPErrors: {Status: StatusOK, ErrorCount: 1},
		}
		cmp := Compare(snapWithChecks(checks), snapWithChecks(checks))
		assert.Equal(t, VerdictOK, cmp.Verdict)
		assert.Empty(t, cmp.Issues)
		assert.Equal(t, 3, cmp.ChecksCompared)
	})
}

// --- Baseline detection tests ---

func TestIsBaseline(t *testing.T) {
	assert.True(t, (&Snapshot{Trigger: "pre_update:plugin:wp-seo"}).IsBaseline())
	assert.True(t, (&Snapshot{Trigger: "pre_update:theme"}).IsBaseline())
	assert.False(t, (&Snapshot{Trigger: "post_update_verify"}).IsBaseline())
	assert.False(t, (&Snapshot{Trigger: "manual"}).IsBaseline())
	assert.False(t, (&Snapshot{Trigger: ""}).IsBaseline())
}

func TestTriggerFor(t *testing.T) {
	assert.Equal(t, "pre_update:plugin:wp-seo,akismet", TriggerFor("plugin", []string{"wp-seo", "akismet"}))
	assert.Equal(t, "pre_update:theme", TriggerFor("theme", nil))
}
