// Package snapshot defines site vitals snapshots, their bounded store, and
// the comparison logic that turns two snapshots into a verdict.
package snapshot

import (
	"time"
)

// Status classifies the outcome of a single health check.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusError    Status = "error"   // probe itself failed
	StatusUnknown  Status = "unknown" // platform could not report
)

// Well-known check names produced by the prober.
const (
	CheckHomepage  = "homepage"
	CheckAdmin     = "admin"
	CheckRESTAPI   = "rest_api"
	CheckPHPErrors = "php_errors"
	CheckDatabase  = "database"
	CheckDisk      = "disk"
	CheckMemory    = "memory"
)

// CheckResult is the outcome of one probe. Only the fields relevant to the
// check kind are populated.
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// HTTP-style checks
	HTTPStatus    int    `json:"http_status,omitempty"`
	ResponseMS    int64  `json:"response_ms,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`
	ContentHash   string `json:"content_hash,omitempty"`

	// Error-log check
	ErrorCount   int      `json:"error_count,omitempty"`
	RecentErrors []string `json:"recent_errors,omitempty"`

	// Storage check
	TableCount int     `json:"table_count,omitempty"`
	SizeMB     float64 `json:"size_mb,omitempty"`

	// Disk check
	FreeMB  int64   `json:"free_mb,omitempty"`
	TotalMB int64   `json:"total_mb,omitempty"`
	UsedPct float64 `json:"used_pct,omitempty"`

	// Memory check
	MemCurrent uint64 `json:"current,omitempty"`
	MemPeak    uint64 `json:"peak,omitempty"`
	MemLimit   string `json:"limit,omitempty"`
}

// ActiveComponents records the enabled software state at capture time, kept
// for rollback reference.
type ActiveComponents struct {
	Plugins []string `json:"plugins"`
	Theme   string   `json:"theme"`
}

// Snapshot is an immutable point-in-time health measurement of a site.
// Once stored it is never mutated.
type Snapshot struct {
	ID                string                 `json:"id"`
	Timestamp         time.Time              `json:"timestamp"`
	Trigger           string                 `json:"trigger"`
	Session           string                 `json:"session,omitempty"`
	PlatformVersion   string                 `json:"platform_version,omitempty"`
	RuntimeVersion    string                 `json:"runtime_version,omitempty"`
	ActiveComponents  ActiveComponents       `json:"active_components"`
	Checks            map[string]CheckResult `json:"checks"`
	CaptureDurationMS int64                  `json:"capture_duration_ms"`
}

// IsBaseline reports whether this snapshot can serve as a pre-change baseline.
func (s *Snapshot) IsBaseline() bool {
	return len(s.Trigger) >= 4 && s.Trigger[:4] == "pre_"
}

// Severity classifies how bad a detected issue is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue types reported by the comparator.
const (
	IssueHTTPStatusRegression = "http_status_regression"
	IssueResponseTimeCritical = "response_time_critical"
	IssueResponseTimeWarning  = "response_time_warning"
	IssueContentShrunk        = "content_shrunk"
	IssuePHPErrorsIncreased   = "php_errors_increased"
)

// Issue is one detected regression between two snapshots.
type Issue struct {
	Check    string      `json:"check"`
	Type     string      `json:"type"`
	Before   interface{} `json:"before"`
	After    interface{} `json:"after"`
	Severity Severity    `json:"severity"`
}

// Improvement records a check that got measurably better. Informational only.
type Improvement struct {
	Check  string      `json:"check"`
	Type   string      `json:"type"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// Verdict is the overall severity of a comparison.
type Verdict string

const (
	VerdictOK       Verdict = "ok"
	VerdictWarning  Verdict = "warning"
	VerdictCritical Verdict = "critical"
)

// ComparisonResult is the output of diffing a pre- and post-change snapshot.
type ComparisonResult struct {
	Verdict        Verdict       `json:"verdict"`
	Issues         []Issue       `json:"issues"`
	Improvements   []Improvement `json:"improvements,omitempty"`
	ChecksCompared int           `json:"checks_compared"`
	PreID          string        `json:"pre_id,omitempty"`
	PostID         string        `json:"post_id,omitempty"`
}
