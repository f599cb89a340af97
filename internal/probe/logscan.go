package probe

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

const (
	// logTailBytes is how much of the end of the error log gets scanned.
	logTailBytes = 10 * 1024

	// maxRecentErrors caps how many matches are carried in the snapshot.
	maxRecentErrors = 5

	// maxErrorLineLen truncates carried error lines.
	maxErrorLineLen = 200
)

var errorLinePattern = regexp.MustCompile(`(?i)PHP (Fatal error|Warning|Notice|Parse error|Deprecated)|Uncaught|Stack trace`)

// logTimestampPattern matches the bracketed timestamp PHP error logs lead with,
// e.g. [20-Aug-2026 14:03:11 UTC].
var logTimestampPattern = regexp.MustCompile(`^\[(\d{2}-[A-Za-z]{3}-\d{4} \d{2}:\d{2}:\d{2})`)

// checkErrorLog reads the tail of the configured error log and counts
// matching lines. No configured log is a healthy result, not an error.
func (p *Prober) checkErrorLog() snapshot.CheckResult {
	if p.targets.ErrorLogPath == "" {
		return snapshot.CheckResult{Status: snapshot.StatusOK, ErrorCount: 0}
	}

	f, err := os.Open(p.targets.ErrorLogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot.CheckResult{Status: snapshot.StatusOK, ErrorCount: 0}
		}
		return snapshot.CheckResult{Status: snapshot.StatusError, Error: err.Error()}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return snapshot.CheckResult{Status: snapshot.StatusError, Error: err.Error()}
	}

	offset := int64(0)
	if info.Size() > logTailBytes {
		offset = info.Size() - logTailBytes
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return snapshot.CheckResult{Status: snapshot.StatusError, Error: err.Error()}
	}

	lines := strings.Split(string(buf), "\n")
	if offset > 0 && len(lines) > 0 {
		// First line is likely cut mid-way by the tail offset.
		lines = lines[1:]
	}

	result := snapshot.CheckResult{Status: snapshot.StatusOK}
	hourAgo := time.Now().Add(-time.Hour)

	for _, line := range lines {
		if !errorLinePattern.MatchString(line) {
			continue
		}
		result.ErrorCount++

		if !withinLastHour(line, hourAgo) {
			continue
		}
		trimmed := line
		if len(trimmed) > maxErrorLineLen {
			trimmed = trimmed[:maxErrorLineLen]
		}
		result.RecentErrors = append(result.RecentErrors, trimmed)
		if len(result.RecentErrors) > maxRecentErrors {
			result.RecentErrors = result.RecentErrors[1:]
		}
	}

	if result.ErrorCount > 0 {
		result.Status = snapshot.StatusWarning
	}
	return result
}

// withinLastHour parses the log line's leading timestamp; lines without a
// parseable timestamp are treated as recent so they are not silently dropped.
func withinLastHour(line string, cutoff time.Time) bool {
	m := logTimestampPattern.FindStringSubmatch(line)
	if m == nil {
		return true
	}
	ts, err := time.Parse("02-Jan-2006 15:04:05", m[1])
	if err != nil {
		return true
	}
	return ts.After(cutoff)
}
