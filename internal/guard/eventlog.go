// Package guard implements the update guard: the lifecycle coordinator that
// snapshots site vitals around software changes, verifies them after the
// change settles, and rolls back on critical regressions.
package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

// Guard actions recorded in the event log and announced to the hub.
const (
	ActionPreUpdate        = "pre_update"
	ActionUpdateCompleted  = "update_completed"
	ActionPostUpdateVerify = "post_update_verify"
	ActionAutoRollback     = "auto_rollback"
	ActionPluginActivated  = "plugin_activated"
	ActionVerifyNoBaseline = "verify_no_baseline"
	ActionRollbackLimit    = "rollback_limit_reached"
	ActionGuardFailure     = "guard_failure"
)

const (
	eventLogKey = "sitesentry_guard_log"

	// MaxLogEntries bounds the audit trail; oldest entries drop silently.
	MaxLogEntries = 100
)

// LogEntry is one appended guard action.
type LogEntry struct {
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventLog is an append-only, size-bounded audit trail persisted in the kv
// store. Writers append-then-trim.
type EventLog struct {
	kv *kvstore.Store
	mu sync.Mutex
}

// NewEventLog creates an event log backed by kv.
func NewEventLog(kv *kvstore.Store) *EventLog {
	return &EventLog{kv: kv}
}

// Append records an action. Persistence failures are logged and swallowed:
// the audit trail must never block guard work.
func (l *EventLog) Append(action string, data map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		logging.Warnf("[guard] event log load failed: %v", err)
		entries = nil
	}

	entries = append(entries, LogEntry{
		Action:    action,
		Timestamp: time.Now(),
		Data:      data,
	})
	if len(entries) > MaxLogEntries {
		entries = entries[len(entries)-MaxLogEntries:]
	}

	if err := l.kv.Put(eventLogKey, entries); err != nil {
		logging.Warnf("[guard] event log save failed: %v", err)
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		logging.Warnf("[guard] event log load failed: %v", err)
		return nil
	}

	if n <= 0 || n > len(entries) {
		n = len(entries)
	}

	out := make([]LogEntry, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		out = append(out, entries[i])
	}
	return out
}

// Count returns the number of stored entries.
func (l *EventLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, _ := l.load()
	return len(entries)
}

func (l *EventLog) load() ([]LogEntry, error) {
	var entries []LogEntry
	err := l.kv.Get(eventLogKey, &entries)
	if err == kvstore.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}
	return entries, nil
}
