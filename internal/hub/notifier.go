package hub

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rcavanagh/sitesentry/internal/logging"
)

// Event is the envelope posted to the hub for every guard action.
type Event struct {
	Action    string                 `json:"action"`
	Domain    string                 `json:"domain"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Notify announces a guard action to the hub. Fire-and-forget: delivery runs
// on its own goroutine with a short timeout, failures are logged at debug and
// swallowed, and there is no retry queue. A dropped notification is not
// recoverable except via the next periodic status pull.
func (c *Client) Notify(action string, data map[string]interface{}) {
	if c == nil {
		return
	}
	if !c.limiter.Allow() {
		logging.Debugf("[hub] notification %s dropped by rate limit", action)
		return
	}

	event := Event{
		Action:    action,
		Domain:    c.domain,
		Timestamp: time.Now(),
		Data:      data,
	}

	go func() {
		body, err := json.Marshal(event)
		if err != nil {
			logging.Debugf("[hub] encode %s event failed: %v", action, err)
			return
		}

		resp, err := c.http.Post(c.url("/events"), "application/json", bytes.NewReader(body))
		if err != nil {
			logging.Debugf("[hub] notify %s failed: %v", action, err)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			logging.Debugf("[hub] notify %s: hub returned %d", action, resp.StatusCode)
			return
		}
		logging.Debugf("[hub] notified %s", action)
	}()
}
