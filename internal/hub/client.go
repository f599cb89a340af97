// Package hub talks to the remote management hub: best-effort event
// notification out, operator command queue in. The hub is an observability
// sink, never a dependency the site's own update flow can be gated on.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcavanagh/sitesentry/internal/config"
	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
)

const notifyTimeout = 5 * time.Second

// Command is one operator-issued command pulled from the hub queue.
type Command struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Args      map[string]interface{} `json:"args,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// CommandResult is the structured outcome reported back for a command.
type CommandResult struct {
	CommandID     string      `json:"command_id"`
	Success       bool        `json:"success"`
	Result        interface{} `json:"result,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	ExecutionTime float64     `json:"execution_time"` // seconds
	CompletedAt   time.Time   `json:"completed_at"`
}

// Client is the hub HTTP client, keyed by the site's tenant identity.
type Client struct {
	baseURL string
	siteKey string
	domain  string
	http    *http.Client

	// limiter caps the outbound notification rate; bursts of guard events
	// during an update batch should not hammer the hub.
	limiter *rate.Limiter
}

// NewClient creates a hub client from config. Returns nil if no hub URL is
// configured; callers treat a nil client as notification disabled.
func NewClient(cfg config.HubConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	return &Client{
		baseURL: cfg.URL,
		siteKey: cfg.SiteKey,
		domain:  cfg.Domain,
		http:    &http.Client{Timeout: notifyTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 20),
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/connector/v1/sites/%s%s", c.baseURL, c.siteKey, path)
}

// PullCommands fetches up to limit pending commands from the hub queue.
func (c *Client) PullCommands(ctx context.Context, limit int) ([]Command, error) {
	if c == nil {
		return nil, apperrors.ErrHubNotConfigured
	}

	url := fmt.Sprintf("%s?limit=%d", c.url("/commands"), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull commands: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull commands: hub returned %d", resp.StatusCode)
	}

	var payload struct {
		Commands []Command `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode commands: %w", err)
	}
	return payload.Commands, nil
}

// GetCommand fetches a single command by id.
func (c *Client) GetCommand(ctx context.Context, id string) (*Command, error) {
	if c == nil {
		return nil, apperrors.ErrHubNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/commands/"+id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.ErrCommandNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get command: hub returned %d", resp.StatusCode)
	}

	var cmd Command
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return &cmd, nil
}

// ReportResult posts a command outcome back to the hub. Reported for every
// execution, success or failure.
func (c *Client) ReportResult(ctx context.Context, result CommandResult) error {
	if c == nil {
		return apperrors.ErrHubNotConfigured
	}

	body, err := json.Marshal(result)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.url("/commands/"+result.CommandID+"/result"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("report result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report result: hub returned %d", resp.StatusCode)
	}
	return nil
}
