// Package errors provides sentinel errors for the sitesentry connector.
package errors

import "errors"

// Configuration errors
var (
	// ErrNotInitialized is returned when the connector has not been initialized.
	ErrNotInitialized = errors.New("sitesentry not initialized")

	// ErrHubNotConfigured is returned when an operation needs a hub URL and none is set.
	ErrHubNotConfigured = errors.New("hub not configured")
)

// Update guard errors
var (
	// ErrNoBaseline is returned when verification finds no pre-change snapshot
	// to compare against. This is a recognized, non-fatal condition.
	ErrNoBaseline = errors.New("no pre-change baseline snapshot")

	// ErrSnapshotNotFound is returned when a snapshot id is not in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Command queue errors
var (
	// ErrUnknownCommand is returned when no handler is registered for a command type.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrCommandNotFound is returned when a command id is not in the remote queue.
	ErrCommandNotFound = errors.New("command not found")

	// ErrBudgetExhausted is returned when the per-cycle execution budget is spent.
	ErrBudgetExhausted = errors.New("execution budget exhausted")
)

// Host platform errors
var (
	// ErrPluginNotActive is returned when deactivating a plugin that is not active.
	ErrPluginNotActive = errors.New("plugin not active")

	// ErrThemeNotFound is returned when switching to a theme that is not installed.
	ErrThemeNotFound = errors.New("theme not installed")
)
