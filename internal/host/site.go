// Package host is the integration boundary with the managed site's platform:
// which components are active, how to deactivate or switch them, and the
// lifecycle events the platform emits around software changes.
package host

// Site exposes the platform state the guard reads and the narrow mutations
// the rollback executor is allowed to perform.
type Site interface {
	// ActivePlugins returns the slugs of currently active plugins.
	ActivePlugins() ([]string, error)

	// ActiveTheme returns the slug of the active theme.
	ActiveTheme() (string, error)

	// IsPluginActive reports whether the plugin is currently active.
	IsPluginActive(slug string) (bool, error)

	// DeactivatePlugin disables an active plugin.
	DeactivatePlugin(slug string) error

	// SwitchTheme activates the given installed theme.
	SwitchTheme(slug string) error

	// ThemeExists reports whether the theme is installed.
	ThemeExists(slug string) (bool, error)

	// PlatformVersion returns the platform version string (informational).
	PlatformVersion() string

	// RuntimeVersion returns the runtime version string (informational).
	RuntimeVersion() string
}
