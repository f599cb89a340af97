package host

import (
	"sync"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
)

// MemorySite is an in-memory Site used in tests and in detached runs where
// no platform shim is feeding state.
type MemorySite struct {
	mu              sync.Mutex
	Plugins         []string
	Theme           string
	InstalledThemes []string
	Platform        string
	Runtime         string

	// Deactivated records deactivation order for inspection.
	Deactivated []string
	// FailDeactivate, when set, makes DeactivatePlugin fail for that slug.
	FailDeactivate string
}

// NewMemorySite creates a MemorySite with the given active components.
func NewMemorySite(plugins []string, theme string, installedThemes ...string) *MemorySite {
	return &MemorySite{
		Plugins:         append([]string(nil), plugins...),
		Theme:           theme,
		InstalledThemes: installedThemes,
		Platform:        "6.5.2",
		Runtime:         "8.2.11",
	}
}

func (m *MemorySite) ActivePlugins() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Plugins...), nil
}

func (m *MemorySite) ActiveTheme() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Theme, nil
}

func (m *MemorySite) IsPluginActive(slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Plugins {
		if p == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemorySite) DeactivatePlugin(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slug == m.FailDeactivate {
		return apperrors.ErrPluginNotActive
	}

	kept := m.Plugins[:0]
	found := false
	for _, p := range m.Plugins {
		if p == slug {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return apperrors.ErrPluginNotActive
	}
	m.Plugins = kept
	m.Deactivated = append(m.Deactivated, slug)
	return nil
}

func (m *MemorySite) SwitchTheme(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.InstalledThemes {
		if t == slug {
			m.Theme = slug
			return nil
		}
	}
	return apperrors.ErrThemeNotFound
}

func (m *MemorySite) ThemeExists(slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.InstalledThemes {
		if t == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemorySite) PlatformVersion() string { return m.Platform }
func (m *MemorySite) RuntimeVersion() string  { return m.Runtime }
