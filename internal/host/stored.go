package host

import (
	"fmt"
	"sync"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
)

const stateKey = "sitesentry_site_state"

// siteState is the persisted component state of the managed site.
type siteState struct {
	ActivePlugins   []string `json:"active_plugins"`
	ActiveTheme     string   `json:"active_theme"`
	InstalledThemes []string `json:"installed_themes"`
	PlatformVersion string   `json:"platform_version"`
	RuntimeVersion  string   `json:"runtime_version"`
}

// StoredSite is a Site backed by the kv store. The platform-side shim keeps
// the state current; the guard reads it and writes back only the narrow
// mutations rollback performs.
type StoredSite struct {
	kv *kvstore.Store
	mu sync.Mutex
}

// NewStoredSite creates a Site over the given kv store.
func NewStoredSite(kv *kvstore.Store) *StoredSite {
	return &StoredSite{kv: kv}
}

// SetState replaces the recorded site state. Called by the platform shim.
func (s *StoredSite) SetState(plugins []string, theme string, installedThemes []string, platformVersion, runtimeVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Put(stateKey, siteState{
		ActivePlugins:   plugins,
		ActiveTheme:     theme,
		InstalledThemes: installedThemes,
		PlatformVersion: platformVersion,
		RuntimeVersion:  runtimeVersion,
	})
}

func (s *StoredSite) load() (*siteState, error) {
	var st siteState
	err := s.kv.Get(stateKey, &st)
	if err == kvstore.ErrKeyNotFound {
		return &siteState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load site state: %w", err)
	}
	return &st, nil
}

// ActivePlugins returns the slugs of currently active plugins.
func (s *StoredSite) ActivePlugins() ([]string, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.ActivePlugins, nil
}

// ActiveTheme returns the slug of the active theme.
func (s *StoredSite) ActiveTheme() (string, error) {
	st, err := s.load()
	if err != nil {
		return "", err
	}
	return st.ActiveTheme, nil
}

// IsPluginActive reports whether the plugin is currently active.
func (s *StoredSite) IsPluginActive(slug string) (bool, error) {
	st, err := s.load()
	if err != nil {
		return false, err
	}
	for _, p := range st.ActivePlugins {
		if p == slug {
			return true, nil
		}
	}
	return false, nil
}

// DeactivatePlugin disables an active plugin.
func (s *StoredSite) DeactivatePlugin(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}

	kept := st.ActivePlugins[:0]
	found := false
	for _, p := range st.ActivePlugins {
		if p == slug {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return apperrors.ErrPluginNotActive
	}

	st.ActivePlugins = kept
	return s.kv.Put(stateKey, st)
}

// SwitchTheme activates the given installed theme.
func (s *StoredSite) SwitchTheme(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}

	installed := false
	for _, t := range st.InstalledThemes {
		if t == slug {
			installed = true
			break
		}
	}
	if !installed {
		return apperrors.ErrThemeNotFound
	}

	st.ActiveTheme = slug
	return s.kv.Put(stateKey, st)
}

// ThemeExists reports whether the theme is installed.
func (s *StoredSite) ThemeExists(slug string) (bool, error) {
	st, err := s.load()
	if err != nil {
		return false, err
	}
	for _, t := range st.InstalledThemes {
		if t == slug {
			return true, nil
		}
	}
	return false, nil
}

// PlatformVersion returns the recorded platform version.
func (s *StoredSite) PlatformVersion() string {
	st, err := s.load()
	if err != nil {
		return ""
	}
	return st.PlatformVersion
}

// RuntimeVersion returns the recorded runtime version.
func (s *StoredSite) RuntimeVersion() string {
	st, err := s.load()
	if err != nil {
		return ""
	}
	return st.RuntimeVersion
}
