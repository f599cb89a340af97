package commands

import (
	"context"
	"fmt"

	"github.com/rcavanagh/sitesentry/internal/hub"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// Built-in command types.
const (
	CmdScan       = "scan"
	CmdReport     = "report"
	CmdSync       = "sync"
	CmdFlushCache = "flush_cache"
	CmdApplyFix   = "apply_fix"
)

// Named auto-fixes accepted by apply_fix.
const (
	FixSecurityHeaders   = "security_headers"
	FixDisableDebug      = "disable_debug"
	FixDisableFileEditor = "disable_file_editor"
	FixFilePermissions   = "fix_permissions"
)

const (
	settingsKey = "sitesentry_site_settings"
	cacheKey    = "sitesentry_transient_cache"
)

func (p *Processor) registerBuiltins() {
	p.Register(CmdScan, p.cmdScan)
	p.Register(CmdReport, p.cmdReport)
	p.Register(CmdSync, p.cmdSync)
	p.Register(CmdFlushCache, p.cmdFlushCache)
	p.Register(CmdApplyFix, p.cmdApplyFix)
}

// cmdScan captures a fresh vitals snapshot and returns a summary.
func (p *Processor) cmdScan(ctx context.Context, cmd hub.Command) (interface{}, error) {
	snap := p.deps.Prober.Capture(ctx, "manual")
	id, err := p.deps.Snaps.Save("", snap)
	if err != nil {
		return nil, err
	}

	statuses := map[string]string{}
	for name, check := range snap.Checks {
		statuses[name] = string(check.Status)
	}
	return map[string]interface{}{
		"snapshot_id":         id,
		"checks":              statuses,
		"capture_duration_ms": snap.CaptureDurationMS,
	}, nil
}

// cmdReport summarizes stored guard state for the hub.
func (p *Processor) cmdReport(ctx context.Context, cmd hub.Command) (interface{}, error) {
	count, err := p.deps.Snaps.Count()
	if err != nil {
		return nil, err
	}

	var last *snapshot.Snapshot
	if last, err = p.deps.Snaps.Latest(); err != nil {
		return nil, err
	}

	report := map[string]interface{}{
		"snapshots_count": count,
		"events_count":    p.deps.Log.Count(),
		"recent_events":   p.deps.Log.Recent(10),
	}
	if last != nil {
		report["last_snapshot_id"] = last.ID
		report["last_snapshot_at"] = last.Timestamp
	}
	return report, nil
}

// cmdSync pushes the current component state to the hub via the result
// payload so the hub's inventory catches up.
func (p *Processor) cmdSync(ctx context.Context, cmd hub.Command) (interface{}, error) {
	plugins, err := p.deps.Site.ActivePlugins()
	if err != nil {
		return nil, err
	}
	theme, err := p.deps.Site.ActiveTheme()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"active_plugins":   plugins,
		"active_theme":     theme,
		"platform_version": p.deps.Site.PlatformVersion(),
		"runtime_version":  p.deps.Site.RuntimeVersion(),
	}, nil
}

// cmdFlushCache drops the transient cache namespace in the kv store.
func (p *Processor) cmdFlushCache(ctx context.Context, cmd hub.Command) (interface{}, error) {
	if err := p.deps.KV.Delete(cacheKey); err != nil {
		return nil, err
	}
	return map[string]interface{}{"flushed": true}, nil
}

// siteSettings are the hardening toggles apply_fix manipulates.
type siteSettings struct {
	SecurityHeaders   bool   `json:"security_headers"`
	DebugMode         bool   `json:"debug_mode"`
	FileEditorEnabled bool   `json:"file_editor_enabled"`
	FilePermissions   string `json:"file_permissions"`
}

// cmdApplyFix applies a named hardening fix to the site settings.
func (p *Processor) cmdApplyFix(ctx context.Context, cmd hub.Command) (interface{}, error) {
	fix, _ := cmd.Args["fix"].(string)
	if fix == "" {
		return nil, fmt.Errorf("apply_fix requires a fix name")
	}

	var settings siteSettings
	_ = p.deps.KV.Get(settingsKey, &settings)

	switch fix {
	case FixSecurityHeaders:
		settings.SecurityHeaders = true
	case FixDisableDebug:
		settings.DebugMode = false
	case FixDisableFileEditor:
		settings.FileEditorEnabled = false
	case FixFilePermissions:
		settings.FilePermissions = "0644"
	default:
		return nil, fmt.Errorf("unknown fix %q", fix)
	}

	if err := p.deps.KV.Put(settingsKey, settings); err != nil {
		return nil, err
	}
	return map[string]interface{}{"applied": fix}, nil
}
