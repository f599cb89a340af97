package guard

import (
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/logging"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// Executor performs the narrowest possible reversal of a change that came
// back with a critical verdict. Best-effort: it returns only what it actually
// reverted, and records intent and outcome separately.
type Executor struct {
	site host.Site
	log  *EventLog

	// selfSlug is the connector's own plugin. Deactivating it would strand
	// the site with no recovery path, so it is never rolled back.
	selfSlug string
}

// NewExecutor creates a rollback executor.
func NewExecutor(site host.Site, log *EventLog, selfSlug string) *Executor {
	return &Executor{site: site, log: log, selfSlug: selfSlug}
}

// Rollback reverses the change described by chg. baseline is the pre-change
// snapshot used for theme restoration; it may be nil. Never returns an error:
// partial failures are visible through the returned list and the event log.
func (e *Executor) Rollback(chg host.ChangeContext, cmp *snapshot.ComparisonResult, baseline *snapshot.Snapshot) []string {
	var reverted []string
	var failures []string

	switch chg.Type {
	case host.ChangePlugin, host.ChangePluginActivation, host.ChangeAutoUpdate, host.ChangeRollbackVerify:
		reverted, failures = e.rollbackPlugins(chg.Items)
	case host.ChangeTheme:
		reverted, failures = e.rollbackTheme(baseline)
	default:
		// Unknown context: nothing safe to revert.
	}

	verdict := ""
	var issues interface{}
	if cmp != nil {
		verdict = string(cmp.Verdict)
		issues = cmp.Issues
	}
	e.log.Append(ActionAutoRollback, map[string]interface{}{
		"context":  chg,
		"verdict":  verdict,
		"issues":   issues,
		"reverted": reverted,
		"failed":   failures,
	})

	return reverted
}

func (e *Executor) rollbackPlugins(items []string) (reverted, failures []string) {
	for _, slug := range items {
		if slug == e.selfSlug {
			logging.Warnf("[guard] refusing to deactivate own connector plugin %s", slug)
			continue
		}

		active, err := e.site.IsPluginActive(slug)
		if err != nil || !active {
			continue
		}

		if err := e.site.DeactivatePlugin(slug); err != nil {
			logging.Errorf("[guard] rollback: deactivate %s failed: %v", slug, err)
			failures = append(failures, slug)
			continue
		}
		logging.Infof("[guard] rollback: deactivated plugin %s", slug)
		reverted = append(reverted, slug)
	}
	return reverted, failures
}

func (e *Executor) rollbackTheme(baseline *snapshot.Snapshot) (reverted, failures []string) {
	if baseline == nil || baseline.ActiveComponents.Theme == "" {
		return nil, nil
	}
	previous := baseline.ActiveComponents.Theme

	current, err := e.site.ActiveTheme()
	if err != nil || current == previous {
		return nil, nil
	}

	exists, err := e.site.ThemeExists(previous)
	if err != nil || !exists {
		logging.Warnf("[guard] rollback: previous theme %s no longer installed", previous)
		return nil, []string{previous}
	}

	if err := e.site.SwitchTheme(previous); err != nil {
		logging.Errorf("[guard] rollback: switch theme to %s failed: %v", previous, err)
		return nil, []string{previous}
	}
	logging.Infof("[guard] rollback: restored theme %s", previous)
	return []string{previous}, nil
}
