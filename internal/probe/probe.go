// Package probe implements the vitals prober: a fixed battery of health
// checks (HTTP timing/status/content hash, error-log scan, storage ping,
// disk space, process memory) captured into a snapshot.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/logging"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

const (
	// httpTimeout bounds each individual HTTP probe.
	httpTimeout = 15 * time.Second

	// maxKeyPages caps how many configured key pages get probed.
	maxKeyPages = 5
)

// Targets describes what the prober measures.
type Targets struct {
	SiteURL      string
	AdminURL     string
	RESTURL      string
	KeyPages     []string // path slugs, probed as <SiteURL>/<slug>
	ErrorLogPath string
}

// Prober captures vitals snapshots of a target site. Each check is
// independently fault-isolated: a failed probe records status=error and the
// remaining checks still run.
type Prober struct {
	targets Targets
	site    host.Site
	kv      *kvstore.Store
	client  *http.Client
}

// New creates a prober for the given targets.
func New(targets Targets, site host.Site, kv *kvstore.Store) *Prober {
	if len(targets.KeyPages) > maxKeyPages {
		targets.KeyPages = targets.KeyPages[:maxKeyPages]
	}
	return &Prober{
		targets: targets,
		site:    site,
		kv:      kv,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// Capture runs the whole battery and returns a snapshot. It never fails as a
// whole; individual check failures are recorded in the check results.
func (p *Prober) Capture(ctx context.Context, trigger string) *snapshot.Snapshot {
	start := time.Now()

	snap := &snapshot.Snapshot{
		Timestamp: start,
		Trigger:   trigger,
		Checks:    map[string]snapshot.CheckResult{},
	}

	if p.site != nil {
		snap.PlatformVersion = p.site.PlatformVersion()
		snap.RuntimeVersion = p.site.RuntimeVersion()
		if plugins, err := p.site.ActivePlugins(); err == nil {
			snap.ActiveComponents.Plugins = plugins
		}
		if theme, err := p.site.ActiveTheme(); err == nil {
			snap.ActiveComponents.Theme = theme
		}
	}

	snap.Checks[snapshot.CheckHomepage] = p.checkHTTP(ctx, p.targets.SiteURL)
	snap.Checks[snapshot.CheckAdmin] = p.checkHTTP(ctx, p.targets.AdminURL)
	snap.Checks[snapshot.CheckRESTAPI] = p.checkHTTP(ctx, p.targets.RESTURL)
	for _, slug := range p.targets.KeyPages {
		snap.Checks["page_"+slug] = p.checkHTTP(ctx, joinURL(p.targets.SiteURL, slug))
	}

	snap.Checks[snapshot.CheckPHPErrors] = p.checkErrorLog()
	snap.Checks[snapshot.CheckDatabase] = p.checkDatabase()
	snap.Checks[snapshot.CheckDisk] = p.checkDisk()
	snap.Checks[snapshot.CheckMemory] = p.checkMemory()

	snap.CaptureDurationMS = time.Since(start).Milliseconds()
	logging.Debugf("[probe] captured %d checks in %dms (trigger=%s)",
		len(snap.Checks), snap.CaptureDurationMS, trigger)

	return snap
}

func joinURL(base, slug string) string {
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + slug
	}
	return base + "/" + slug
}
