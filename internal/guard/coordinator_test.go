package guard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcavanagh/sitesentry/internal/config"
	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// --- Test doubles ---

// fakeProber returns queued snapshots in order, repeating the last one.
type fakeProber struct {
	mu    sync.Mutex
	queue []*snapshot.Snapshot
}

func (f *fakeProber) Capture(ctx context.Context, trigger string) *snapshot.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}

	snap := *next
	snap.Trigger = trigger
	snap.Checks = map[string]snapshot.CheckResult{}
	for name, check := range next.Checks {
		snap.Checks[name] = check
	}
	return &snap
}

// panicProber simulates a probe that blows up mid-capture.
type panicProber struct{}

func (panicProber) Capture(context.Context, string) *snapshot.Snapshot {
	panic("probe exploded")
}

// recordingNotifier captures notified actions in order.
type recordingNotifier struct {
	mu      sync.Mutex
	actions []string
}

func (n *recordingNotifier) Notify(action string, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.actions...)
}

// --- Fixture ---

type guardFixture struct {
	coordinator *Coordinator
	site        *host.MemorySite
	snaps       *snapshot.Store
	log         *EventLog
	notifier    *recordingNotifier
}

func newGuardFixture(t *testing.T, prober Prober) *guardFixture {
	t.Helper()

	kv := newTestKV(t)
	site := host.NewMemorySite([]string{"wp-seo", config.SelfSlug}, "twentytwentyfour", "twentytwentyfour")
	snaps := snapshot.NewStore(kv)
	log := NewEventLog(kv)
	notifier := &recordingNotifier{}
	exec := NewExecutor(site, log, config.SelfSlug)

	cfg := config.GuardConfig{Enabled: true, AutoRollback: true}
	c := NewCoordinator(cfg, prober, snaps, log, exec, notifier)

	return &guardFixture{
		coordinator: c,
		site:        site,
		snaps:       snaps,
		log:         log,
		notifier:    notifier,
	}
}

func vitals(homepageStatus int, homepageMS int64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Checks: map[string]snapshot.CheckResult{
			snapshot.CheckHomepage: {
				Status:        snapshot.StatusOK,
				HTTPStatus:    homepageStatus,
				ResponseMS:    homepageMS,
				ContentLength: 40000,
				ContentHash:   "aaa",
			},
		},
	}
}

func logActions(log *EventLog) []string {
	entries := log.Recent(0)
	actions := make([]string, 0, len(entries))
	// Recent is newest first; reverse into chronological order.
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

// --- Lifecycle tests ---

func TestCoordinatorLifecycle(t *testing.T) {
	t.Run("update that breaks the site gets rolled back", func(t *testing.T) {
		prober := &fakeProber{queue: []*snapshot.Snapshot{
			vitals(200, 120), // pre-change baseline
			vitals(500, 120), // post-change
		}}
		fx := newGuardFixture(t, prober)

		chg := host.ChangeContext{
			Type:    host.ChangePlugin,
			Action:  "update",
			Items:   []string{"wp-seo"},
			Session: "session-1",
		}

		fx.coordinator.HandleBeforeChange(chg)
		assert.Equal(t, StatePreCaptured, fx.coordinator.State())

		baseline, err := fx.snaps.LatestPreChange()
		require.NoError(t, err)
		assert.Equal(t, "pre_update:plugin:wp-seo", baseline.Trigger)
		assert.Equal(t, "session-1", baseline.Session)

		fx.coordinator.HandleAfterChange(chg)
		assert.Equal(t, StateAwaiting, fx.coordinator.State())

		cmp, err := fx.coordinator.Verify(chg)
		require.NoError(t, err)
		assert.Equal(t, snapshot.VerdictCritical, cmp.Verdict)
		assert.Equal(t, snapshot.VerdictCritical, fx.coordinator.LastVerdict())

		// The broken plugin is gone, the connector survives.
		assert.Equal(t, []string{"wp-seo"}, fx.site.Deactivated)
		active, err := fx.site.IsPluginActive(config.SelfSlug)
		require.NoError(t, err)
		assert.True(t, active)
		assert.Equal(t, 1, fx.coordinator.RollbackCount())

		assert.Equal(t, []string{
			ActionPreUpdate,
			ActionUpdateCompleted,
			ActionPostUpdateVerify,
			ActionAutoRollback,
		}, logActions(fx.log))
		assert.Contains(t, fx.notifier.all(), ActionAutoRollback)
	})

	t.Run("healthy update verifies clean", func(t *testing.T) {
		prober := &fakeProber{queue: []*snapshot.Snapshot{
			vitals(200, 120),
			vitals(200, 110),
		}}
		fx := newGuardFixture(t, prober)

		chg := host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}, Session: "s"}
		fx.coordinator.HandleBeforeChange(chg)

		cmp, err := fx.coordinator.Verify(chg)
		require.NoError(t, err)
		assert.Equal(t, snapshot.VerdictOK, cmp.Verdict)
		assert.Equal(t, StateIdle, fx.coordinator.State())
		assert.Empty(t, fx.site.Deactivated)
		assert.Equal(t, 0, fx.coordinator.RollbackCount())
	})

	t.Run("warning verdict keeps awaiting recheck", func(t *testing.T) {
		prober := &fakeProber{queue: []*snapshot.Snapshot{
			vitals(200, 120),
			vitals(200, 300), // 2.5x slower
		}}
		fx := newGuardFixture(t, prober)

		chg := host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}, Session: "s"}
		fx.coordinator.HandleBeforeChange(chg)

		cmp, err := fx.coordinator.Verify(chg)
		require.NoError(t, err)
		assert.Equal(t, snapshot.VerdictWarning, cmp.Verdict)
		assert.Equal(t, StateAwaiting, fx.coordinator.State())
		assert.Empty(t, fx.site.Deactivated)
	})

	t.Run("verify without baseline is a recognized condition", func(t *testing.T) {
		prober := &fakeProber{queue: []*snapshot.Snapshot{vitals(200, 120)}}
		fx := newGuardFixture(t, prober)

		chg := host.ChangeContext{Type: host.ChangeManual, Session: "s"}
		_, err := fx.coordinator.Verify(chg)
		assert.ErrorIs(t, err, apperrors.ErrNoBaseline)
		assert.Equal(t, StateIdle, fx.coordinator.State())

		assert.Contains(t, logActions(fx.log), ActionVerifyNoBaseline)
	})

	t.Run("disabled guard does nothing", func(t *testing.T) {
		prober := &fakeProber{queue: []*snapshot.Snapshot{vitals(200, 120)}}
		fx := newGuardFixture(t, prober)
		fx.coordinator.cfg.Enabled = false

		fx.coordinator.HandleBeforeChange(host.ChangeContext{Type: host.ChangePlugin})
		assert.Equal(t, StateIdle, fx.coordinator.State())

		count, err := fx.snaps.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

// --- Rollback limit tests ---

func TestCoordinatorRollbackLimit(t *testing.T) {
	prober := &fakeProber{queue: []*snapshot.Snapshot{
		vitals(200, 120),
		vitals(500, 120), // every later capture stays broken
	}}
	fx := newGuardFixture(t, prober)

	chg := host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}, Session: "s"}
	fx.coordinator.HandleBeforeChange(chg)

	for i := 0; i < maxRollbackAttempts+1; i++ {
		_, err := fx.coordinator.Verify(chg)
		require.NoError(t, err)
	}

	assert.Equal(t, maxRollbackAttempts, fx.coordinator.RollbackCount())
	assert.Contains(t, logActions(fx.log), ActionRollbackLimit)
	assert.Contains(t, fx.notifier.all(), ActionRollbackLimit)
}

func TestCoordinatorAutoRollbackDisabled(t *testing.T) {
	prober := &fakeProber{queue: []*snapshot.Snapshot{
		vitals(200, 120),
		vitals(500, 120),
	}}
	fx := newGuardFixture(t, prober)
	fx.coordinator.cfg.AutoRollback = false

	chg := host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}, Session: "s"}
	fx.coordinator.HandleBeforeChange(chg)

	cmp, err := fx.coordinator.Verify(chg)
	require.NoError(t, err)
	assert.Equal(t, snapshot.VerdictCritical, cmp.Verdict)
	assert.Empty(t, fx.site.Deactivated)
	assert.Equal(t, 0, fx.coordinator.RollbackCount())
}

// --- Fault isolation tests ---

func TestCoordinatorPanicContained(t *testing.T) {
	fx := newGuardFixture(t, panicProber{})

	assert.NotPanics(t, func() {
		fx.coordinator.HandleBeforeChange(host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}})
	})

	actions := logActions(fx.log)
	require.NotEmpty(t, actions)
	assert.Equal(t, ActionGuardFailure, actions[len(actions)-1])
}

// --- Event wiring tests ---

func TestCoordinatorAttach(t *testing.T) {
	prober := &fakeProber{queue: []*snapshot.Snapshot{vitals(200, 120)}}
	fx := newGuardFixture(t, prober)

	events := host.NewEvents()
	fx.coordinator.Attach(events)

	events.EmitBeforeChange(host.ChangeContext{Type: host.ChangePlugin, Items: []string{"wp-seo"}})
	assert.Equal(t, StatePreCaptured, fx.coordinator.State())

	count, err := fx.snaps.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
