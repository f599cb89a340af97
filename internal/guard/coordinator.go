package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcavanagh/sitesentry/internal/config"
	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/logging"
	"github.com/rcavanagh/sitesentry/internal/scheduler"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// Prober captures vitals snapshots. Satisfied by *probe.Prober; tests inject
// doubles returning canned snapshots.
type Prober interface {
	Capture(ctx context.Context, trigger string) *snapshot.Snapshot
}

// State tracks where the coordinator is in an update cycle.
type State string

const (
	StateIdle         State = "idle"
	StatePreCaptured  State = "pre_captured"
	StateAwaiting     State = "awaiting_verification"
	StateVerified     State = "verified"
)

// maxRollbackAttempts bounds the rollback retry loop per change session: the
// initial rollback plus one re-attempt when its own verification is still
// critical. After that the guard only logs.
const maxRollbackAttempts = 2

// Notifier announces guard actions to the hub. Best-effort and non-blocking.
type Notifier interface {
	Notify(action string, data map[string]interface{})
}

// NopNotifier discards notifications. Used when no hub is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(string, map[string]interface{}) {}

// Coordinator orchestrates snapshot capture, delayed verification, comparison
// and rollback around the host's software-change lifecycle. It never lets an
// error escape into the host's own update flow.
type Coordinator struct {
	cfg      config.GuardConfig
	prober   Prober
	snaps    *snapshot.Store
	log      *EventLog
	executor *Executor
	notifier Notifier
	sched    *scheduler.Scheduler

	mu          sync.Mutex
	state       State
	lastVerdict snapshot.Verdict
	rollbacks   map[string]int // rollback attempts per change session
}

// NewCoordinator wires a coordinator. Call Attach to subscribe it to host
// lifecycle events and hand its HandleTask to the scheduler.
func NewCoordinator(cfg config.GuardConfig, prober Prober, snaps *snapshot.Store, log *EventLog, executor *Executor, notifier Notifier) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Coordinator{
		cfg:       cfg,
		prober:    prober,
		snaps:     snaps,
		log:       log,
		executor:  executor,
		notifier:  notifier,
		state:     StateIdle,
		rollbacks: map[string]int{},
	}
}

// SetScheduler sets the delayed-task scheduler used for verification cycles.
func (c *Coordinator) SetScheduler(s *scheduler.Scheduler) {
	c.sched = s
}

// Attach subscribes the coordinator to the host lifecycle events.
func (c *Coordinator) Attach(events *host.Events) {
	events.OnBeforeChange(c.HandleBeforeChange)
	events.OnAfterChange(c.HandleAfterChange)
	events.OnComponentActivated(c.HandleComponentActivated)
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastVerdict returns the verdict of the most recent verification.
func (c *Coordinator) LastVerdict() snapshot.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastVerdict
}

// RollbackCount returns how many rollbacks have been performed since start.
func (c *Coordinator) RollbackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.rollbacks {
		total += n
	}
	return total
}

// HandleBeforeChange captures and stores a pre-change baseline snapshot.
// Runs synchronously in the host's before hook so the baseline is durably
// stored before the change proceeds.
func (c *Coordinator) HandleBeforeChange(chg host.ChangeContext) {
	c.safely("before_change", func() error {
		if !c.cfg.Enabled {
			return nil
		}
		if chg.Session == "" {
			chg.Session = uuid.NewString()
		}

		trigger := snapshot.TriggerFor(string(chg.Type), chg.Items)
		snap := c.prober.Capture(context.Background(), trigger)
		snap.Session = chg.Session

		id, err := c.snaps.Save(trigger, snap)
		if err != nil {
			return fmt.Errorf("save pre-change snapshot: %w", err)
		}

		data := map[string]interface{}{
			"snapshot_id": id,
			"context":     chg,
		}
		c.log.Append(ActionPreUpdate, data)
		c.notifier.Notify(ActionPreUpdate, data)

		c.mu.Lock()
		c.state = StatePreCaptured
		c.mu.Unlock()
		return nil
	})
}

// HandleAfterChange schedules delayed verification once the host reports the
// change complete. Verification is deferred so caches and opcode caches can
// settle before the post snapshot.
func (c *Coordinator) HandleAfterChange(chg host.ChangeContext) {
	c.safely("after_change", func() error {
		if !c.cfg.Enabled {
			return nil
		}

		delay := time.Duration(c.cfg.VerifyDelaySeconds()) * time.Second
		if chg.Type == host.ChangeAutoUpdate {
			delay = time.Duration(c.cfg.AutoUpdateVerifyDelaySeconds()) * time.Second
		}
		c.scheduleVerification(delay, chg)

		data := map[string]interface{}{
			"context":      chg,
			"verify_after": delay.String(),
		}
		c.log.Append(ActionUpdateCompleted, data)
		c.notifier.Notify(ActionUpdateCompleted, data)

		c.mu.Lock()
		c.state = StateAwaiting
		c.mu.Unlock()
		return nil
	})
}

// HandleComponentActivated schedules a fast, lightweight verification after a
// component is newly activated.
func (c *Coordinator) HandleComponentActivated(chg host.ChangeContext) {
	c.safely("component_activated", func() error {
		if !c.cfg.Enabled {
			return nil
		}

		delay := time.Duration(c.cfg.ActivationVerifyDelaySeconds()) * time.Second
		c.scheduleVerification(delay, chg)

		data := map[string]interface{}{"context": chg}
		c.log.Append(ActionPluginActivated, data)
		c.notifier.Notify(ActionPluginActivated, data)
		return nil
	})
}

// HandleTask is the scheduler handler: it runs due verification cycles.
func (c *Coordinator) HandleTask(task scheduler.Task) {
	if task.Kind != scheduler.KindVerification {
		return
	}
	c.safely("verification", func() error {
		_, err := c.Verify(task.Context)
		if errors.Is(err, apperrors.ErrNoBaseline) {
			// Recognized condition, already logged.
			return nil
		}
		return err
	})
}

// Verify captures a post-change snapshot, compares it with the latest
// pre-change baseline and acts on the verdict. Returns ErrNoBaseline when
// there is nothing to compare against.
func (c *Coordinator) Verify(chg host.ChangeContext) (*snapshot.ComparisonResult, error) {
	post := c.prober.Capture(context.Background(), "post_update_verify")
	post.Session = chg.Session
	if _, err := c.snaps.Save("", post); err != nil {
		return nil, fmt.Errorf("save post snapshot: %w", err)
	}

	pre, err := c.snaps.LatestPreChangeForSession(chg.Session)
	if errors.Is(err, apperrors.ErrNoBaseline) {
		c.log.Append(ActionVerifyNoBaseline, map[string]interface{}{"context": chg})
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	cmp := snapshot.Compare(pre, post)

	data := map[string]interface{}{
		"context":    chg,
		"comparison": cmp,
	}
	c.log.Append(ActionPostUpdateVerify, data)
	c.notifier.Notify(ActionPostUpdateVerify, data)

	c.mu.Lock()
	c.state = StateVerified
	c.lastVerdict = cmp.Verdict
	c.mu.Unlock()

	switch cmp.Verdict {
	case snapshot.VerdictCritical:
		c.handleCritical(chg, cmp, pre)
	case snapshot.VerdictWarning:
		// Give transient issues a chance to self-resolve before escalating.
		delay := time.Duration(c.cfg.WarningRecheckDelaySeconds()) * time.Second
		c.scheduleVerification(delay, chg)
		c.mu.Lock()
		c.state = StateAwaiting
		c.mu.Unlock()
	default:
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}

	return cmp, nil
}

func (c *Coordinator) handleCritical(chg host.ChangeContext, cmp *snapshot.ComparisonResult, pre *snapshot.Snapshot) {
	if !c.cfg.AutoRollback || c.executor == nil {
		logging.Warnf("[guard] critical verdict for %v, auto-rollback disabled", chg.Items)
		return
	}

	c.mu.Lock()
	attempts := c.rollbacks[chg.Session]
	if attempts >= maxRollbackAttempts {
		c.mu.Unlock()
		data := map[string]interface{}{"context": chg, "attempts": attempts}
		c.log.Append(ActionRollbackLimit, data)
		c.notifier.Notify(ActionRollbackLimit, data)
		return
	}
	c.rollbacks[chg.Session] = attempts + 1
	c.mu.Unlock()

	reverted := c.executor.Rollback(chg, cmp, pre)
	c.notifier.Notify(ActionAutoRollback, map[string]interface{}{
		"context":  chg,
		"reverted": reverted,
	})

	// Confirm the rollback itself didn't introduce new problems.
	delay := time.Duration(c.cfg.RollbackVerifyDelaySeconds()) * time.Second
	c.scheduleVerification(delay, host.ChangeContext{
		Type:    host.ChangeRollbackVerify,
		Action:  "verify",
		Items:   chg.Items,
		Session: chg.Session,
	})
}

func (c *Coordinator) scheduleVerification(delay time.Duration, chg host.ChangeContext) {
	if c.sched == nil {
		logging.Warnf("[guard] no scheduler attached, skipping deferred verification")
		return
	}
	c.sched.Schedule(delay, scheduler.KindVerification, chg)
}

// safely runs fn, converting any panic or error into a logged guard_failure.
// Nothing propagates back into the host's update pipeline.
func (c *Coordinator) safely(stage string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("[guard] panic in %s: %v", stage, r)
			c.log.Append(ActionGuardFailure, map[string]interface{}{
				"stage": stage,
				"panic": fmt.Sprint(r),
			})
		}
	}()

	if err := fn(); err != nil {
		logging.Errorf("[guard] %s failed: %v", stage, err)
		c.log.Append(ActionGuardFailure, map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		})
	}
}
