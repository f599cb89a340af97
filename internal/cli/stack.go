package cli

import (
	"time"

	"github.com/rcavanagh/sitesentry/internal/commands"
	"github.com/rcavanagh/sitesentry/internal/config"
	"github.com/rcavanagh/sitesentry/internal/guard"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/hub"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/probe"
	"github.com/rcavanagh/sitesentry/internal/scheduler"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// stack is the fully wired connector: every subsystem built from config.
type stack struct {
	kv          *kvstore.Store
	site        *host.StoredSite
	events      *host.Events
	prober      *probe.Prober
	snaps       *snapshot.Store
	log         *guard.EventLog
	coordinator *guard.Coordinator
	sched       *scheduler.Scheduler
	hubClient   *hub.Client
	processor   *commands.Processor
}

// buildStack wires the connector subsystems from config.
func buildStack(cfg *config.Config) (*stack, error) {
	kv, err := kvstore.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}

	site := host.NewStoredSite(kv)
	prober := probe.New(probe.Targets{
		SiteURL:      cfg.SiteURL,
		AdminURL:     cfg.AdminURL(),
		RESTURL:      cfg.RESTURL(),
		KeyPages:     cfg.KeyPages,
		ErrorLogPath: cfg.ErrorLogPath,
	}, site, kv)

	snaps := snapshot.NewStore(kv)
	eventLog := guard.NewEventLog(kv)
	hubClient := hub.NewClient(cfg.Hub)

	executor := guard.NewExecutor(site, eventLog, config.SelfSlug)

	var notifier guard.Notifier = guard.NopNotifier{}
	if hubClient != nil {
		notifier = hubClient
	}

	coordinator := guard.NewCoordinator(cfg.Guard, prober, snaps, eventLog, executor, notifier)
	sched := scheduler.New(coordinator.HandleTask)
	coordinator.SetScheduler(sched)

	events := host.NewEvents()
	coordinator.Attach(events)

	processor := commands.New(hubClient, commands.Deps{
		Prober: prober,
		Snaps:  snaps,
		Log:    eventLog,
		Site:   site,
		KV:     kv,
	},
		time.Duration(cfg.Commands.PollIntervalSeconds())*time.Second,
		time.Duration(cfg.Commands.ExecuteBudgetSeconds())*time.Second)

	return &stack{
		kv:          kv,
		site:        site,
		events:      events,
		prober:      prober,
		snaps:       snaps,
		log:         eventLog,
		coordinator: coordinator,
		sched:       sched,
		hubClient:   hubClient,
		processor:   processor,
	}, nil
}

func (s *stack) close() {
	_ = s.kv.Close()
}
