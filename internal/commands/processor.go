// Package commands implements the remote command-queue processor: operator
// commands pulled from the hub, executed under per-command fault isolation,
// with structured results reported back whatever the outcome.
package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcavanagh/sitesentry/internal/guard"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/hub"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/logging"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// Prober captures vitals snapshots on demand for the scan command.
type Prober interface {
	Capture(ctx context.Context, trigger string) *snapshot.Snapshot
}

const (
	resultCacheKey   = "sitesentry_command_results"
	maxCachedResults = 50

	// pullBatchSize caps how many commands one poll cycle requests.
	pullBatchSize = 10
)

// Handler executes one command type. Returning an error produces a
// structured failure result; handlers must not panic, but a panic is still
// contained per command.
type Handler func(ctx context.Context, cmd hub.Command) (interface{}, error)

// Deps are the connector subsystems command handlers operate on.
type Deps struct {
	Prober Prober
	Snaps  *snapshot.Store
	Log    *guard.EventLog
	Site   host.Site
	KV     *kvstore.Store
}

// Processor polls the hub command queue and executes commands.
type Processor struct {
	client *hub.Client
	deps   Deps

	pollInterval time.Duration
	budget       time.Duration

	mu       sync.Mutex
	handlers map[string]Handler
	running  bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a processor with the built-in handlers registered.
func New(client *hub.Client, deps Deps, pollInterval, budget time.Duration) *Processor {
	p := &Processor{
		client:       client,
		deps:         deps,
		pollInterval: pollInterval,
		budget:       budget,
		handlers:     map[string]Handler{},
		stop:         make(chan struct{}),
	}
	p.registerBuiltins()
	return p
}

// Register adds (or replaces) a handler for a command type. This is the
// extension point consulted before a command is declared unsupported.
func (p *Processor) Register(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

func (p *Processor) handler(name string) (Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handlers[name]
	return h, ok
}

// Execute runs one command inside an isolated recover boundary, records the
// outcome, and reports it to the hub. One bad command must not block the rest
// of the queue, so Execute itself never fails.
func (p *Processor) Execute(ctx context.Context, cmd hub.Command) hub.CommandResult {
	start := time.Now()
	result := hub.CommandResult{CommandID: cmd.ID}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Success = false
				result.ErrorMessage = fmt.Sprintf("panic: %v", r)
			}
		}()

		h, ok := p.handler(cmd.Type)
		if !ok {
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("unknown command type %q", cmd.Type)
			return
		}

		out, err := h(ctx, cmd)
		if err != nil {
			result.Success = false
			result.ErrorMessage = err.Error()
			return
		}
		result.Success = true
		result.Result = out
	}()

	result.ExecutionTime = time.Since(start).Seconds()
	result.CompletedAt = time.Now()

	p.cacheResult(result)
	if p.client != nil {
		if err := p.client.ReportResult(ctx, result); err != nil {
			logging.Warnf("[commands] report result for %s failed: %v", cmd.ID, err)
		}
	}

	if result.Success {
		logging.Infof("[commands] %s (%s) ok in %.2fs", cmd.Type, cmd.ID, result.ExecutionTime)
	} else {
		logging.Warnf("[commands] %s (%s) failed: %s", cmd.Type, cmd.ID, result.ErrorMessage)
	}
	return result
}

// RunCycle pulls pending commands and executes them until the queue or the
// wall-clock budget is exhausted. Returns how many commands were processed.
func (p *Processor) RunCycle(ctx context.Context) (int, error) {
	cmds, err := p.client.PullCommands(ctx, pullBatchSize)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(p.budget)
	processed := 0
	for _, cmd := range cmds {
		if time.Now().After(deadline) {
			logging.Warnf("[commands] budget exhausted after %d of %d commands", processed, len(cmds))
			break
		}
		p.Execute(ctx, cmd)
		processed++
	}
	return processed, nil
}

// Start begins the poll loop.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
}

// Stop stops the poll loop.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.budget+10*time.Second)
			if _, err := p.RunCycle(ctx); err != nil {
				logging.Debugf("[commands] poll cycle failed: %v", err)
			}
			cancel()
		}
	}
}

// RecentResults returns cached command results, newest first.
func (p *Processor) RecentResults(n int) []hub.CommandResult {
	var cached []hub.CommandResult
	if err := p.deps.KV.Get(resultCacheKey, &cached); err != nil {
		return nil
	}
	if n <= 0 || n > len(cached) {
		n = len(cached)
	}
	out := make([]hub.CommandResult, 0, n)
	for i := len(cached) - 1; i >= len(cached)-n; i-- {
		out = append(out, cached[i])
	}
	return out
}

func (p *Processor) cacheResult(result hub.CommandResult) {
	var cached []hub.CommandResult
	if err := p.deps.KV.Get(resultCacheKey, &cached); err != nil && err != kvstore.ErrKeyNotFound {
		logging.Warnf("[commands] result cache load failed: %v", err)
		return
	}
	cached = append(cached, result)
	if len(cached) > maxCachedResults {
		cached = cached[len(cached)-maxCachedResults:]
	}
	if err := p.deps.KV.Put(resultCacheKey, cached); err != nil {
		logging.Warnf("[commands] result cache save failed: %v", err)
	}
}
