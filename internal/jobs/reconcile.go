package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/taskboard/internal/metrics"
	"github.com/forgo/taskboard/internal/service"
)

// Reconciler performs one reverse-index reconcile pass
type Reconciler interface {
	Run(ctx context.Context, dryRun bool) (*service.ReconcileReport, error)
}

// ReconcileJobConfig holds configuration for the reconcile job
type ReconcileJobConfig struct {
	Reconciler   Reconciler
	Interval     time.Duration // Default 10 minutes
	InitialDelay time.Duration // Wait before the first pass, default 5 seconds
	Timeout      time.Duration // Per-pass deadline, default 2 minutes
	Logger       *slog.Logger
}

// ReconcileJob periodically repairs drift between task assignments and
// users' pending task lists
type ReconcileJob struct {
	reconciler   Reconciler
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(cfg ReconcileJobConfig) *ReconcileJob {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ReconcileJob{
		reconciler:   cfg.Reconciler,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger.With("job", "reconcile"),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic loop. Calling Start on a running job is a no-op.
func (j *ReconcileJob) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run()
	j.logger.Info("reconcile job started", "interval", j.interval)
}

// Stop signals the loop to exit and waits for an in-progress pass
func (j *ReconcileJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("reconcile job stopped")
}

// IsRunning returns whether the job loop is active
func (j *ReconcileJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *ReconcileJob) run() {
	defer j.wg.Done()

	select {
	case <-time.After(j.initialDelay):
		j.tick()
	case <-j.stopCh:
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.tick()
		case <-j.stopCh:
			return
		}
	}
}

func (j *ReconcileJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("reconcile pass failed", "error", err)
	}
}

// RunOnce performs a single pass and records its metrics
func (j *ReconcileJob) RunOnce(ctx context.Context) (*service.ReconcileReport, error) {
	start := time.Now()
	report, err := j.reconciler.Run(ctx, false)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.ReconcileRunsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	case report.Clean():
		metrics.ReconcileRunsTotal.WithLabelValues(metrics.ResultClean).Inc()
	default:
		metrics.ReconcileRunsTotal.WithLabelValues(metrics.ResultRepaired).Inc()
		metrics.ReconcileRepairsTotal.WithLabelValues("rewrite").Add(float64(report.ListsRewritten))
		metrics.ReconcileRepairsTotal.WithLabelValues("unassign").Add(float64(report.TasksUnassigned))
	}
	return report, nil
}
