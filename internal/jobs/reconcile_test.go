package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/forgo/taskboard/internal/metrics"
	"github.com/forgo/taskboard/internal/service"
)

type mockReconciler struct {
	calls  int32
	report *service.ReconcileReport
	err    error
}

func (m *mockReconciler) Run(ctx context.Context, dryRun bool) (*service.ReconcileReport, error) {
	atomic.AddInt32(&m.calls, 1)
	if dryRun {
		return nil, errors.New("job must not dry-run")
	}
	return m.report, m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// RunOnce Tests
// ============================================================================

func TestReconcileJob_RunOnce_RecordsResult(t *testing.T) {
	tests := []struct {
		name   string
		report *service.ReconcileReport
		err    error
		result string
	}{
		{"clean", &service.ReconcileReport{}, nil, metrics.ResultClean},
		{"repaired", &service.ReconcileReport{ListsRewritten: 2, TasksUnassigned: 1}, nil, metrics.ResultRepaired},
		{"error", nil, errors.New("db down"), metrics.ResultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewReconcileJob(ReconcileJobConfig{
				Reconciler: &mockReconciler{report: tt.report, err: tt.err},
				Logger:     quietLogger(),
			})

			counter := metrics.ReconcileRunsTotal.WithLabelValues(tt.result)
			before := testutil.ToFloat64(counter)

			report, err := job.RunOnce(context.Background())
			if (err != nil) != (tt.err != nil) {
				t.Fatalf("unexpected error: %v", err)
			}
			if err == nil && report != tt.report {
				t.Error("expected the service report to be returned")
			}
			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("expected %s runs %v, got %v", tt.result, before+1, got)
			}
		})
	}
}

func TestReconcileJob_RunOnce_CountsRepairs(t *testing.T) {
	job := NewReconcileJob(ReconcileJobConfig{
		Reconciler: &mockReconciler{report: &service.ReconcileReport{ListsRewritten: 3, TasksUnassigned: 2}},
		Logger:     quietLogger(),
	})

	rewrite := metrics.ReconcileRepairsTotal.WithLabelValues("rewrite")
	unassign := metrics.ReconcileRepairsTotal.WithLabelValues("unassign")
	beforeRewrite, beforeUnassign := testutil.ToFloat64(rewrite), testutil.ToFloat64(unassign)

	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := testutil.ToFloat64(rewrite) - beforeRewrite; got != 3 {
		t.Errorf("expected 3 rewrites recorded, got %v", got)
	}
	if got := testutil.ToFloat64(unassign) - beforeUnassign; got != 2 {
		t.Errorf("expected 2 unassigns recorded, got %v", got)
	}
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestReconcileJob_StartStop(t *testing.T) {
	t.Parallel()

	rec := &mockReconciler{report: &service.ReconcileReport{}}
	job := NewReconcileJob(ReconcileJobConfig{
		Reconciler:   rec,
		Interval:     10 * time.Millisecond,
		InitialDelay: time.Millisecond,
		Logger:       quietLogger(),
	})

	job.Start()
	job.Start()
	if !job.IsRunning() {
		t.Fatal("expected job to be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&rec.calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	job.Stop()
	job.Stop()
	if job.IsRunning() {
		t.Error("expected job to be stopped")
	}
	if atomic.LoadInt32(&rec.calls) < 2 {
		t.Errorf("expected at least 2 passes, got %d", rec.calls)
	}
}

func TestReconcileJob_StopBeforeFirstPass(t *testing.T) {
	t.Parallel()

	rec := &mockReconciler{report: &service.ReconcileReport{}}
	job := NewReconcileJob(ReconcileJobConfig{
		Reconciler:   rec,
		InitialDelay: time.Hour,
		Logger:       quietLogger(),
	})

	job.Start()
	job.Stop()

	if calls := atomic.LoadInt32(&rec.calls); calls != 0 {
		t.Errorf("expected no passes, got %d", calls)
	}
}
