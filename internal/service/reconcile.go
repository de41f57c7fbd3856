package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/repository"
)

// AssignmentSource lists every task with its assignee
type AssignmentSource interface {
	Assignments(ctx context.Context) (map[string]string, error)
}

// PendingTaskSource lists every user with its stored pending list
type PendingTaskSource interface {
	PendingTasks(ctx context.Context) (map[string][]string, error)
}

// RepairApplier writes reverse-index repairs atomically
type RepairApplier interface {
	Apply(ctx context.Context, repair repository.IndexRepair) error
}

// ReconcileReport summarizes one reconcile pass
type ReconcileReport struct {
	DryRun          bool                `json:"dryRun"`
	TasksChecked    int                 `json:"tasksChecked"`
	UsersChecked    int                 `json:"usersChecked"`
	ListsRewritten  int                 `json:"listsRewritten"`
	TasksUnassigned int                 `json:"tasksUnassigned"`
	Rewritten       map[string][]string `json:"rewritten,omitempty"`
	Unassigned      map[string]string   `json:"unassigned,omitempty"`
}

// Clean reports whether the pass found no drift
func (r *ReconcileReport) Clean() bool {
	return r.ListsRewritten == 0 && r.TasksUnassigned == 0
}

// ReconcileService restores the task/user reverse index after drift left by
// direct pendingTasks writes or interleaved requests.
type ReconcileService struct {
	tasks   AssignmentSource
	users   PendingTaskSource
	applier RepairApplier
	logger  *slog.Logger
}

// ReconcileServiceConfig holds configuration for the reconcile service
type ReconcileServiceConfig struct {
	TaskRepo      AssignmentSource
	UserRepo      PendingTaskSource
	ReconcileRepo RepairApplier
	Logger        *slog.Logger // Optional, defaults to slog.Default()
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(cfg ReconcileServiceConfig) *ReconcileService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		tasks:   cfg.TaskRepo,
		users:   cfg.UserRepo,
		applier: cfg.ReconcileRepo,
		logger:  logger,
	}
}

// Run compares every user's pending list with the tasks assigned to it and
// repairs the differences. With dryRun set nothing is written.
func (s *ReconcileService) Run(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	assignments, err := s.tasks.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load task assignments: %w", err)
	}
	pending, err := s.users.PendingTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending tasks: %w", err)
	}

	repair := PlanRepair(assignments, pending)
	report := &ReconcileReport{
		DryRun:          dryRun,
		TasksChecked:    len(assignments),
		UsersChecked:    len(pending),
		ListsRewritten:  len(repair.Rewrite),
		TasksUnassigned: len(repair.Unassign),
		Rewritten:       repair.Rewrite,
		Unassigned:      repair.Unassign,
	}

	if dryRun || repair.Empty() {
		return report, nil
	}

	if err := s.applier.Apply(ctx, repair); err != nil {
		return nil, fmt.Errorf("apply reconcile repair: %w", err)
	}
	s.logger.Info("reverse index repaired",
		"lists_rewritten", report.ListsRewritten,
		"tasks_unassigned", report.TasksUnassigned,
	)
	return report, nil
}

// PlanRepair derives the writes that make pending agree with assignments.
// A task whose assignee no longer exists is unassigned. A user whose list
// differs from its assigned tasks as a set, or holds duplicates, is rewritten.
func PlanRepair(assignments map[string]string, pending map[string][]string) repository.IndexRepair {
	repair := repository.IndexRepair{
		Rewrite:  map[string][]string{},
		Unassign: map[string]string{},
	}

	want := make(map[string][]string, len(pending))
	for taskID, raw := range assignments {
		userID := model.NormalizeAssignee(raw)
		if userID == "" {
			continue
		}
		if _, ok := pending[userID]; !ok {
			repair.Unassign[taskID] = raw
			continue
		}
		want[userID] = append(want[userID], taskID)
	}

	for userID, stored := range pending {
		expected := want[userID]
		sort.Strings(expected)
		if !sameTaskSet(stored, expected) {
			if expected == nil {
				expected = []string{}
			}
			repair.Rewrite[userID] = expected
		}
	}
	return repair
}

// sameTaskSet reports whether stored holds exactly the ids in expected, once each
func sameTaskSet(stored, expected []string) bool {
	if len(stored) != len(expected) {
		return false
	}
	seen := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	for _, id := range expected {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
