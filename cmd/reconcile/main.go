package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/forgo/taskboard/internal/config"
	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/logging"
	"github.com/forgo/taskboard/internal/repository"
	"github.com/forgo/taskboard/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report drift without writing repairs")
	outputJSON := flag.Bool("json", false, "Output the report as JSON")
	timeout := flag.Duration("timeout", 5*time.Minute, "Deadline for the whole pass")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so --json output stays parseable
	logger := logging.New(os.Stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.FormatConsole,
		Prefix: "reconcile",
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	svc := service.NewReconcileService(service.ReconcileServiceConfig{
		TaskRepo:      repository.NewTaskRepository(db),
		UserRepo:      repository.NewUserRepository(db),
		ReconcileRepo: repository.NewReconcileRepository(db),
		Logger:        logger,
	})

	report, err := svc.Run(ctx, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running reconcile: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	printReport(report)
}

func printReport(r *service.ReconcileReport) {
	mode := "applied"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Printf("Reverse Index Reconcile (%s)\n", mode)
	fmt.Println("==============================")
	fmt.Printf("Tasks checked:    %d\n", r.TasksChecked)
	fmt.Printf("Users checked:    %d\n", r.UsersChecked)
	fmt.Printf("Lists rewritten:  %d\n", r.ListsRewritten)
	fmt.Printf("Tasks unassigned: %d\n", r.TasksUnassigned)

	if r.Clean() {
		fmt.Println()
		fmt.Println("No drift found.")
		return
	}

	if len(r.Rewritten) > 0 {
		fmt.Println()
		fmt.Println("Pending lists:")
		for _, userID := range sortedKeys(r.Rewritten) {
			fmt.Printf("  %s -> %v\n", userID, r.Rewritten[userID])
		}
	}
	if len(r.Unassigned) > 0 {
		fmt.Println()
		fmt.Println("Unassigned tasks (assignee missing):")
		for _, taskID := range sortedKeys(r.Unassigned) {
			fmt.Printf("  %s (was %s)\n", taskID, r.Unassigned[taskID])
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
