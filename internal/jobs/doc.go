// Package jobs runs background work alongside the HTTP server.
//
// ReconcileJob periodically calls the reconcile service to repair drift
// between task assignments and users' pending task lists:
//
//	job := jobs.NewReconcileJob(jobs.ReconcileJobConfig{
//	    Reconciler: reconcileService,
//	    Interval:   cfg.Reconcile.Interval,
//	})
//	job.Start()
//	defer job.Stop()
//
// A failed pass is logged and counted; the loop keeps running.
package jobs
