package main

import (
	"context"
	"time"
)

// reconcilePendingSessions sweeps stuck STK push sessions on a fixed
// interval. Each sweep drains before the next tick runs, so a slow batch
// just skips ticks instead of piling up.
func (app *application) reconcilePendingSessions() {
	go func() {
		ticker := time.NewTicker(app.config.reconcile.interval)
		defer ticker.Stop()

		// Run once immediately to catch sessions orphaned by a restart.
		app.runReconcileSweep()

		for range ticker.C {
			app.runReconcileSweep()
		}
	}()
}

func (app *application) runReconcileSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.reconcile.interval)
	defer cancel()

	app.reconciler.ReconcilePending(ctx)
}
