package tracker

import "expvar"

var (
	metricSnapshotsTotal   = expvar.NewInt("tracker_snapshots_total")
	metricSnapshotsDropped = expvar.NewInt("tracker_snapshots_dropped_total")
	metricRoundsFinalized  = expvar.NewInt("tracker_rounds_finalized_total")
	metricDesyncTotal      = expvar.NewInt("tracker_desync_total")
	metricShuffleRuns      = expvar.NewInt("tracker_shuffle_runs_total")
	metricShuffleBusy      = expvar.NewInt("tracker_shuffle_busy_total")
	metricStoreErrors      = expvar.NewInt("tracker_store_errors_total")

	metricInvariantViolations = expvar.NewInt("tracker_invariant_violations_total")
	metricStackReconciled     = expvar.NewInt("tracker_shuffle_stack_reconciled_total")
)
