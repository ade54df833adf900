package httptransport

import "expvar"

var (
	metricSnapshotIngestTotal  = expvar.NewInt("http_snapshot_ingest_total")
	metricSnapshotIngestErrors = expvar.NewInt("http_snapshot_ingest_errors_total")
	metricControlActionsTotal  = expvar.NewInt("http_control_actions_total")
)
