package ws

import "expvar"

var (
	metricFramesTotal       = expvar.NewInt("ws_snapshot_frames_total")
	metricFrameErrors       = expvar.NewInt("ws_snapshot_frame_errors_total")
	metricConnectionsActive = expvar.NewInt("ws_connections_active")
)
