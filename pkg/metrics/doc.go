/*
Package metrics provides Prometheus metrics and component health for stkgate.

All collectors are package-level variables registered with the default
Prometheus registry at init, so any package can record against them
without plumbing a registry through constructors.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │  Sessions: active, total by exit reason     │          │
	│  │  Protocol: requests by type/result, latency │          │
	│  │  Ridian: calls by outcome, reconnects       │          │
	│  │  Barcode: reads by outcome                  │          │
	│  │  Orchestration: compensations, notices      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Admin endpoints (pkg/api)            │          │
	│  │  /metrics  /health  /ready                  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metric Reference

	stkgate_sessions_active                       gauge
	stkgate_sessions_total{reason}                counter
	stkgate_sessions_by_type{type}                gauge (sampled by Collector)
	stkgate_requests_total{type,result}           counter
	stkgate_request_duration_seconds{type}        histogram
	stkgate_malformed_frames_total                counter
	stkgate_backend_calls_total{outcome}          counter
	stkgate_backend_reconnects_total              counter
	stkgate_backend_call_duration_seconds         histogram
	stkgate_barcode_reads_total{outcome}          counter
	stkgate_compensations_total{op,outcome}       counter
	stkgate_notifications_total{kind,outcome}     counter
	stkgate_alerts_total{outcome}                 counter
	stkgate_logship_dropped_total                 counter

# Health

UpdateComponent records the latest state of a named component. GetHealth
reports unhealthy if any component is unhealthy; GetReadiness only looks
at the critical set (the stocker listener and the directory by default).

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RequestDuration, "QuerySensorLocation")
*/
package metrics
