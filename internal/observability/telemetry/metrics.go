package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OCPPMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_ocpp_messages_total",
		Help: "Inbound OCPP messages by action and outcome",
	}, []string{"action", "outcome"})

	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_sessions_started_total",
		Help: "Charging sessions started by origin (protocol, user)",
	}, []string{"origin"})

	SessionsStoppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_sessions_stopped_total",
		Help: "Charging sessions settled by origin (protocol, user, forced)",
	}, []string{"origin"})

	EnergyDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_energy_delivered_kwh_total",
		Help: "Total energy settled in kWh",
	})

	LogLinesIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_log_lines_ingested_total",
		Help: "Log lines ingested by parse result (structured, fallback, skipped)",
	}, []string{"result"})

	WatchdogSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_watchdog_sweeps_total",
		Help: "Low-credit watchdog sweeps executed",
	})

	WatchdogForceStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_watchdog_force_stops_total",
		Help: "Sessions force-stopped by the low-credit watchdog",
	})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_outbox_published_total",
		Help: "Outbox events drained by topic",
	}, []string{"topic"})

	BridgeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_bridge_requests_total",
		Help: "Remote commands relayed to the device bridge",
	}, []string{"command", "outcome"})
)
