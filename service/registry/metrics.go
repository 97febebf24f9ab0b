package registry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	model "github.com/viant/tapedeck/model/session"
)

var (
	metricSessionsSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tapedeck",
		Name:      "sessions_spawned_total",
		Help:      "Number of recording sessions started.",
	})
	metricSpawnFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tapedeck",
		Name:      "spawn_failures_total",
		Help:      "Number of spawn requests rejected or failed to start.",
	})
	metricSessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tapedeck",
		Name:      "sessions_stopped_total",
		Help:      "Number of recording sessions stopped.",
	})
	metricStopFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tapedeck",
		Name:      "stop_failures_total",
		Help:      "Number of stops that completed with a partial failure.",
	})
	metricDrainTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tapedeck",
		Name:      "drain_timeouts_total",
		Help:      "Number of encode pipelines that did not drain before teardown.",
	})
	metricLiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tapedeck",
		Name:      "live_sessions",
		Help:      "Number of sessions currently registered.",
	})
)

func recordSpawn(err error) {
	if err != nil {
		metricSpawnFailures.Inc()
		return
	}
	metricSessionsSpawned.Inc()
	metricLiveSessions.Inc()
}

func recordStop(err error) {
	metricSessionsStopped.Inc()
	metricLiveSessions.Dec()
	if err == nil {
		return
	}
	metricStopFailures.Inc()
	if errors.Is(err, model.ErrDrainTimeout) {
		metricDrainTimeouts.Inc()
	}
}
