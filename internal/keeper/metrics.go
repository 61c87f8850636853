package keeper

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics — global only (no unbounded label cardinality).
var (
	backendsUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tribbler_keeper_backends_up",
		Help: "Number of backends that answered the last probe round",
	})
	maxClock = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tribbler_keeper_max_clock",
		Help: "Highest logical clock observed in the last probe round",
	})
	probeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tribbler_keeper_probe_failures_total",
		Help: "Total failed backend clock probes",
	})
	transitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tribbler_keeper_transitions_total",
		Help: "Total backend up/down transitions observed",
	})
	migrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tribbler_keeper_migrations_total",
		Help: "Total migration runs triggered by membership events",
	})
	migrationErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tribbler_keeper_migration_errors_total",
		Help: "Total migration runs that reported at least one failed bin copy",
	})
)

func init() {
	// Register eagerly. If no Prometheus endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(backendsUp, maxClock, probeFailuresTotal,
		transitionsTotal, migrationsTotal, migrationErrorsTotal)
}
