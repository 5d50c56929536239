package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work done by spilling operators.
type Metrics struct {
	Registry   prometheus.Gatherer
	Promotions prometheus.Counter
	Chunks     prometheus.Counter
	SpillBytes prometheus.Counter
	Groups     *prometheus.CounterVec
}

// NewMetrics registers the counters with registerer.  A nil registerer gets
// a private registry, which is also what Registry gathers from in that case.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if registerer == nil {
		registry := prometheus.NewRegistry()
		registerer, gatherer = registry, registry
	} else if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(registerer)
	return &Metrics{
		Registry: gatherer,
		Promotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "jaql_groupcombine_promotions_total",
			Help: "Number of times the accumulator was promoted through the initial stage.",
		}),
		Chunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "jaql_groupcombine_spill_chunks_total",
			Help: "Number of sorted chunks written to spill files.",
		}),
		SpillBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "jaql_groupcombine_spill_bytes_total",
			Help: "Number of bytes written to spill files.",
		}),
		Groups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jaql_groupcombine_groups_total",
				Help: "Number of groups emitted, by output path.",
			},
			[]string{"path"},
		),
	}
}
