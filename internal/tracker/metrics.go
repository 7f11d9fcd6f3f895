package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts tracker outcomes.
type Metrics struct {
	ViewsRecorded prometheus.Counter
	ViewsSkipped  *prometheus.CounterVec
	RankWindows   *prometheus.CounterVec
	ViewsPurged   *prometheus.CounterVec
}

// NewMetrics creates the tracker collectors and registers them with reg. A
// nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ViewsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mostviewed",
			Name:      "views_recorded_total",
			Help:      "Views appended to the view log.",
		}),
		ViewsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mostviewed",
			Name:      "views_skipped_total",
			Help:      "Views dropped by the exclusion policy, by reason.",
		}, []string{"reason"}),
		RankWindows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mostviewed",
			Name:      "rank_windows_total",
			Help:      "Aggregation windows executed by ranked queries, by rung.",
		}, []string{"rung"}),
		ViewsPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mostviewed",
			Name:      "views_purged_total",
			Help:      "Views deleted from the view log, by cause.",
		}, []string{"cause"}),
	}
}
