package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters for scheduled work.
type Metrics struct {
	JobRuns      *prometheus.CounterVec
	Publications *prometheus.CounterVec
	Scrapes      prometheus.Counter
	Embeddings   prometheus.Counter
}

// NewMetrics registers the counters with reg (pass
// prometheus.DefaultRegisterer in production).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vestnik_job_runs_total",
			Help: "Scheduled job executions by job name.",
		}, []string{"job"}),
		Publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vestnik_publications_total",
			Help: "Publication attempts by job and outcome.",
		}, []string{"job", "status"}),
		Scrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestnik_scrape_runs_total",
			Help: "Completed scrape passes.",
		}),
		Embeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestnik_embeddings_stored_total",
			Help: "Embeddings generated and stored by the backfill job.",
		}),
	}
	reg.MustRegister(m.JobRuns, m.Publications, m.Scrapes, m.Embeddings)
	return m
}
