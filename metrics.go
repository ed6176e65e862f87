package main

import (
	"context"
	"net/http"
	"time"

	"github.com/grailbio/base/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the counters for one precomputation run
type metrics struct {
	registry *prometheus.Registry

	Accepted      prometheus.Counter
	Rejected      prometheus.Counter
	Written       prometheus.Counter
	Failures      *prometheus.CounterVec
	GroupDuration prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{registry: reg}
	m.Accepted = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "genpmk_passphrases_accepted_total",
			Help: "Passphrases that passed the length filter",
		},
	)
	m.Rejected = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "genpmk_passphrases_rejected_total",
			Help: "Dictionary lines dropped by the length filter",
		},
	)
	m.Written = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "genpmk_records_written_total",
			Help: "Records appended to the hash file",
		},
	)
	m.Failures = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "genpmk_record_failures_total",
			Help: "Passphrases that produced no record, by failing stage",
		},
		[]string{"stage"},
	)
	m.GroupDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genpmk_group_duration_seconds",
			Help:    "Wall time to hash and store one group of passphrases",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
	return m
}

// serve exposes the registry on addr until ctx is done
func (m *metrics) serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Printf("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error.Printf("metrics server: %v", err)
		}
	}()
}
