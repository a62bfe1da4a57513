// Package metrics bridges rcrowley/go-metrics counters into Prometheus,
// served over HTTP — purely observational, per spec.md §9's design note
// that metrics never participate in control flow. Grounded verbatim on
// the teacher's metricServer.go: the same NewPrometheusProvider/
// UpdatePrometheusMetricsOnce polling loop plus promhttp.HandlerFor setup.
package metrics

import (
	"context"
	"net/http"
	"time"

	promMetrics "github.com/CrowdStrike/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// Registry is the process-wide rcrowley/go-metrics registry every
// component records into.
var Registry = gometrics.NewRegistry()

var (
	RecordsWritten  = gometrics.GetOrRegisterCounter("secor.records.written", Registry)
	BytesUploaded   = gometrics.GetOrRegisterCounter("secor.bytes.uploaded", Registry)
	UploadFailures  = gometrics.GetOrRegisterCounter("secor.upload.failures", Registry)
	ParseFailures   = gometrics.GetOrRegisterCounter("secor.parse.failures", Registry)
	FlushDuration   = gometrics.GetOrRegisterTimer("secor.flush.duration", Registry)
	CommitLagOffset = gometrics.GetOrRegisterGaugeFloat64("secor.commit.lag.offset", Registry)
)

// StartServer exposes Registry on /prometheus at address, refreshing the
// bridge every flushInterval. Returns a stop function that shuts the
// HTTP server down and halts the refresh loop.
func StartServer(address string, flushInterval time.Duration, log logrus.FieldLogger) func() {
	if flushInterval <= 0 {
		flushInterval = 3 * time.Second
	}

	mux := http.NewServeMux()
	srv := &http.Server{Addr: address, Handler: mux}
	quit := make(chan struct{})

	promRegistry := prometheus.NewRegistry()
	provider := promMetrics.NewPrometheusProvider(Registry, "secor", "", promRegistry, flushInterval)

	go func() {
		for {
			select {
			case <-time.After(flushInterval):
				if err := provider.UpdatePrometheusMetricsOnce(); err != nil {
					log.WithError(err).Warn("metrics: error updating prometheus bridge")
				}
			case <-quit:
				return
			}
		}
	}()

	go func() {
		opts := promhttp.HandlerOpts{ErrorLog: log, ErrorHandling: promhttp.ContinueOnError}
		mux.Handle("/prometheus", promhttp.HandlerFor(promRegistry, opts))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics: http server failed")
		}
	}()

	log.WithField("address", address).Info("metrics: started prometheus endpoint")

	return func() {
		close(quit)
		if err := srv.Shutdown(context.Background()); err != nil {
			log.WithError(err).Error("metrics: failed to shut down http server")
		}
	}
}
