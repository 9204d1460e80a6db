package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    pagesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfpress",
            Name:      "pages_processed_total",
            Help:      "Pages processed by outcome (copied, rasterized, converted, dropped)",
        },
        []string{"outcome"},
    )

    bandIterations = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfpress",
            Name:      "band_encode_iterations",
            Help:      "Encode attempts per quality-band search",
            Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
        },
    )

    bandFloor = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfpress",
            Name:      "band_floor_total",
            Help:      "Quality-band searches by whether the size floor was reached",
        },
        []string{"reached"},
    )

    bytesSaved = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfpress",
            Name:      "bytes_saved_total",
            Help:      "Bytes shaved off versus the verbatim baseline",
        },
    )

    operationDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfpress",
            Name:      "operation_duration_seconds",
            Help:      "Duration of caller-facing operations",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"op"},
    )

    jobsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfpress",
            Name:      "jobs_total",
            Help:      "Process jobs by result",
        },
        []string{"result"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(pagesProcessed, bandIterations, bandFloor, bytesSaved, operationDuration, jobsTotal)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func PageProcessed(outcome string) { pagesProcessed.WithLabelValues(outcome).Inc() }

func BandEncode(iterations int, reachedFloor bool) {
    bandIterations.Observe(float64(iterations))
    bandFloor.WithLabelValues(boolToStr(reachedFloor)).Inc()
}

func AddBytesSaved(n int64) {
    if n > 0 {
        bytesSaved.Add(float64(n))
    }
}

func ObserveOperation(op string, dur time.Duration) {
    operationDuration.WithLabelValues(op).Observe(dur.Seconds())
}

func JobCompleted(result string) { jobsTotal.WithLabelValues(result).Inc() }

func boolToStr(b bool) string { if b { return "true" }; return "false" }
