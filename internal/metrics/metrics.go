package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    pagesRendered = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfviewer",
            Name:      "pages_rendered_total",
            Help:      "Total page renders by result (rendered, failed)",
        },
        []string{"result"},
    )

    renderDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfviewer",
            Name:      "render_duration_seconds",
            Help:      "Duration of individual page renders",
            Buckets:   prometheus.DefBuckets,
        },
    )

    rendersInflight = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdfviewer",
            Name:      "renders_inflight",
            Help:      "Page renders currently outstanding across all sessions",
        },
    )

    queueDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdfviewer",
            Name:      "render_queue_depth",
            Help:      "Pages queued but not yet admitted across all sessions",
        },
    )

    sessionsOpened = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfviewer",
            Name:      "sessions_opened_total",
            Help:      "Viewing sessions opened by result (ok, source_error, open_error)",
        },
        []string{"result"},
    )

    sourceBytes = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfviewer",
            Name:      "source_bytes",
            Help:      "Size of accepted document sources in bytes",
            Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
        },
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(pagesRendered, renderDuration, rendersInflight, queueDepth, sessionsOpened, sourceBytes)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRender(result string, dur time.Duration) {
    pagesRendered.WithLabelValues(result).Inc()
    renderDuration.Observe(dur.Seconds())
}

func IncInflight()           { rendersInflight.Inc() }
func DecInflight()           { rendersInflight.Dec() }
func AddQueueDepth(d int)    { queueDepth.Add(float64(d)) }
func SessionOpened(result string) { sessionsOpened.WithLabelValues(result).Inc() }
func ObserveSourceBytes(n int64)  { sourceBytes.Observe(float64(n)) }
