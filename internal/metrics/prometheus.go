package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credits"

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	charges             prometheus.Counter
	chargedCredits      prometheus.Counter
	deducts             *prometheus.CounterVec
	deductedCredits     prometheus.Counter
	rejections          *prometheus.CounterVec
	duplicateSettlement prometheus.Counter
	cacheFallbacks      prometheus.Counter
	ledgerDuration      *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		charges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charges_total",
			Help:      "Settled top-ups",
		}),
		chargedCredits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charged_credits_total",
			Help:      "Credits granted by settled top-ups",
		}),
		deducts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deducts_total",
			Help:      "Successful usage deductions by feature",
		}, []string{"feature"}),
		deductedCredits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deducted_credits_total",
			Help:      "Credits consumed by usage",
		}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected ledger operations by reason",
		}, []string{"operation", "reason"}),
		duplicateSettlement: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_settlements_total",
			Help:      "Replayed payment confirmations answered without a new charge",
		}),
		cacheFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_fallbacks_total",
			Help:      "Balance reads served from the cache because the ledger was unavailable",
		}),
		ledgerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger store latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),
	}
}

func (c *Collector) RecordCharge(credits int64) {
	c.charges.Inc()
	c.chargedCredits.Add(float64(credits))
}

func (c *Collector) RecordDuplicateSettlement() {
	c.duplicateSettlement.Inc()
}

func (c *Collector) RecordDeduct(feature string, credits int64) {
	if feature == "" {
		feature = "direct"
	}
	c.deducts.WithLabelValues(feature).Inc()
	c.deductedCredits.Add(float64(credits))
}

// RecordRejection counts a failed operation. reason is a short fixed label
// such as insufficient_credit or storage_unavailable.
func (c *Collector) RecordRejection(operation, reason string) {
	c.rejections.WithLabelValues(operation, reason).Inc()
}

func (c *Collector) RecordCacheFallback() {
	c.cacheFallbacks.Inc()
}

func (c *Collector) ObserveLedger(operation string, start time.Time) {
	c.ledgerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware instruments requests by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, path, strconv.Itoa(status)}

		c.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		c.httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}
