package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipline_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AdviceRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipline_advice_requests_total",
			Help: "Total number of compliance advisory requests",
		},
	)

	AdviceRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipline_advice_rate_limited_total",
			Help: "Total number of advisory requests rejected by the rate limiter",
		},
	)

	MailsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipline_mails_delivered_total",
			Help: "Total number of notification mails delivered",
		},
	)

	MailsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipline_mails_failed_total",
			Help: "Total number of notification mails that failed to send",
		},
	)

	MailsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipline_mails_skipped_total",
			Help: "Total number of broker messages skipped by the notifier",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AdviceRequestsTotal)
		prometheus.MustRegister(AdviceRateLimitedTotal)
		prometheus.MustRegister(MailsDeliveredTotal)
		prometheus.MustRegister(MailsFailedTotal)
		prometheus.MustRegister(MailsSkippedTotal)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware пишет метрики по шаблону маршрута chi, а не по сырому URL,
// чтобы не раздувать кардинальность лейблов tracking-идентификаторами.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
