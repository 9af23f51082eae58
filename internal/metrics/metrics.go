// Package metrics exposes Prometheus collectors for the service.
//
// Collectors are registered on the default registry with promauto, so they are
// package-level variables that any package can increment without wiring.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Business metrics

	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blood_registrations_total",
		Help: "Successful registrations by kind (donor, patient, ngo, hospital).",
	}, []string{"kind"})

	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blood_matches_total",
		Help: "Match attempts by result (created, rejected for bad input, failed).",
	}, []string{"result"})

	RegistrationReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blood_registration_reviews_total",
		Help: "Partner registration status changes by kind and new status.",
	}, []string{"kind", "status"})

	// HTTP metrics

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blood_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blood_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records a counter and a latency observation per request.
//
// The route label is chi's pattern ("/api/admin/registrations/{kind}"), not the
// raw path, so IDs in URLs do not explode the label cardinality. Requests no
// route matched are all counted under "unmatched".
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
