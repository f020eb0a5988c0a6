// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts the events the auth and mail flows care about.
type Collector struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	signups       prometheus.Counter
	signins       prometheus.Counter
	signinsFailed prometheus.Counter
	emailsSent    prometheus.Counter
	emailsFailed  prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenippon_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifenippon_signups_total",
			Help: "Accounts created, via activation or federated login.",
		}),
		signins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifenippon_signins_total",
			Help: "Successful signins.",
		}),
		signinsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifenippon_signins_failed_total",
			Help: "Rejected signin attempts.",
		}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifenippon_emails_sent_total",
			Help: "Emails handed to the dispatcher.",
		}),
		emailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifenippon_emails_failed_total",
			Help: "Email dispatch failures.",
		}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.signups,
		c.signins,
		c.signinsFailed,
		c.emailsSent,
		c.emailsFailed,
	)
	return c
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordSignup()       { c.signups.Inc() }
func (c *Collector) RecordSignin()       { c.signins.Inc() }
func (c *Collector) RecordSigninFailed() { c.signinsFailed.Inc() }
func (c *Collector) RecordEmailSent()    { c.emailsSent.Inc() }
func (c *Collector) RecordEmailFailed()  { c.emailsFailed.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records the status code of every response.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		c.RecordHTTPStatus(recorder.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
