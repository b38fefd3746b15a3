// Package metrics registers and exposes the service's prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles every collector the api and worker binaries report
type Set struct {
	reg *prometheus.Registry

	WebhooksReceived *prometheus.CounterVec // outcome: accepted, duplicate, rate_limited, disabled, bad_signature, ignored
	JobsEnqueued     prometheus.Counter
	JobsCompleted    *prometheus.CounterVec // status: done, failed, superseded, dead_letter
	ReviewDuration   prometheus.Histogram
	AgentTurns       prometheus.Histogram
	ToolCalls        *prometheus.CounterVec // tool name, outcome ok/error
	ModelTokens      *prometheus.CounterVec // direction: input, output
	PublishFailures  prometheus.Counter
}

// New builds a Set on a fresh registry so tests never collide on duplicate registration
func New() *Set {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Set{
		reg: reg,
		WebhooksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "webhooks_received_total",
			Help:      "Webhook deliveries by gate outcome",
		}, []string{"outcome"}),
		JobsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "jobs_enqueued_total",
			Help:      "Review jobs pushed onto the queue",
		}),
		JobsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "jobs_completed_total",
			Help:      "Review jobs finished by terminal status",
		}, []string{"status"}),
		ReviewDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nitpick",
			Name:      "review_duration_seconds",
			Help:      "Wall time from job pickup to published review",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		AgentTurns: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nitpick",
			Name:      "agent_turns",
			Help:      "Model turns consumed per review",
			Buckets:   []float64{1, 2, 4, 8, 12, 16, 24, 30},
		}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by name and outcome",
		}, []string{"tool", "outcome"}),
		ModelTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "model_tokens_total",
			Help:      "Model token usage by direction",
		}, []string{"direction"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nitpick",
			Name:      "publish_failures_total",
			Help:      "Reviews that could not be posted upstream",
		}),
	}
}

// Handler returns the scrape endpoint for this Set's registry
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors
func (s *Set) Registry() *prometheus.Registry { return s.reg }
