package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantdesk_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"route", "method"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_request_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_llm_tokens_used",
			Help: "Total completion API tokens used",
		},
		[]string{"model", "type"},
	)

	LLMFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grantdesk_llm_failures_total",
			Help: "Completion API calls that fell back to the apology message",
		},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_documents_ingested_total",
			Help: "Documents ingested, by file type",
		},
		[]string{"file_type"},
	)

	DeadlineItemsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_deadline_items_created_total",
			Help: "Tasks and milestones created by deadline detection",
		},
		[]string{"type"},
	)

	DeadlineSweepUpcoming = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grantdesk_deadline_sweep_upcoming",
			Help: "Upcoming deadlines found by the last cron sweep",
		},
	)

	MessagesPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_messages_posted_total",
			Help: "Chat messages persisted, by role",
		},
		[]string{"role"},
	)

	WebSearchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grantdesk_web_search_total",
			Help: "Web searches performed",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdesk_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMFailures)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(DeadlineItemsCreated)
	prometheus.MustRegister(DeadlineSweepUpcoming)
	prometheus.MustRegister(MessagesPosted)
	prometheus.MustRegister(WebSearchTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
