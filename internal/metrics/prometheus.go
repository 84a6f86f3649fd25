package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "book_tutor_turn_duration_seconds",
			Help:    "Turn processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"mode"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_tutor_turns_total",
			Help: "Total turns processed, by log event",
		},
		[]string{"event"},
	)

	SupportScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "book_tutor_support_score",
			Help:    "Support scores of answered turns",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	PassagesRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "book_tutor_passages_retrieved",
			Help:    "Passages returned by retrieval per turn",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	SafetyBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_tutor_safety_blocks_total",
			Help: "Content blocked by a safety gate",
		},
		[]string{"gate"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_tutor_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_tutor_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "book_tutor_documents_indexed_total",
			Help: "Total book indexes built",
		},
	)
)

func Init() {
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(SupportScore)
	prometheus.MustRegister(PassagesRetrieved)
	prometheus.MustRegister(SafetyBlocks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIndexed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
