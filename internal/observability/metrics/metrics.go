package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/routing-advisor/node-advisor/internal/types"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

func outcome(failure bool) Outcome {
	if failure {
		return Error
	}
	return Success
}

var defaultHistogramBucketsSeconds = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

var (
	once          sync.Once
	metricsRouter *chi.Mux

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	lndClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lnd_client_latency_seconds",
			Help:    "Histogram of lnd client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)

	channelCountGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "open_channels_count",
			Help: "Number of open channels in the last evaluated snapshot",
		},
	)

	recommendedActionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommended_actions_count",
			Help: "Number of actions recommended by the last advisory run",
		},
		[]string{"entity", "variable"},
	)

	localBalanceRatioGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "local_balance_ratio",
			Help: "Total local balance divided by total capacity of all open channels",
		},
	)

	advisoryRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_runs_total",
			Help: "The total number of advisory runs by outcome",
		},
		[]string{"status"},
	)
)

// Init registers the collectors and serves them on addr.
func Init(addr string) {
	once.Do(func() {
		registerMetrics()
		initMetricsRouter(addr)
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(addr string) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	server := &http.Server{
		Addr:         addr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Info().Msgf("Starting metrics server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", addr)
		}
	}()
}

func registerMetrics() {
	prometheus.MustRegister(
		pollerDurationHistogram,
		lndClientLatency,
		dbLatency,
		channelCountGauge,
		recommendedActionsGauge,
		localBalanceRatioGauge,
		advisoryRunsCounter,
	)
}

func RecordLndClientLatency(d time.Duration, method string, failure bool) {
	lndClientLatency.WithLabelValues(method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	dbLatency.WithLabelValues(method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordChannelCount(count int) {
	channelCountGauge.Set(float64(count))
}

// RecordRecommendedActions replaces the per entity and variable counts of
// the previous run.
func RecordRecommendedActions(actions []types.Action) {
	recommendedActionsGauge.Reset()
	for _, a := range actions {
		recommendedActionsGauge.WithLabelValues(a.Entity.String(), a.Variable.String()).Inc()
	}
}

func RecordLocalBalanceRatio(ratio float64) {
	localBalanceRatioGauge.Set(ratio)
}

func IncAdvisoryRuns(failure bool) {
	advisoryRunsCounter.WithLabelValues(outcome(failure).String()).Inc()
}
