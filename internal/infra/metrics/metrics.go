package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScrapedPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraped_posts_total",
		Help: "Количество сохранённых постов по источникам",
	}, []string{"source"})

	ScrapedCommentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraped_comments_total",
		Help: "Количество сохранённых комментариев по источникам",
	}, []string{"source"})

	ScrapeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_errors_total",
		Help: "Ошибки при обходе источников",
	})

	ScrapeRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scrape_run_seconds",
		Help:    "Длительность полного прогона",
		Buckets: prometheus.DefBuckets,
	})

	ScrapeRunsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_runs_skipped_total",
		Help: "Прогоны, пропущенные из-за уже идущего прогона",
	})

	ProxyPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_pool_size",
		Help: "Размер пула прокси",
	})

	ProxyPoolFailed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_pool_failed",
		Help: "Количество прокси, помеченных неисправными",
	})

	TrendingTopicsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trending_topics_total",
		Help: "Количество тем, обновлённых последним пересчётом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScrapedPostsTotal,
		ScrapedCommentsTotal,
		ScrapeErrors,
		ScrapeRunSeconds,
		ScrapeRunsSkipped,
		ProxyPoolSize,
		ProxyPoolFailed,
		TrendingTopicsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
