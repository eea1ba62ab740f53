package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/adapters/repo"
	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/cache"
	"ai-trend-scraper/internal/infra/config"
	"ai-trend-scraper/internal/infra/db"
	apphttp "ai-trend-scraper/internal/infra/http"
	applog "ai-trend-scraper/internal/infra/log"
	"ai-trend-scraper/internal/infra/metrics"
	"ai-trend-scraper/internal/infra/queue"
)

const trendingCacheTTL = time.Minute

// Сервис запросов для дашбордов: только чтение, обход никогда не
// запускается как побочный эффект. Ручной запуск — отдельный POST,
// который лишь ставит задачу в общую очередь воркера.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var trendingCache domain.Cache
	var scrapeQueue domain.ScrapeQueue
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		trendingCache = cache.NewRedis(redisClient)
		scrapeQueue = queue.NewRedisScrapeQueue(redisClient, cfg.Queues.Scrape)
	}
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitScrapeQueue(cfg.RabbitURL, cfg.Queues.Scrape)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		scrapeQueue = rabbit
	}

	srv := apphttp.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(srv, repoAdapter, trendingCache, scrapeQueue, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api: сервер остановлен")
	}
}

func registerRoutes(srv *apphttp.Server, repoAdapter *repo.Postgres, trendingCache domain.Cache, scrapeQueue domain.ScrapeQueue, logger zerolog.Logger) {
	srv.Router.Get("/api/trending", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		cacheKey := fmt.Sprintf("api:trending:%d", limit)
		if trendingCache != nil {
			if data, err := trendingCache.Get(cacheKey); err == nil && len(data) > 0 {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(data)
				return
			}
		}
		topics, err := repoAdapter.ListTrendingTopics(r.Context(), limit)
		if err != nil {
			http.Error(w, "запрос не выполнен", http.StatusInternalServerError)
			logger.Error().Err(err).Msg("api: выборка трендов не удалась")
			return
		}
		data, _ := json.Marshal(topics)
		if trendingCache != nil {
			_ = trendingCache.Set(cacheKey, data, trendingCacheTTL)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})

	srv.Router.Get("/api/analytics", func(w http.ResponseWriter, r *http.Request) {
		hours := queryInt(r, "hours", 24)
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		records, err := repoAdapter.ListRecentRunRecords(r.Context(), since)
		if err != nil {
			http.Error(w, "запрос не выполнен", http.StatusInternalServerError)
			logger.Error().Err(err).Msg("api: выборка аналитики не удалась")
			return
		}
		writeJSON(w, records)
	})

	srv.Router.Get("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		hours := queryInt(r, "hours", 24)
		filter := domain.PostFilter{
			Source: r.URL.Query().Get("source"),
			Limit:  queryInt(r, "limit", 50),
			Offset: queryInt(r, "offset", 0),
		}
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		posts, err := repoAdapter.ListRecentPosts(r.Context(), since, filter)
		if err != nil {
			http.Error(w, "запрос не выполнен", http.StatusInternalServerError)
			logger.Error().Err(err).Msg("api: выборка постов не удалась")
			return
		}
		writeJSON(w, posts)
	})

	srv.Router.Post("/api/scrape/run", func(w http.ResponseWriter, r *http.Request) {
		if scrapeQueue == nil {
			http.Error(w, "очередь не настроена", http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Sources []string `json:"sources"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		job := domain.ScrapeJob{
			ID:          uuid.NewString(),
			Kind:        domain.ScrapeKindFull,
			Sources:     body.Sources,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.ScrapeCauseManual,
		}
		if err := scrapeQueue.Enqueue(r.Context(), job); err != nil {
			http.Error(w, "постановка задачи не удалась", http.StatusInternalServerError)
			logger.Error().Err(err).Msg("api: постановка задачи не удалась")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"job_id": job.ID})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
