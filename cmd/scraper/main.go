package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/adapters/proxy"
	"ai-trend-scraper/internal/adapters/ratelimit"
	"ai-trend-scraper/internal/adapters/repo"
	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/cache"
	"ai-trend-scraper/internal/infra/config"
	"ai-trend-scraper/internal/infra/db"
	apphttp "ai-trend-scraper/internal/infra/http"
	applog "ai-trend-scraper/internal/infra/log"
	"ai-trend-scraper/internal/infra/metrics"
	"ai-trend-scraper/internal/infra/queue"
	"ai-trend-scraper/internal/usecase/analyze"
	"ai-trend-scraper/internal/usecase/schedule"
	"ai-trend-scraper/internal/usecase/scrape"
	"ai-trend-scraper/internal/usecase/trends"
)

const usage = `использование:
  scraper scrape once [источник ...]
  scraper scrape continuous
  scraper schedule start
  scraper schedule stop
  scraper schedule status`

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	verb := os.Args[1] + " " + os.Args[2]
	switch verb {
	case "scrape once":
		if err := runOnce(cfg, logger, os.Args[3:]); err != nil {
			logger.Error().Err(err).Msg("scraper: прогон завершился фатально")
			os.Exit(1)
		}
	case "scrape continuous", "schedule start":
		if err := runContinuous(cfg, logger); err != nil {
			logger.Error().Err(err).Msg("scraper: воркер завершился с ошибкой")
			os.Exit(1)
		}
	case "schedule stop":
		if err := adminPost(cfg.Port, "/api/schedule/stop"); err != nil {
			fmt.Fprintf(os.Stderr, "остановка не удалась: %v\n", err)
			os.Exit(1)
		}
	case "schedule status":
		if err := adminStatus(cfg.Port); err != nil {
			fmt.Fprintf(os.Stderr, "статус недоступен: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

type engine struct {
	cfg          config.AppConfig
	log          zerolog.Logger
	repoAdapter  *repo.Postgres
	orchestrator *scrape.Orchestrator
	scrapeQueue  domain.ScrapeQueue
	dedupe       domain.Cache
	closers      []func()
}

func buildEngine(cfg config.AppConfig, logger zerolog.Logger) (*engine, error) {
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	e := &engine{cfg: cfg, log: logger, repoAdapter: repoAdapter}
	e.closers = append(e.closers, pool.Close)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		e.dedupe = cache.NewRedis(redisClient)
		e.closers = append(e.closers, func() { _ = redisClient.Close() })
	}

	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitScrapeQueue(cfg.RabbitURL, cfg.Queues.Scrape)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("очередь RabbitMQ: %w", err)
		}
		e.scrapeQueue = rabbit
		e.closers = append(e.closers, func() { _ = rabbit.Close() })
	case redisClient != nil:
		e.scrapeQueue = queue.NewRedisScrapeQueue(redisClient, cfg.Queues.Scrape)
	default:
		e.scrapeQueue = queue.NewMemoryScrapeQueue(16)
	}

	var proxyPool domain.ProxyPool
	if len(cfg.Proxy.ListURLs) > 0 {
		proxyPool = proxy.NewManager(cfg.Proxy.ListURLs, cfg.Proxy.RefreshInterval, cfg.Proxy.FetchTimeout, logger.With().Str("component", "proxy").Logger())
	}

	limiter := ratelimit.New(cfg.Scrape.MinDelay)
	analyzer := analyze.NewLexicon()
	thresholds := trends.Thresholds{
		Score:       cfg.Trends.ScoreThreshold,
		Comments:    cfg.Trends.CommentsThreshold,
		MaxAge:      cfg.Trends.MaxAge,
		MinMentions: cfg.Trends.MinMentions,
		Weight:      cfg.Trends.Weight,
	}
	trendSvc := trends.NewService(repoAdapter, repoAdapter, thresholds, logger.With().Str("component", "trends").Logger())

	e.orchestrator = scrape.NewOrchestrator(scrape.Config{
		Sources:        cfg.Sources,
		ListingLimit:   cfg.Scrape.ListingLimit,
		MaxRetries:     cfg.Scrape.MaxRetries,
		RetryBackoff:   cfg.Scrape.RetryBackoff,
		RandomDelayMin: cfg.Scrape.RandomDelayMin,
		RandomDelayMax: cfg.Scrape.RandomDelayMax,
		RequestTimeout: cfg.Scrape.RequestTimeout,
	}, proxyPool, limiter, analyzer, repoAdapter, repoAdapter, repoAdapter, trendSvc, thresholds, scrape.DefaultSessionFactory(), logger.With().Str("component", "scrape").Logger())
	return e, nil
}

func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// runOnce выполняет один прогон и возвращает ошибку только при фатальном
// сбое запуска сессии: пропуски источников и элементов не влияют на код
// выхода.
func runOnce(cfg config.AppConfig, logger zerolog.Logger, sources []string) error {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	e, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := domain.ScrapeJob{
		Kind:        domain.ScrapeKindFull,
		Sources:     sources,
		RequestedAt: time.Now().UTC(),
		Cause:       domain.ScrapeCauseManual,
	}
	return e.orchestrator.Run(ctx, job)
}

func runContinuous(cfg config.AppConfig, logger zerolog.Logger) error {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	e, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	scheduler := schedule.NewScheduler(e.scrapeQueue, e.dedupe, e.orchestrator, schedule.Intervals{
		Full:     cfg.Schedule.Full,
		Comments: cfg.Schedule.Comments,
		Trends:   cfg.Schedule.Trends,
		Hot:      cfg.Schedule.Hot,
	}, logger.With().Str("component", "schedule").Logger())
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	srv := apphttp.NewServer(logger.With().Str("component", "admin").Logger())
	registerAdmin(srv, scheduler, stop)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("scraper: админ-сервер остановлен")
		}
	}()

	logger.Info().Msg("scraper: воркер запущен")
	<-ctx.Done()
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("scraper: воркер остановлен")
	return nil
}

// registerAdmin вешает триггерный интерфейс на HTTP: ручной запуск,
// статус и остановка расписания.
func registerAdmin(srv *apphttp.Server, scheduler *schedule.Scheduler, stop context.CancelFunc) {
	srv.Router.Post("/api/scrape/run", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Sources []string `json:"sources"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if err := scheduler.Enqueue(r.Context(), domain.ScrapeKindFull, body.Sources, domain.ScrapeCauseManual); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	srv.Router.Get("/api/schedule/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scheduler.Status())
	})
	srv.Router.Post("/api/schedule/stop", func(w http.ResponseWriter, r *http.Request) {
		go stop()
		w.WriteHeader(http.StatusAccepted)
	})
}

func adminPost(port int, path string) error {
	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d%s", port, path), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("статус %d", resp.StatusCode)
	}
	return nil
}

func adminStatus(port int) error {
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/schedule/status", port))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
