package scrape

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/adapters/navigator"
	"ai-trend-scraper/internal/adapters/ratelimit"
	"ai-trend-scraper/internal/adapters/reddit"
	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
	"ai-trend-scraper/internal/usecase/trends"
)

// Config — неизменяемые параметры конвейера.
type Config struct {
	Sources        []string
	ListingLimit   int
	MaxRetries     int
	RetryBackoff   time.Duration
	RandomDelayMin time.Duration
	RandomDelayMax time.Duration
	RequestTimeout time.Duration
}

// SessionFactory создаёт навигационную сессию через точку выхода и
// возвращает метку egress для аналитики. Подменяется в тестах.
type SessionFactory func(endpoint domain.ProxyEndpoint, timeout time.Duration) (domain.Navigator, string, error)

// Orchestrator ведёт полный цикл: запуск сессии, обход источников,
// извлечение, анализ, сохранение и агрегация. Единовременно активен
// не более чем один прогон.
type Orchestrator struct {
	cfg        Config
	proxies    domain.ProxyPool
	limiter    *ratelimit.Limiter
	analyzer   domain.Analyzer
	posts      domain.PostRepo
	comments   domain.CommentRepo
	analytics  domain.AnalyticsRepo
	trends     *trends.Service
	thresholds trends.Thresholds
	factory    SessionFactory
	log        zerolog.Logger
	now        func() time.Time

	running atomic.Bool
}

// NewOrchestrator создаёт оркестратор. Состояние прогона живёт в полях
// экземпляра, а не в пакете: несколько экземпляров не мешают друг другу.
func NewOrchestrator(cfg Config, proxies domain.ProxyPool, limiter *ratelimit.Limiter, analyzer domain.Analyzer, posts domain.PostRepo, comments domain.CommentRepo, analytics domain.AnalyticsRepo, trendSvc *trends.Service, thresholds trends.Thresholds, factory SessionFactory, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		proxies:    proxies,
		limiter:    limiter,
		analyzer:   analyzer,
		posts:      posts,
		comments:   comments,
		analytics:  analytics,
		trends:     trendSvc,
		thresholds: thresholds,
		factory:    factory,
		log:        logger,
		now:        time.Now,
	}
}

// IsRunning сообщает, идёт ли прогон.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

type sourceStats struct {
	posts       int
	comments    int
	errors      int
	requests    int
	failures    int
	responseSum time.Duration
	responses   int
}

// Run выполняет один прогон указанного вида. Повторный запуск во время
// идущего прогона — no-op с предупреждением, не ошибка. Фатальна только
// невозможность поднять сессию; всё остальное пропускает единицу работы.
func (o *Orchestrator) Run(ctx context.Context, job domain.ScrapeJob) error {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Warn().Str("kind", string(job.Kind)).Msg("scrape: прогон уже идёт, запуск пропущен")
		metrics.ScrapeRunsSkipped.Inc()
		return nil
	}
	defer o.running.Store(false)

	runStart := o.now()
	defer func() {
		metrics.ScrapeRunSeconds.Observe(time.Since(runStart).Seconds())
	}()

	runID := job.ID
	if runID == "" {
		runID = uuid.NewString()
	}
	runLog := o.log.With().Str("run_id", runID).Str("kind", string(job.Kind)).Logger()

	if job.Kind == domain.ScrapeKindTrends {
		return o.trends.Recompute(ctx)
	}

	sources := job.Sources
	if len(sources) == 0 {
		sources = o.cfg.Sources
	}

	// Launching: точка выхода и сессия. Единственный фатальный этап.
	var endpoint domain.ProxyEndpoint
	if o.proxies != nil {
		ep, err := o.proxies.Next(ctx)
		if err != nil {
			runLog.Warn().Err(err).Msg("scrape: прокси недоступны, идём напрямую")
		} else {
			endpoint = ep
		}
	}
	sess, egress, err := o.factory(endpoint, o.cfg.RequestTimeout)
	if err != nil {
		runLog.Error().Err(err).Msg("scrape: не удалось поднять сессию")
		return fmt.Errorf("запуск сессии: %w", err)
	}
	defer sess.Close()
	runLog.Info().Str("egress", egress).Int("sources", len(sources)).Msg("scrape: прогон начат")

	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			runLog.Info().Err(err).Msg("scrape: прогон прерван")
			return err
		}
		if i > 0 {
			if err := o.limiter.RandomDelay(ctx, o.cfg.RandomDelayMin, o.cfg.RandomDelayMax); err != nil {
				return err
			}
		}
		stats := o.scrapeSource(ctx, runLog, sess, endpoint, job.Kind, source)
		o.appendRunRecord(ctx, runLog, runID, source, egress, stats)
	}

	// Aggregating: пересчёт трендов по свежему окну.
	if err := o.trends.Recompute(ctx); err != nil {
		runLog.Error().Err(err).Msg("scrape: пересчёт трендов не удался")
	}
	runLog.Info().Dur("took", time.Since(runStart)).Msg("scrape: прогон завершён")
	return nil
}

func (o *Orchestrator) scrapeSource(ctx context.Context, runLog zerolog.Logger, sess domain.Navigator, endpoint domain.ProxyEndpoint, kind domain.ScrapeJobKind, source string) sourceStats {
	var stats sourceStats
	srcLog := runLog.With().Str("source", source).Logger()

	sort := reddit.SortNew
	if kind == domain.ScrapeKindHot {
		sort = reddit.SortHot
	}

	// Navigating.
	page, err := o.fetchWithRetry(ctx, srcLog, sess, endpoint, reddit.ListingURL(source, sort, o.cfg.ListingLimit), &stats)
	if err != nil {
		srcLog.Error().Err(err).Msg("scrape: источник пропущен после всех попыток")
		stats.errors++
		metrics.ScrapeErrors.Inc()
		return stats
	}

	// Extracting: битые элементы деградируют до пропуска, не до падения.
	posts, skipped := reddit.ParseListing(page.Body, source)
	if skipped > 0 {
		srcLog.Warn().Int("skipped", skipped).Msg("scrape: часть элементов листинга не разобрана")
		stats.errors += skipped
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return stats
		}
		// Analyzing.
		analysis := o.analyzer.Analyze(post.Title + " " + post.BodyText)
		post.SentimentScore = analysis.Score
		post.SentimentLabel = analysis.Label
		post.Tags = analysis.Topics
		age := o.now().UTC().Sub(post.CreatedAt)
		post.IsTrending = o.thresholds.IsTrending(post.Score, post.CommentCount, age)
		if !post.IsHot {
			post.IsHot = post.Score > o.thresholds.Score*2
		}
		post.ScrapedAt = o.now().UTC()

		// Persisting: ошибка записи оставляет пост несохранённым в этом
		// прогоне, но не останавливает конвейер.
		if err := o.posts.UpsertPost(ctx, post); err != nil {
			srcLog.Error().Err(err).Str("post", post.PostID).Msg("scrape: пост не сохранён")
			stats.errors++
			metrics.ScrapeErrors.Inc()
			continue
		}
		stats.posts++
		metrics.ScrapedPostsTotal.WithLabelValues(source).Inc()

		if o.wantComments(kind, post) {
			saved := o.scrapeComments(ctx, srcLog, sess, endpoint, source, post.PostID, &stats)
			stats.comments += saved
		}
	}
	srcLog.Info().Int("posts", stats.posts).Int("comments", stats.comments).Int("errors", stats.errors).Msg("scrape: источник обработан")
	return stats
}

func (o *Orchestrator) wantComments(kind domain.ScrapeJobKind, post domain.Post) bool {
	if post.CommentCount <= 0 {
		return false
	}
	if kind == domain.ScrapeKindComments {
		return true
	}
	return post.Score > o.thresholds.Score || post.IsTrending
}

// scrapeComments — вложенный подконвейер по одному посту: те же этапы
// навигации, извлечения, анализа и сохранения.
func (o *Orchestrator) scrapeComments(ctx context.Context, srcLog zerolog.Logger, sess domain.Navigator, endpoint domain.ProxyEndpoint, source, postID string, stats *sourceStats) int {
	if err := o.limiter.RandomDelay(ctx, o.cfg.RandomDelayMin, o.cfg.RandomDelayMax); err != nil {
		return 0
	}
	page, err := o.fetchWithRetry(ctx, srcLog, sess, endpoint, reddit.CommentsURL(source, postID), stats)
	if err != nil {
		srcLog.Warn().Err(err).Str("post", postID).Msg("scrape: комментарии пропущены")
		stats.errors++
		return 0
	}
	comments, skipped := reddit.ParseComments(page.Body, postID)
	stats.errors += skipped

	saved := 0
	for _, comment := range comments {
		if err := ctx.Err(); err != nil {
			return saved
		}
		analysis := o.analyzer.Analyze(comment.BodyText)
		comment.SentimentScore = analysis.Score
		comment.SentimentLabel = analysis.Label
		if err := o.comments.UpsertComment(ctx, comment); err != nil {
			srcLog.Error().Err(err).Str("comment", comment.CommentID).Msg("scrape: комментарий не сохранён")
			stats.errors++
			continue
		}
		saved++
		metrics.ScrapedCommentsTotal.WithLabelValues(source).Inc()
	}
	return saved
}

// fetchWithRetry выдерживает паузу лимитера и повторяет навигацию с
// нарастающей задержкой до потолка попыток.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, srcLog zerolog.Logger, sess domain.Navigator, endpoint domain.ProxyEndpoint, url string, stats *sourceStats) (domain.PageResult, error) {
	attempts := o.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := o.limiter.Acquire(ctx); err != nil {
			return domain.PageResult{}, err
		}
		stats.requests++
		page, err := sess.FetchPage(ctx, url)
		if page.Duration > 0 {
			stats.responseSum += page.Duration
			stats.responses++
		}
		if err == nil {
			if o.proxies != nil && endpoint.Host != "" {
				o.proxies.MarkSucceeded(endpoint)
			}
			return page, nil
		}
		stats.failures++
		lastErr = err
		if o.proxies != nil && endpoint.Host != "" && page.Status == 0 {
			// Сетевая ошибка без ответа: виновата точка выхода.
			o.proxies.MarkFailed(endpoint)
		}
		srcLog.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("scrape: навигация не удалась")
		if attempt < attempts {
			backoff := o.cfg.RetryBackoff * time.Duration(attempt)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.PageResult{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return domain.PageResult{}, lastErr
}

func (o *Orchestrator) appendRunRecord(ctx context.Context, runLog zerolog.Logger, runID, source, egress string, stats sourceStats) {
	successRate := 1.0
	if stats.requests > 0 {
		successRate = float64(stats.requests-stats.failures) / float64(stats.requests)
	}
	avgMs := 0.0
	if stats.responses > 0 {
		avgMs = float64(stats.responseSum.Milliseconds()) / float64(stats.responses)
	}
	record := domain.ScrapeRunRecord{
		RunID:             runID,
		Source:            source,
		PostsScraped:      stats.posts,
		CommentsScraped:   stats.comments,
		ErrorCount:        stats.errors,
		SuccessRate:       successRate,
		AvgResponseTimeMs: avgMs,
		EgressUsed:        egress,
		Timestamp:         o.now().UTC(),
	}
	if err := o.analytics.AppendRunRecord(ctx, record); err != nil {
		runLog.Error().Err(err).Str("source", source).Msg("scrape: запись аналитики не сохранена")
	}
}

// DefaultSessionFactory создаёт реальную HTTP-сессию.
func DefaultSessionFactory() SessionFactory {
	return func(endpoint domain.ProxyEndpoint, timeout time.Duration) (domain.Navigator, string, error) {
		sess, err := navigator.NewSession(endpoint, timeout)
		if err != nil {
			return nil, "", err
		}
		return sess, sess.Egress(), nil
	}
}
