package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo      = (*Postgres)(nil)
	_ domain.CommentRepo   = (*Postgres)(nil)
	_ domain.TrendRepo     = (*Postgres)(nil)
	_ domain.AnalyticsRepo = (*Postgres)(nil)
)

// ErrPostNotFound возвращается при записи комментария к несуществующему посту.
var ErrPostNotFound = errors.New("пост для комментария не найден")

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	post_id TEXT NOT NULL,
	source TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body_text TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	upvotes INT NOT NULL DEFAULT 0,
	downvotes INT NOT NULL DEFAULT 0,
	score INT NOT NULL DEFAULT 0,
	comment_count INT NOT NULL DEFAULT 0,
	external_url TEXT NOT NULL DEFAULT '',
	permalink TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_label TEXT NOT NULL DEFAULT 'neutral',
	tags TEXT[] NOT NULL DEFAULT '{}',
	is_hot BOOLEAN NOT NULL DEFAULT FALSE,
	is_trending BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (source, post_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_source ON posts (source)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_score ON posts (score)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_is_trending ON posts (is_trending)`,
	`CREATE TABLE IF NOT EXISTS comments (
	id BIGSERIAL PRIMARY KEY,
	comment_id TEXT NOT NULL UNIQUE,
	post_id TEXT NOT NULL,
	parent_id TEXT,
	author TEXT NOT NULL DEFAULT '',
	body_text TEXT NOT NULL DEFAULT '',
	upvotes INT NOT NULL DEFAULT 0,
	downvotes INT NOT NULL DEFAULT 0,
	score INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_label TEXT NOT NULL DEFAULT 'neutral',
	depth INT NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id)`,
	`CREATE TABLE IF NOT EXISTS trending_topics (
	topic TEXT NOT NULL,
	source TEXT NOT NULL,
	mention_count INT NOT NULL DEFAULT 0,
	sentiment_average DOUBLE PRECISION NOT NULL DEFAULT 0,
	trend_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (topic, source)
)`,
	`CREATE TABLE IF NOT EXISTS scrape_analytics (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	posts_scraped INT NOT NULL DEFAULT 0,
	comments_scraped INT NOT NULL DEFAULT 0,
	error_count INT NOT NULL DEFAULT 0,
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_response_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	egress_used TEXT NOT NULL DEFAULT '',
	ts TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_analytics_ts ON scrape_analytics (ts)`,
}

// Migrate создаёт недостающие таблицы и индексы. Повторный вызов безопасен
// и не трогает существующие данные.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	for _, stmt := range migrations {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "migrate", "schema", start, err)
		if err != nil {
			return fmt.Errorf("миграция схемы: %w", err)
		}
	}
	return nil
}

// UpsertPost реализует domain.PostRepo. Повторный сбор того же поста
// обновляет изменяемые поля, не создавая дубликата.
func (p *Postgres) UpsertPost(ctx context.Context, post domain.Post) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if post.ScrapedAt.IsZero() {
		post.ScrapedAt = time.Now().UTC()
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO posts (post_id, source, title, body_text, author, upvotes, downvotes, score, comment_count, external_url, permalink, created_at, scraped_at, sentiment_score, sentiment_label, tags, is_hot, is_trending)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (source, post_id) DO UPDATE SET
	title = EXCLUDED.title,
	body_text = EXCLUDED.body_text,
	upvotes = EXCLUDED.upvotes,
	downvotes = EXCLUDED.downvotes,
	score = EXCLUDED.score,
	comment_count = EXCLUDED.comment_count,
	scraped_at = EXCLUDED.scraped_at,
	sentiment_score = EXCLUDED.sentiment_score,
	sentiment_label = EXCLUDED.sentiment_label,
	tags = EXCLUDED.tags,
	is_hot = EXCLUDED.is_hot,
	is_trending = EXCLUDED.is_trending
`, post.PostID, post.Source, post.Title, post.BodyText, post.Author, post.Upvotes, post.Downvotes, post.Score, post.CommentCount, post.ExternalURL, post.Permalink, post.CreatedAt, post.ScrapedAt, post.SentimentScore, string(post.SentimentLabel), tags, post.IsHot, post.IsTrending)
	metrics.ObserveNetworkRequest("postgres", "posts_upsert", "posts", start, err)
	return err
}

// UpsertComment реализует domain.CommentRepo. Перед записью проверяет,
// что пост комментария существует.
func (p *Postgres) UpsertComment(ctx context.Context, comment domain.Comment) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE post_id=$1)`, comment.PostID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "posts_exists", "posts", start, err)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrPostNotFound, comment.PostID)
	}

	var parent any
	if comment.ParentID != "" {
		parent = comment.ParentID
	}

	start = time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO comments (comment_id, post_id, parent_id, author, body_text, upvotes, downvotes, score, created_at, sentiment_score, sentiment_label, depth)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (comment_id) DO UPDATE SET
	body_text = EXCLUDED.body_text,
	upvotes = EXCLUDED.upvotes,
	downvotes = EXCLUDED.downvotes,
	score = EXCLUDED.score,
	sentiment_score = EXCLUDED.sentiment_score,
	sentiment_label = EXCLUDED.sentiment_label,
	depth = EXCLUDED.depth
`, comment.CommentID, comment.PostID, parent, comment.Author, comment.BodyText, comment.Upvotes, comment.Downvotes, comment.Score, comment.CreatedAt, comment.SentimentScore, string(comment.SentimentLabel), comment.Depth)
	metrics.ObserveNetworkRequest("postgres", "comments_upsert", "comments", start, err)
	return err
}

// UpsertTrendingTopic реализует domain.TrendRepo.
func (p *Postgres) UpsertTrendingTopic(ctx context.Context, topic domain.TrendingTopic) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO trending_topics (topic, source, mention_count, sentiment_average, trend_score, first_seen_at, last_updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
ON CONFLICT (topic, source) DO UPDATE SET
	mention_count = EXCLUDED.mention_count,
	sentiment_average = EXCLUDED.sentiment_average,
	trend_score = EXCLUDED.trend_score,
	last_updated_at = now()
`, topic.Topic, topic.Source, topic.MentionCount, topic.SentimentAverage, topic.TrendScore)
	metrics.ObserveNetworkRequest("postgres", "trending_topics_upsert", "trending_topics", start, err)
	return err
}

// ListTrendingTopics возвращает темы по убыванию trend_score.
func (p *Postgres) ListTrendingTopics(ctx context.Context, limit int) ([]domain.TrendingTopic, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT topic, source, mention_count, sentiment_average, trend_score, first_seen_at, last_updated_at
FROM trending_topics
ORDER BY trend_score DESC, mention_count DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "trending_topics_list", "trending_topics", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []domain.TrendingTopic
	for rows.Next() {
		var t domain.TrendingTopic
		if err := rows.Scan(&t.Topic, &t.Source, &t.MentionCount, &t.SentimentAverage, &t.TrendScore, &t.FirstSeenAt, &t.LastUpdatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// AppendRunRecord добавляет запись аналитики прогона.
func (p *Postgres) AppendRunRecord(ctx context.Context, record domain.ScrapeRunRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO scrape_analytics (run_id, source, posts_scraped, comments_scraped, error_count, success_rate, avg_response_time_ms, egress_used, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, record.RunID, record.Source, record.PostsScraped, record.CommentsScraped, record.ErrorCount, record.SuccessRate, record.AvgResponseTimeMs, record.EgressUsed, record.Timestamp)
	metrics.ObserveNetworkRequest("postgres", "scrape_analytics_insert", "scrape_analytics", start, err)
	return err
}

// ListRecentRunRecords возвращает аналитику прогонов за период.
func (p *Postgres) ListRecentRunRecords(ctx context.Context, since time.Time) ([]domain.ScrapeRunRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT run_id, source, posts_scraped, comments_scraped, error_count, success_rate, avg_response_time_ms, egress_used, ts
FROM scrape_analytics
WHERE ts >= $1
ORDER BY ts DESC
`, since)
	metrics.ObserveNetworkRequest("postgres", "scrape_analytics_list", "scrape_analytics", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ScrapeRunRecord
	for rows.Next() {
		var r domain.ScrapeRunRecord
		if err := rows.Scan(&r.RunID, &r.Source, &r.PostsScraped, &r.CommentsScraped, &r.ErrorCount, &r.SuccessRate, &r.AvgResponseTimeMs, &r.EgressUsed, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRecentPosts возвращает посты за период с учётом фильтра.
func (p *Postgres) ListRecentPosts(ctx context.Context, since time.Time, filter domain.PostFilter) ([]domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
SELECT id, post_id, source, title, body_text, author, upvotes, downvotes, score, comment_count, external_url, permalink, created_at, scraped_at, sentiment_score, sentiment_label, tags, is_hot, is_trending
FROM posts
WHERE created_at >= $1`
	args := []any{since}
	if filter.Source != "" {
		query += ` AND source = $2`
		args = append(args, filter.Source)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, filter.Offset)

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "posts_list_recent", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// CountBySource возвращает количество постов по источникам за период.
func (p *Postgres) CountBySource(ctx context.Context, since time.Time) (map[string]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT source, count(*) FROM posts WHERE created_at >= $1 GROUP BY source
`, since)
	metrics.ObserveNetworkRequest("postgres", "posts_count_by_source", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

func scanPost(rows pgx.Rows) (domain.Post, error) {
	var (
		post  domain.Post
		label string
	)
	err := rows.Scan(&post.ID, &post.PostID, &post.Source, &post.Title, &post.BodyText, &post.Author, &post.Upvotes, &post.Downvotes, &post.Score, &post.CommentCount, &post.ExternalURL, &post.Permalink, &post.CreatedAt, &post.ScrapedAt, &post.SentimentScore, &label, &post.Tags, &post.IsHot, &post.IsTrending)
	if err != nil {
		return domain.Post{}, err
	}
	post.SentimentLabel = domain.SentimentLabel(label)
	return post, nil
}
