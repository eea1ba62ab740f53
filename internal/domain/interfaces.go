package domain

import (
	"context"
	"time"
)

// PageResult — ответ навигатора на один запрос страницы.
type PageResult struct {
	Body     []byte
	Status   int
	Duration time.Duration
}

// Navigator скрывает способ получения страниц (браузер или HTTP-клиент),
// чтобы конвейер не зависел от транспорта.
type Navigator interface {
	FetchPage(ctx context.Context, url string) (PageResult, error)
	Close()
}

// ProxyPool выдаёт точки выхода и учитывает их здоровье.
type ProxyPool interface {
	Next(ctx context.Context) (ProxyEndpoint, error)
	MarkFailed(endpoint ProxyEndpoint)
	MarkSucceeded(endpoint ProxyEndpoint)
	Stats() ProxyStats
}

// ProxyStats — сводка состояния пула.
type ProxyStats struct {
	Total       int
	Failed      int
	LastRefresh time.Time
}

// PostRepo управляет постами.
type PostRepo interface {
	UpsertPost(ctx context.Context, post Post) error
	ListRecentPosts(ctx context.Context, since time.Time, filter PostFilter) ([]Post, error)
	CountBySource(ctx context.Context, since time.Time) (map[string]int, error)
}

// CommentRepo управляет комментариями.
type CommentRepo interface {
	UpsertComment(ctx context.Context, comment Comment) error
}

// TrendRepo управляет трендовыми темами.
type TrendRepo interface {
	UpsertTrendingTopic(ctx context.Context, topic TrendingTopic) error
	ListTrendingTopics(ctx context.Context, limit int) ([]TrendingTopic, error)
}

// AnalyticsRepo ведёт журнал прогонов.
type AnalyticsRepo interface {
	AppendRunRecord(ctx context.Context, record ScrapeRunRecord) error
	ListRecentRunRecords(ctx context.Context, since time.Time) ([]ScrapeRunRecord, error)
}

// Analyzer — детерминированный анализатор текста.
type Analyzer interface {
	Analyze(text string) Analysis
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
