package trends

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
)

// Thresholds — настраиваемые пороги трендовости. Значения по умолчанию
// намеренно сохранены как эвристика без глубокого смысла: формула —
// точка расширения, а не результат моделирования.
type Thresholds struct {
	Score       int
	Comments    int
	MaxAge      time.Duration
	MinMentions int
	Weight      float64
}

// DefaultThresholds возвращает пороги по умолчанию.
func DefaultThresholds() Thresholds {
	return Thresholds{Score: 50, Comments: 10, MaxAge: 24 * time.Hour, MinMentions: 5, Weight: 0.1}
}

// IsTrending — поэлементная эвристика, применяется при сохранении поста.
func (t Thresholds) IsTrending(score, commentCount int, age time.Duration) bool {
	return score > t.Score && commentCount > t.Comments && age >= 0 && age < t.MaxAge
}

// Service пересчитывает трендовые темы по окну последних постов.
type Service struct {
	posts      domain.PostRepo
	topics     domain.TrendRepo
	thresholds Thresholds
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис трендов.
func NewService(posts domain.PostRepo, topics domain.TrendRepo, thresholds Thresholds, logger zerolog.Logger) *Service {
	return &Service{posts: posts, topics: topics, thresholds: thresholds, log: logger, now: time.Now}
}

type tally struct {
	mentions     int
	sentimentSum float64
}

// Recompute собирает посты за окно, считает упоминания тегов по источникам
// и обновляет строки trending_topics для тегов выше порога упоминаний.
func (s *Service) Recompute(ctx context.Context) error {
	since := s.now().UTC().Add(-s.thresholds.MaxAge)
	posts, err := s.posts.ListRecentPosts(ctx, since, domain.PostFilter{Limit: 10000})
	if err != nil {
		return fmt.Errorf("получение постов окна: %w", err)
	}

	counts := make(map[[2]string]*tally)
	for _, post := range posts {
		for _, tag := range post.Tags {
			key := [2]string{tag, post.Source}
			entry, ok := counts[key]
			if !ok {
				entry = &tally{}
				counts[key] = entry
			}
			entry.mentions++
			entry.sentimentSum += post.SentimentScore
		}
	}

	updated := 0
	for key, entry := range counts {
		if entry.mentions <= s.thresholds.MinMentions {
			continue
		}
		topic := domain.TrendingTopic{
			Topic:            key[0],
			Source:           key[1],
			MentionCount:     entry.mentions,
			SentimentAverage: entry.sentimentSum / float64(entry.mentions),
			TrendScore:       TrendScore(entry.mentions, s.thresholds.Weight),
		}
		if err := s.topics.UpsertTrendingTopic(ctx, topic); err != nil {
			s.log.Error().Err(err).Str("topic", topic.Topic).Str("source", topic.Source).Msg("trends: не удалось сохранить тему")
			continue
		}
		updated++
	}
	metrics.TrendingTopicsTotal.Set(float64(updated))
	s.log.Info().Int("topics", updated).Int("posts", len(posts)).Msg("trends: пересчёт завершён")
	return nil
}

// TrendScore — монотонная по упоминаниям оценка темы.
func TrendScore(mentions int, weight float64) float64 {
	return float64(mentions) * weight
}
