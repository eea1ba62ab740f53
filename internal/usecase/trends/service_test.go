package trends

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/domain"
)

func TestIsTrending(t *testing.T) {
	th := Thresholds{Score: 50, Comments: 10, MaxAge: 24 * time.Hour}
	cases := []struct {
		name     string
		score    int
		comments int
		age      time.Duration
		expected bool
	}{
		{"горячий свежий пост", 100, 20, time.Hour, true},
		{"низкий score", 10, 20, time.Hour, false},
		{"мало комментариев", 100, 5, time.Hour, false},
		{"слишком старый", 100, 20, 30 * time.Hour, false},
		{"ровно на пороге", 50, 10, time.Hour, false},
	}
	for _, c := range cases {
		if got := th.IsTrending(c.score, c.comments, c.age); got != c.expected {
			t.Fatalf("%s: ожидали %v, получили %v", c.name, c.expected, got)
		}
	}
}

func TestTrendScoreMonotonic(t *testing.T) {
	prev := -1.0
	for mentions := 1; mentions <= 100; mentions *= 2 {
		score := TrendScore(mentions, 0.1)
		if score <= prev {
			t.Fatalf("trend score должен расти с упоминаниями: %v после %v", score, prev)
		}
		prev = score
	}
}

type fakePostRepo struct {
	posts []domain.Post
}

func (f *fakePostRepo) UpsertPost(ctx context.Context, post domain.Post) error { return nil }

func (f *fakePostRepo) ListRecentPosts(ctx context.Context, since time.Time, filter domain.PostFilter) ([]domain.Post, error) {
	return f.posts, nil
}

func (f *fakePostRepo) CountBySource(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeTrendRepo struct {
	topics map[string]domain.TrendingTopic
}

func (f *fakeTrendRepo) UpsertTrendingTopic(ctx context.Context, topic domain.TrendingTopic) error {
	if f.topics == nil {
		f.topics = make(map[string]domain.TrendingTopic)
	}
	f.topics[topic.Topic+"/"+topic.Source] = topic
	return nil
}

func (f *fakeTrendRepo) ListTrendingTopics(ctx context.Context, limit int) ([]domain.TrendingTopic, error) {
	return nil, nil
}

func TestRecompute(t *testing.T) {
	posts := &fakePostRepo{}
	for i := 0; i < 7; i++ {
		posts.posts = append(posts.posts, domain.Post{
			Source:         "artificial",
			Tags:           []string{"llm"},
			SentimentScore: 2,
		})
	}
	// Тема ниже порога упоминаний не должна попасть в выдачу.
	posts.posts = append(posts.posts, domain.Post{Source: "artificial", Tags: []string{"rag"}})

	topics := &fakeTrendRepo{}
	svc := NewService(posts, topics, DefaultThresholds(), zerolog.Nop())
	if err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if len(topics.topics) != 1 {
		t.Fatalf("ожидали одну тему, получили %d", len(topics.topics))
	}
	topic, ok := topics.topics["llm/artificial"]
	if !ok {
		t.Fatalf("ожидали тему llm/artificial")
	}
	if topic.MentionCount != 7 {
		t.Fatalf("ожидали 7 упоминаний, получили %d", topic.MentionCount)
	}
	if math.Abs(topic.TrendScore-0.7) > 1e-9 {
		t.Fatalf("ожидали trend score 0.7, получили %v", topic.TrendScore)
	}
	if topic.SentimentAverage != 2 {
		t.Fatalf("ожидали среднюю тональность 2, получили %v", topic.SentimentAverage)
	}
}
