package domain

import (
	"strconv"
	"time"
)

// SentimentLabel — пятибалльная шкала тональности.
type SentimentLabel string

const (
	SentimentVeryNegative SentimentLabel = "very_negative"
	SentimentNegative     SentimentLabel = "negative"
	SentimentNeutral      SentimentLabel = "neutral"
	SentimentPositive     SentimentLabel = "positive"
	SentimentVeryPositive SentimentLabel = "very_positive"
)

// Post представляет запись обсуждения, собранную из источника.
type Post struct {
	ID             int64
	PostID         string
	Source         string
	Title          string
	BodyText       string
	Author         string
	Upvotes        int
	Downvotes      int
	Score          int
	CommentCount   int
	ExternalURL    string
	Permalink      string
	CreatedAt      time.Time
	ScrapedAt      time.Time
	SentimentScore float64
	SentimentLabel SentimentLabel
	Tags           []string
	IsHot          bool
	IsTrending     bool
}

// Comment представляет комментарий к посту с поддержкой вложенности.
type Comment struct {
	ID             int64
	CommentID      string
	PostID         string
	ParentID       string
	Author         string
	BodyText       string
	Upvotes        int
	Downvotes      int
	Score          int
	CreatedAt      time.Time
	SentimentScore float64
	SentimentLabel SentimentLabel
	Depth          int
}

// TrendingTopic — агрегат упоминаний темы по источнику.
type TrendingTopic struct {
	Topic            string
	Source           string
	MentionCount     int
	SentimentAverage float64
	TrendScore       float64
	FirstSeenAt      time.Time
	LastUpdatedAt    time.Time
}

// ScrapeRunRecord — снимок аналитики одного прогона по одному источнику.
// Запись только добавляется и никогда не изменяется.
type ScrapeRunRecord struct {
	RunID             string
	Source            string
	PostsScraped      int
	CommentsScraped   int
	ErrorCount        int
	SuccessRate       float64
	AvgResponseTimeMs float64
	EgressUsed        string
	Timestamp         time.Time
}

// ProxyEndpoint описывает точку выхода. Живёт только в памяти процесса.
type ProxyEndpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr возвращает host:port.
func (p ProxyEndpoint) Addr() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// Analysis — результат детерминированного анализа текста.
type Analysis struct {
	Score      float64
	Label      SentimentLabel
	Confidence float64
	Topics     []string
	Emotions   []string
	WordCount  int
}

// PostFilter ограничивает выборку постов.
type PostFilter struct {
	Source string
	Limit  int
	Offset int
}
