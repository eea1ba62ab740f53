package analyze

import (
	"sort"
	"strings"
	"unicode"

	"ai-trend-scraper/internal/domain"
)

// Lexicon реализует детерминированный анализ текста по словарям: без сети,
// без внешнего состояния, одинаковый вход даёт одинаковый выход.
type Lexicon struct{}

var _ domain.Analyzer = (*Lexicon)(nil)

// NewLexicon создаёт анализатор.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Analyze оценивает тональность, темы и эмоции текста. Пустой или
// нетекстовый вход возвращает нейтральный результат без ошибки.
func (l *Lexicon) Analyze(text string) domain.Analysis {
	normalized := normalize(text)
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return domain.Analysis{Label: domain.SentimentNeutral}
	}

	var score float64
	for _, word := range words {
		if w, ok := domainLexicon[word]; ok {
			score += w
			continue
		}
		if w, ok := genericLexicon[word]; ok {
			score += w
		}
	}

	confidence := confidenceTier(score, len(words))
	return domain.Analysis{
		Score:      score,
		Label:      label(score, confidence),
		Confidence: confidence,
		Topics:     MatchTopics(normalized),
		Emotions:   matchEmotions(normalized),
		WordCount:  len(words),
	}
}

// MatchTopics возвращает темы, чьи ключевые слова встречаются в тексте.
// Используется и для тегирования постов при сохранении.
func MatchTopics(text string) []string {
	normalized := normalize(text)
	seen := make(map[string]struct{})
	for keyword, topic := range topicKeywords {
		if strings.Contains(normalized, keyword) {
			seen[topic] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func matchEmotions(text string) []string {
	var emotions []string
	for emotion, keywords := range emotionKeywords {
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				emotions = append(emotions, emotion)
				break
			}
		}
	}
	sort.Strings(emotions)
	return emotions
}

// confidenceTier — монотонная функция |score|/wordCount, четыре ступени.
func confidenceTier(score float64, wordCount int) float64 {
	if score == 0 || wordCount == 0 {
		return 0
	}
	ratio := abs(score) / float64(wordCount)
	switch {
	case ratio >= 0.2:
		return 0.9
	case ratio >= 0.1:
		return 0.7
	case ratio >= 0.05:
		return 0.5
	default:
		return 0.2
	}
}

func label(score, confidence float64) domain.SentimentLabel {
	if confidence < 0.3 {
		return domain.SentimentNeutral
	}
	switch {
	case score <= -2:
		return domain.SentimentVeryNegative
	case score < 0:
		return domain.SentimentNegative
	case score >= 2:
		return domain.SentimentVeryPositive
	case score > 0:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
