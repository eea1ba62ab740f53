package analyze

import (
	"strings"
	"testing"

	"ai-trend-scraper/internal/domain"
)

func TestAnalyzeEmpty(t *testing.T) {
	a := NewLexicon()
	for _, input := range []string{"", "   ", "!!! ... ???"} {
		res := a.Analyze(input)
		if res.Score != 0 || res.Label != domain.SentimentNeutral || res.Confidence != 0 {
			t.Fatalf("ожидали нейтральный результат для %q, получили %+v", input, res)
		}
	}
}

func TestAnalyzePositive(t *testing.T) {
	a := NewLexicon()
	res := a.Analyze("This AI is absolutely amazing and revolutionary!")
	if res.Score <= 0 {
		t.Fatalf("ожидали положительный score, получили %v", res.Score)
	}
	if res.Label != domain.SentimentPositive && res.Label != domain.SentimentVeryPositive {
		t.Fatalf("ожидали положительную метку, получили %s", res.Label)
	}
}

func TestAnalyzeNegative(t *testing.T) {
	a := NewLexicon()
	res := a.Analyze("Completely useless and broken, total garbage model")
	if res.Score >= 0 {
		t.Fatalf("ожидали отрицательный score, получили %v", res.Score)
	}
	if res.Label != domain.SentimentVeryNegative {
		t.Fatalf("ожидали very_negative, получили %s", res.Label)
	}
}

func TestAnalyzeWeakSignalIsNeutral(t *testing.T) {
	a := NewLexicon()
	// Одно слабое слово в длинном тексте не должно давать уверенной метки.
	text := "good " + strings.Repeat("word ", 100)
	res := a.Analyze(text)
	if res.Label != domain.SentimentNeutral {
		t.Fatalf("ожидали neutral при низкой уверенности, получили %s", res.Label)
	}
	if res.Confidence >= 0.3 {
		t.Fatalf("ожидали уверенность ниже 0.3, получили %v", res.Confidence)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewLexicon()
	first := a.Analyze("ChatGPT prompt engineering is impressive")
	second := a.Analyze("ChatGPT prompt engineering is impressive")
	if first.Score != second.Score || first.Label != second.Label {
		t.Fatalf("ожидали одинаковый результат: %+v против %+v", first, second)
	}
}

func TestMatchTopics(t *testing.T) {
	cases := map[string][]string{
		"New prompt tricks for GPT-4":        {"llm", "prompt-engineering"},
		"Fine-tuning LLaMA on consumer GPUs": {"fine-tuning", "open-models"},
		"Nothing relevant here":              nil,
	}
	for input, expected := range cases {
		topics := MatchTopics(input)
		if len(topics) != len(expected) {
			t.Fatalf("для %q ожидали %v, получили %v", input, expected, topics)
		}
		for i := range expected {
			if topics[i] != expected[i] {
				t.Fatalf("для %q ожидали %v, получили %v", input, expected, topics)
			}
		}
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	prev := 0.0
	for _, ratio := range []float64{0.01, 0.06, 0.12, 0.25} {
		conf := confidenceTier(ratio*100, 100)
		if conf < prev {
			t.Fatalf("уверенность должна не убывать: %v после %v", conf, prev)
		}
		prev = conf
	}
}
