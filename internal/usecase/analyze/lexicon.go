package analyze

// Общий словарь тональности: вес ±1.
var genericLexicon = map[string]float64{
	"good": 1, "great": 1, "nice": 1, "love": 1, "like": 1,
	"best": 1, "better": 1, "useful": 1, "helpful": 1, "interesting": 1,
	"cool": 1, "solid": 1, "works": 1, "happy": 1, "win": 1,
	"easy": 1, "fast": 1, "clean": 1, "clear": 1, "right": 1,
	"bad": -1, "worse": -1, "worst": -1, "hate": -1, "awful": -1,
	"wrong": -1, "slow": -1, "hard": -1, "ugly": -1, "sad": -1,
	"problem": -1, "issue": -1, "bug": -1, "fail": -1, "fails": -1,
	"poor": -1, "annoying": -1, "expensive": -1, "confusing": -1, "mess": -1,
}

// Доменный словарь ИИ-сообществ: вес ±2, перекрывает общий.
var domainLexicon = map[string]float64{
	// положительные
	"amazing": 2, "revolutionary": 2, "breakthrough": 2, "impressive": 2,
	"groundbreaking": 2, "incredible": 2, "powerful": 2, "innovative": 2,
	"sota": 2, "state-of-the-art": 2, "outperforms": 2, "game-changer": 2,
	"mindblowing": 2, "excellent": 2, "superior": 2, "efficient": 2,
	"promising": 2, "remarkable": 2, "seamless": 2, "robust": 2,
	"accurate": 2, "versatile": 2,
	// отрицательные
	"hallucination": -2, "hallucinates": -2, "overhyped": -2, "useless": -2,
	"garbage": -2, "broken": -2, "unreliable": -2, "disappointing": -2,
	"scam": -2, "hype": -2, "vaporware": -2, "bloated": -2,
	"censored": -2, "lobotomized": -2, "degraded": -2, "nerfed": -2,
	"unusable": -2, "dangerous": -2, "dystopian": -2, "plagiarism": -2,
	"slop": -2, "enshittification": -2,
}

// Таблица ключевое слово → тема. Совпадение ищется по подстроке
// нормализованного текста.
var topicKeywords = map[string]string{
	"prompt":      "prompt-engineering",
	"gpt":         "llm",
	"chatgpt":     "llm",
	"claude":      "llm",
	"gemini":      "llm",
	"llm":         "llm",
	"llama":       "open-models",
	"mistral":     "open-models",
	"open source": "open-source",
	"open-source": "open-source",
	"agent":       "agents",
	"rag":         "rag",
	"embedding":   "rag",
	"fine-tun":    "fine-tuning",
	"finetun":     "fine-tuning",
	"training":    "training",
	"inference":   "inference",
	"quantiz":     "quantization",
	"benchmark":   "benchmarks",
	"multimodal":  "multimodal",
	"diffusion":   "image-generation",
	"stable diffusion": "image-generation",
	"hallucinat":  "reliability",
	"alignment":   "ai-safety",
	"safety":      "ai-safety",
	"regulation":  "ai-policy",
	"copyright":   "ai-policy",
	"agi":         "agi",
	"robot":       "robotics",
	"voice":       "speech",
	"context window": "llm",
}

// Списки ключевых слов по эмоциям.
var emotionKeywords = map[string][]string{
	"excitement":  {"amazing", "incredible", "wow", "excited", "finally", "mindblowing", "can't wait", "insane"},
	"frustration": {"annoying", "frustrating", "broken", "useless", "tired of", "sick of", "nerfed", "degraded"},
	"fear":        {"scary", "dangerous", "afraid", "worried", "terrifying", "dystopian", "threat", "doom"},
	"curiosity":   {"wonder", "curious", "interesting", "how does", "why does", "what if", "question"},
	"skepticism":  {"doubt", "skeptical", "overhyped", "hype", "scam", "not convinced", "suspicious"},
}
