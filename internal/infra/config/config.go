package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов. Загружается один раз при старте
// и дальше передаётся по значению — сервисы не читают окружение на ходу.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Sources []string `envconfig:"SCRAPE_SOURCES" default:"artificial,MachineLearning,LocalLLaMA,singularity,OpenAI"`

	Scrape struct {
		MinDelay       time.Duration `envconfig:"SCRAPE_MIN_DELAY" default:"2s"`
		RandomDelayMin time.Duration `envconfig:"SCRAPE_RANDOM_DELAY_MIN" default:"1s"`
		RandomDelayMax time.Duration `envconfig:"SCRAPE_RANDOM_DELAY_MAX" default:"4s"`
		MaxRetries     int           `envconfig:"SCRAPE_MAX_RETRIES" default:"3"`
		RetryBackoff   time.Duration `envconfig:"SCRAPE_RETRY_BACKOFF" default:"5s"`
		ListingLimit   int           `envconfig:"SCRAPE_LISTING_LIMIT" default:"50"`
		RequestTimeout time.Duration `envconfig:"SCRAPE_REQUEST_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Trends struct {
		ScoreThreshold    int           `envconfig:"TREND_SCORE_THRESHOLD" default:"50"`
		CommentsThreshold int           `envconfig:"TREND_COMMENTS_THRESHOLD" default:"10"`
		MaxAge            time.Duration `envconfig:"TREND_MAX_AGE" default:"24h"`
		MinMentions       int           `envconfig:"TREND_MIN_MENTIONS" default:"5"`
		Weight            float64       `envconfig:"TREND_WEIGHT" default:"0.1"`
	} `envconfig:""`

	Proxy struct {
		ListURLs        []string      `envconfig:"PROXY_LIST_URLS"`
		RefreshInterval time.Duration `envconfig:"PROXY_REFRESH_INTERVAL" default:"30m"`
		FetchTimeout    time.Duration `envconfig:"PROXY_FETCH_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Schedule struct {
		Full     time.Duration `envconfig:"SCHEDULE_FULL" default:"6h"`
		Comments time.Duration `envconfig:"SCHEDULE_COMMENTS" default:"3h"`
		Trends   time.Duration `envconfig:"SCHEDULE_TRENDS" default:"1h"`
		Hot      time.Duration `envconfig:"SCHEDULE_HOT" default:"30m"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Scrape string `envconfig:"SCRAPE_QUEUE_KEY" default:"scrape_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
