package navigator

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
)

// Пул user-agent для маскировки сессии. Один агент выбирается на сессию,
// а не на запрос: источники замечают смену агента внутри одной сессии.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
}

const maxBodySize = 4 << 20

// Session реализует domain.Navigator поверх http.Client. Вся навигация
// конвейера идёт через одну сессию: один прокси, один user-agent.
type Session struct {
	client    *http.Client
	userAgent string
	egress    string
}

var _ domain.Navigator = (*Session)(nil)

// NewSession создаёт сессию через указанную точку выхода. Пустой endpoint
// означает прямое соединение (локальная разработка).
func NewSession(endpoint domain.ProxyEndpoint, timeout time.Duration) (*Session, error) {
	transport := &http.Transport{
		MaxIdleConns:    4,
		IdleConnTimeout: 60 * time.Second,
	}
	egress := "direct"
	if endpoint.Host != "" {
		proxyURL := &url.URL{Scheme: "http", Host: endpoint.Addr()}
		if endpoint.Username != "" {
			proxyURL.User = url.UserPassword(endpoint.Username, endpoint.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		egress = endpoint.Addr()
	}
	return &Session{
		client:    &http.Client{Transport: transport, Timeout: timeout},
		userAgent: userAgents[rand.Intn(len(userAgents))],
		egress:    egress,
	}, nil
}

// FetchPage загружает одну страницу. Не-2xx статус считается ошибкой,
// вызывающий решает, повторять ли запрос.
func (s *Session) FetchPage(ctx context.Context, pageURL string) (domain.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveNetworkRequest("navigator", "fetch_page", req.URL.Host, start, err)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("загрузка страницы: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration := time.Since(start)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("чтение ответа: %w", err)
	}
	result := domain.PageResult{Body: body, Status: resp.StatusCode, Duration: duration}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("статус ответа %d", resp.StatusCode)
	}
	return result, nil
}

// Egress возвращает адрес точки выхода сессии.
func (s *Session) Egress() string {
	return s.egress
}

// Close освобождает соединения сессии.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}
