package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
)

// ErrEmptyPool возвращается, когда после обновления пул остался пустым.
var ErrEmptyPool = errors.New("пул прокси пуст")

// Manager ведёт пул точек выхода: загрузка списков, ротация по кругу,
// учёт отказов и самовосстановление при полном исчерпании пула.
type Manager struct {
	listURLs        []string
	refreshInterval time.Duration
	client          *http.Client
	log             zerolog.Logger
	now             func() time.Time

	mu          sync.Mutex
	endpoints   []domain.ProxyEndpoint
	failed      map[string]struct{}
	cursor      int
	lastRefresh time.Time
}

var _ domain.ProxyPool = (*Manager)(nil)

// NewManager создаёт менеджер пула.
func NewManager(listURLs []string, refreshInterval, fetchTimeout time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		listURLs:        listURLs,
		refreshInterval: refreshInterval,
		client:          &http.Client{Timeout: fetchTimeout},
		log:             logger,
		now:             time.Now,
		failed:          make(map[string]struct{}),
	}
}

// Refresh загружает списки из всех источников и пересобирает пул.
// Ошибка одного источника не мешает остальным; при полном провале
// сохраняется прежний пул, если он был.
func (m *Manager) Refresh(ctx context.Context) error {
	var fresh []domain.ProxyEndpoint
	seen := make(map[string]struct{})
	var lastErr error
	for _, listURL := range m.listURLs {
		endpoints, err := m.fetchList(ctx, listURL)
		if err != nil {
			lastErr = err
			m.log.Warn().Err(err).Str("url", listURL).Msg("proxy: источник списка недоступен")
			continue
		}
		for _, ep := range endpoints {
			key := ep.Addr()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, ep)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fresh) == 0 {
		if len(m.endpoints) > 0 {
			// Прежний пул лучше пустого.
			m.lastRefresh = m.now()
			return nil
		}
		if lastErr != nil {
			return fmt.Errorf("обновление пула: %w", lastErr)
		}
		m.lastRefresh = m.now()
		return nil
	}
	m.endpoints = fresh
	m.failed = make(map[string]struct{})
	m.cursor = 0
	m.lastRefresh = m.now()
	m.publishStats()
	return nil
}

// Next возвращает следующую живую точку выхода по кругу. При устаревании
// пула сначала выполняется обновление; при полном исчерпании набор отказов
// сбрасывается и ротация продолжается с начала.
func (m *Manager) Next(ctx context.Context) (domain.ProxyEndpoint, error) {
	m.mu.Lock()
	stale := m.now().Sub(m.lastRefresh) >= m.refreshInterval
	empty := len(m.endpoints) == 0
	m.mu.Unlock()

	if stale || empty {
		if err := m.Refresh(ctx); err != nil && empty {
			return domain.ProxyEndpoint{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.endpoints) == 0 {
		return domain.ProxyEndpoint{}, ErrEmptyPool
	}
	for i := 0; i < len(m.endpoints); i++ {
		ep := m.endpoints[m.cursor%len(m.endpoints)]
		m.cursor++
		if _, bad := m.failed[ep.Addr()]; !bad {
			return ep, nil
		}
	}
	// Все помечены неисправными: сбрасываем отказы, чтобы устаревшие
	// пометки не обескровили пул навсегда.
	m.log.Info().Int("pool", len(m.endpoints)).Msg("proxy: пул исчерпан, сбрасываем отказы")
	m.failed = make(map[string]struct{})
	m.cursor = 0
	m.publishStats()
	ep := m.endpoints[0]
	m.cursor = 1
	return ep, nil
}

// MarkFailed помечает точку выхода неисправной.
func (m *Manager) MarkFailed(endpoint domain.ProxyEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[endpoint.Addr()] = struct{}{}
	m.publishStats()
}

// MarkSucceeded снимает пометку неисправности.
func (m *Manager) MarkSucceeded(endpoint domain.ProxyEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failed, endpoint.Addr())
	m.publishStats()
}

// Stats возвращает сводку пула.
func (m *Manager) Stats() domain.ProxyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ProxyStats{
		Total:       len(m.endpoints),
		Failed:      len(m.failed),
		LastRefresh: m.lastRefresh,
	}
}

func (m *Manager) publishStats() {
	metrics.ProxyPoolSize.Set(float64(len(m.endpoints)))
	metrics.ProxyPoolFailed.Set(float64(len(m.failed)))
}

func (m *Manager) fetchList(ctx context.Context, listURL string) ([]domain.ProxyEndpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос списка: %w", err)
	}
	start := time.Now()
	resp, err := m.client.Do(req)
	metrics.ObserveNetworkRequest("proxy", "fetch_list", listURL, start, err)
	if err != nil {
		return nil, fmt.Errorf("загрузка списка: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("загрузка списка: статус %d", resp.StatusCode)
	}

	var endpoints []domain.ProxyEndpoint
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ep, ok := ParseLine(line)
		if !ok {
			continue
		}
		endpoints = append(endpoints, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("чтение списка: %w", err)
	}
	return endpoints, nil
}

// ParseLine разбирает одну строку списка. Поддерживаются форматы
// ip:port, ip:port:user:pass и scheme://[user:pass@]ip:port.
func ParseLine(line string) (domain.ProxyEndpoint, bool) {
	if strings.Contains(line, "://") {
		u, err := url.Parse(line)
		if err != nil || u.Hostname() == "" {
			return domain.ProxyEndpoint{}, false
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return domain.ProxyEndpoint{}, false
		}
		ep := domain.ProxyEndpoint{Host: u.Hostname(), Port: port}
		if u.User != nil {
			ep.Username = u.User.Username()
			ep.Password, _ = u.User.Password()
		}
		if !validEndpoint(ep) {
			return domain.ProxyEndpoint{}, false
		}
		return ep, true
	}

	parts := strings.Split(line, ":")
	switch len(parts) {
	case 2:
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return domain.ProxyEndpoint{}, false
		}
		ep := domain.ProxyEndpoint{Host: parts[0], Port: port}
		if !validEndpoint(ep) {
			return domain.ProxyEndpoint{}, false
		}
		return ep, true
	case 4:
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return domain.ProxyEndpoint{}, false
		}
		ep := domain.ProxyEndpoint{Host: parts[0], Port: port, Username: parts[2], Password: parts[3]}
		if !validEndpoint(ep) {
			return domain.ProxyEndpoint{}, false
		}
		return ep, true
	default:
		return domain.ProxyEndpoint{}, false
	}
}

func validEndpoint(ep domain.ProxyEndpoint) bool {
	if ep.Port < 1 || ep.Port > 65535 {
		return false
	}
	ip := net.ParseIP(ep.Host)
	return ip != nil && ip.To4() != nil
}
