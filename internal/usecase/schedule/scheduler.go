package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/domain"
)

// ErrAlreadyStarted возвращается при повторном запуске планировщика.
var ErrAlreadyStarted = errors.New("планировщик уже запущен")

// Runner выполняет один прогон. Реализуется оркестратором.
type Runner interface {
	Run(ctx context.Context, job domain.ScrapeJob) error
	IsRunning() bool
}

// Intervals — кадансы четырёх триггеров.
type Intervals struct {
	Full     time.Duration
	Comments time.Duration
	Trends   time.Duration
	Hot      time.Duration
}

// TriggerStatus — состояние одного триггера.
type TriggerStatus struct {
	Kind    domain.ScrapeJobKind `json:"kind"`
	Enabled bool                 `json:"enabled"`
	Running bool                 `json:"running"`
	Next    time.Time            `json:"next"`
}

type trigger struct {
	kind     domain.ScrapeJobKind
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// Scheduler ведёт четыре независимых триггера. Каждый тик кладёт задачу
// в очередь с единственным потребителем; перекрытие прогонов гасится
// флагом оркестратора, так что одновременных прогонов не бывает.
type Scheduler struct {
	queue  domain.ScrapeQueue
	dedupe domain.Cache
	runner Runner
	log    zerolog.Logger

	triggers []*trigger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler создаёт планировщик.
func NewScheduler(queue domain.ScrapeQueue, dedupe domain.Cache, runner Runner, intervals Intervals, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		queue:  queue,
		dedupe: dedupe,
		runner: runner,
		log:    logger,
		triggers: []*trigger{
			{kind: domain.ScrapeKindFull, interval: intervals.Full},
			{kind: domain.ScrapeKindComments, interval: intervals.Comments},
			{kind: domain.ScrapeKindTrends, interval: intervals.Trends},
			{kind: domain.ScrapeKindHot, interval: intervals.Hot},
		},
	}
}

// Start запускает триггеры и потребителя очереди.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	for _, t := range s.triggers {
		if t.interval <= 0 {
			continue
		}
		t.mu.Lock()
		t.next = time.Now().Add(t.interval)
		t.mu.Unlock()
		s.wg.Add(1)
		go s.runTrigger(runCtx, t)
	}

	s.wg.Add(1)
	go s.consume(runCtx)

	s.log.Info().Msg("schedule: планировщик запущен")
	return nil
}

// Stop отменяет триггеры и дожидается завершения начатой работы.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info().Msg("schedule: планировщик остановлен")
}

// Status возвращает состояние всех триггеров.
func (s *Scheduler) Status() []TriggerStatus {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	statuses := make([]TriggerStatus, 0, len(s.triggers))
	for _, t := range s.triggers {
		t.mu.Lock()
		next := t.next
		t.mu.Unlock()
		statuses = append(statuses, TriggerStatus{
			Kind:    t.kind,
			Enabled: started && t.interval > 0,
			Running: s.runner.IsRunning(),
			Next:    next,
		})
	}
	return statuses
}

// Enqueue ставит ручную задачу в очередь. Дубликаты в коротком окне
// гасятся через кэш.
func (s *Scheduler) Enqueue(ctx context.Context, kind domain.ScrapeJobKind, sources []string, cause domain.ScrapeJobCause) error {
	job := domain.ScrapeJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		Sources:     sources,
		RequestedAt: time.Now().UTC(),
		Cause:       cause,
	}
	if s.dedupe != nil && cause == domain.ScrapeCauseScheduled {
		key := fmt.Sprintf("scrape:enqueue:%s", kind)
		return s.dedupe.Once(key, time.Minute, func() error {
			return s.queue.Enqueue(ctx, job)
		})
	}
	return s.queue.Enqueue(ctx, job)
}

func (s *Scheduler) runTrigger(ctx context.Context, t *trigger) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			t.next = time.Now().Add(t.interval)
			t.mu.Unlock()
			if err := s.Enqueue(ctx, t.kind, nil, domain.ScrapeCauseScheduled); err != nil {
				s.log.Error().Err(err).Str("kind", string(t.kind)).Msg("schedule: постановка задачи не удалась")
			}
		}
	}
}

// consume — единственный потребитель очереди: задачи выполняются строго
// по одной, лишние запуски оркестратор превращает в no-op.
func (s *Scheduler) consume(ctx context.Context) {
	defer s.wg.Done()
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Msg("schedule: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := s.runner.Run(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("schedule: прогон завершился ошибкой")
		}
	}
}
