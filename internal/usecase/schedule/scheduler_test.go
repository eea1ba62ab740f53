package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/queue"
)

type fakeRunner struct {
	mu   sync.Mutex
	jobs []domain.ScrapeJob
	done chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: make(chan struct{}, 16)}
}

func (r *fakeRunner) Run(ctx context.Context, job domain.ScrapeJob) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *fakeRunner) IsRunning() bool { return false }

func (r *fakeRunner) ran() []domain.ScrapeJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ScrapeJob, len(r.jobs))
	copy(out, r.jobs)
	return out
}

type fakeDedupe struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (d *fakeDedupe) Once(key string, ttl time.Duration, fn func() error) error {
	d.mu.Lock()
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[key]; ok {
		d.mu.Unlock()
		return nil
	}
	d.seen[key] = struct{}{}
	d.mu.Unlock()
	return fn()
}

func (d *fakeDedupe) Set(key string, value []byte, ttl time.Duration) error { return nil }

func (d *fakeDedupe) Get(key string) ([]byte, error) { return nil, nil }

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("не дождались выполнения задачи")
	}
}

func TestEnqueueReachesConsumer(t *testing.T) {
	q := queue.NewMemoryScrapeQueue(4)
	runner := newFakeRunner()
	s := NewScheduler(q, nil, runner, Intervals{}, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer s.Stop()

	if err := s.Enqueue(context.Background(), domain.ScrapeKindFull, []string{"artificial"}, domain.ScrapeCauseManual); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	waitFor(t, runner.done)

	jobs := runner.ran()
	if len(jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(jobs))
	}
	job := jobs[0]
	if job.Kind != domain.ScrapeKindFull || job.Cause != domain.ScrapeCauseManual {
		t.Fatalf("неверная задача: %+v", job)
	}
	if job.ID == "" || job.RequestedAt.IsZero() {
		t.Fatalf("задача должна быть идентифицирована: %+v", job)
	}
	if len(job.Sources) != 1 || job.Sources[0] != "artificial" {
		t.Fatalf("источники потерялись: %+v", job)
	}
}

func TestStartTwiceFails(t *testing.T) {
	s := NewScheduler(queue.NewMemoryScrapeQueue(1), nil, newFakeRunner(), Intervals{}, zerolog.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("ожидали ErrAlreadyStarted, получили %v", err)
	}
}

func TestStopAllowsRestart(t *testing.T) {
	q := queue.NewMemoryScrapeQueue(4)
	runner := newFakeRunner()
	s := NewScheduler(q, nil, runner, Intervals{}, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	s.Stop()
	// Повторная остановка не должна паниковать.
	s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("перезапуск после остановки должен работать: %v", err)
	}
	s.Stop()
}

func TestTriggerEnqueuesOnTick(t *testing.T) {
	q := queue.NewMemoryScrapeQueue(4)
	runner := newFakeRunner()
	s := NewScheduler(q, nil, runner, Intervals{Hot: 20 * time.Millisecond}, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	waitFor(t, runner.done)
	s.Stop()

	jobs := runner.ran()
	if len(jobs) == 0 {
		t.Fatalf("триггер должен поставить хотя бы одну задачу")
	}
	if jobs[0].Kind != domain.ScrapeKindHot || jobs[0].Cause != domain.ScrapeCauseScheduled {
		t.Fatalf("неверная задача триггера: %+v", jobs[0])
	}
}

func TestScheduledEnqueueDeduplicated(t *testing.T) {
	q := queue.NewMemoryScrapeQueue(8)
	s := NewScheduler(q, &fakeDedupe{}, newFakeRunner(), Intervals{}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := s.Enqueue(context.Background(), domain.ScrapeKindFull, nil, domain.ScrapeCauseScheduled); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("дубликаты в окне должны гаситься, в очереди %d задач", q.Len())
	}

	// Ручные запуски кэш не трогает.
	if err := s.Enqueue(context.Background(), domain.ScrapeKindFull, nil, domain.ScrapeCauseManual); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("ручная задача должна пройти мимо кэша, в очереди %d задач", q.Len())
	}
}

func TestStatusListsAllTriggers(t *testing.T) {
	intervals := Intervals{Full: time.Hour, Comments: time.Hour, Trends: time.Hour, Hot: time.Hour}
	s := NewScheduler(queue.NewMemoryScrapeQueue(1), nil, newFakeRunner(), intervals, zerolog.Nop())

	statuses := s.Status()
	if len(statuses) != 4 {
		t.Fatalf("ожидали 4 триггера, получили %d", len(statuses))
	}
	for _, st := range statuses {
		if st.Enabled {
			t.Fatalf("до запуска триггеры должны быть выключены: %+v", st)
		}
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer s.Stop()

	kinds := make(map[domain.ScrapeJobKind]bool)
	for _, st := range s.Status() {
		kinds[st.Kind] = st.Enabled
	}
	for _, kind := range []domain.ScrapeJobKind{domain.ScrapeKindFull, domain.ScrapeKindComments, domain.ScrapeKindTrends, domain.ScrapeKindHot} {
		if !kinds[kind] {
			t.Fatalf("триггер %s должен быть включён", kind)
		}
	}
	for _, st := range s.Status() {
		if st.Next.IsZero() {
			t.Fatalf("у включённого триггера должно быть время следующего тика: %+v", st)
		}
	}
}
