package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter выдерживает минимальную паузу между запросами. Часы и ожидание
// подменяются в тестах.
type Limiter struct {
	minDelay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// New создаёт лимитер с реальными часами.
func New(minDelay time.Duration) *Limiter {
	return &Limiter{
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// NewWithClock создаёт лимитер с подменёнными часами (для тестов).
func NewWithClock(minDelay time.Duration, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	return &Limiter{minDelay: minDelay, now: now, sleep: sleep}
}

// Acquire блокирует вызывающего, пока с момента предыдущей выдачи не пройдёт
// минимальная пауза. Вызовы сериализуются мьютексом.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		elapsed := l.now().Sub(l.last)
		if wait := l.minDelay - elapsed; wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

// RandomDelay выдерживает случайную паузу в диапазоне [min, max].
// Используется между независимыми единицами работы, чтобы избежать
// распознаваемого фиксированного интервала.
func (l *Limiter) RandomDelay(ctx context.Context, min, max time.Duration) error {
	if max < min {
		min, max = max, min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	return l.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
