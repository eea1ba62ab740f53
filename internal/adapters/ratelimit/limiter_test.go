package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func TestAcquireFirstCallDoesNotWait(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := NewWithClock(2*time.Second, clock.now, clock.sleep)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("первый вызов не должен ждать, получили %v", clock.slept)
	}
}

func TestAcquireEnforcesMinDelay(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := NewWithClock(2*time.Second, clock.now, clock.sleep)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Прошло полсекунды, до минимальной паузы осталось полторы.
	clock.current = clock.current.Add(500 * time.Millisecond)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(clock.slept) != 1 || clock.slept[0] != 1500*time.Millisecond {
		t.Fatalf("ожидали ожидание 1.5s, получили %v", clock.slept)
	}
}

func TestAcquireSkipsWaitAfterLongPause(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := NewWithClock(2*time.Second, clock.now, clock.sleep)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	clock.current = clock.current.Add(time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("после длинной паузы ждать не нужно, получили %v", clock.slept)
	}
}

func TestRandomDelayWithinBounds(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := NewWithClock(0, clock.now, clock.sleep)

	for i := 0; i < 50; i++ {
		if err := l.RandomDelay(context.Background(), time.Second, 4*time.Second); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	for _, d := range clock.slept {
		if d < time.Second || d > 4*time.Second {
			t.Fatalf("пауза %v вне диапазона [1s, 4s]", d)
		}
	}
}

func TestRandomDelaySwapsReversedBounds(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l := NewWithClock(0, clock.now, clock.sleep)

	if err := l.RandomDelay(context.Background(), 4*time.Second, time.Second); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if d := clock.slept[0]; d < time.Second || d > 4*time.Second {
		t.Fatalf("пауза %v вне диапазона [1s, 4s]", d)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l := New(time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatalf("ожидали ошибку отменённого контекста")
	}
}
