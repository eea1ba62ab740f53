package queue

import (
	"context"

	"ai-trend-scraper/internal/domain"
)

// MemoryScrapeQueue — очередь в памяти процесса. Используется в локальном
// режиме без Redis/RabbitMQ и в тестах.
type MemoryScrapeQueue struct {
	jobs chan domain.ScrapeJob
}

// NewMemoryScrapeQueue создаёт очередь с указанной ёмкостью буфера.
func NewMemoryScrapeQueue(capacity int) *MemoryScrapeQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &MemoryScrapeQueue{jobs: make(chan domain.ScrapeJob, capacity)}
}

// Enqueue публикует задачу в очередь.
func (q *MemoryScrapeQueue) Enqueue(ctx context.Context, job domain.ScrapeJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- job:
		return nil
	}
}

// Pop блокирующе читает задачу из очереди.
func (q *MemoryScrapeQueue) Pop(ctx context.Context) (domain.ScrapeJob, error) {
	select {
	case <-ctx.Done():
		return domain.ScrapeJob{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	}
}

// Len возвращает количество задач в буфере.
func (q *MemoryScrapeQueue) Len() int {
	return len(q.jobs)
}
