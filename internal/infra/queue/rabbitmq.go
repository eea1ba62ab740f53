package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ai-trend-scraper/internal/domain"
	"ai-trend-scraper/internal/infra/metrics"
)

// RabbitScrapeQueue реализует очередь задач через AMQP.
type RabbitScrapeQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitScrapeQueue подключается к брокеру и объявляет очередь.
func NewRabbitScrapeQueue(amqpURL, queue string) (*RabbitScrapeQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitScrapeQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitScrapeQueue) Enqueue(ctx context.Context, job domain.ScrapeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RabbitScrapeQueue) Pop(ctx context.Context) (domain.ScrapeJob, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ScrapeJob{}, err
	}
	select {
	case <-ctx.Done():
		return domain.ScrapeJob{}, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.ScrapeJob{}, errors.New("rabbitmq queue: consume channel closed")
		}
		var job domain.ScrapeJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return domain.ScrapeJob{}, fmt.Errorf("decode job: %w", err)
		}
		if err := d.Ack(false); err != nil {
			return domain.ScrapeJob{}, fmt.Errorf("ack job: %w", err)
		}
		return job, nil
	}
}

func (q *RabbitScrapeQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("start consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitScrapeQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
