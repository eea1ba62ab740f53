package domain

import (
	"context"
	"time"
)

// ScrapeJobKind описывает вид прогона.
type ScrapeJobKind string

const (
	// ScrapeKindFull — широкий обход всех источников.
	ScrapeKindFull ScrapeJobKind = "full"
	// ScrapeKindComments — обход с упором на комментарии.
	ScrapeKindComments ScrapeJobKind = "comments"
	// ScrapeKindTrends — только пересчёт трендов, без обхода.
	ScrapeKindTrends ScrapeJobKind = "trends"
	// ScrapeKindHot — быстрый обход горячих постов.
	ScrapeKindHot ScrapeJobKind = "hot"
)

// ScrapeJobCause описывает, кто запросил прогон.
type ScrapeJobCause string

const (
	// ScrapeCauseManual — прогон запрошен вручную (CLI или API).
	ScrapeCauseManual ScrapeJobCause = "manual"
	// ScrapeCauseScheduled — прогон поставлен планировщиком.
	ScrapeCauseScheduled ScrapeJobCause = "scheduled"
)

// ScrapeJob содержит информацию о задаче обхода.
type ScrapeJob struct {
	ID          string         `json:"job_id,omitempty"`
	Kind        ScrapeJobKind  `json:"kind"`
	Sources     []string       `json:"sources,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
	Cause       ScrapeJobCause `json:"cause"`
}

// ScrapeQueue описывает очередь задач обхода с единственным потребителем.
type ScrapeQueue interface {
	Enqueue(ctx context.Context, job ScrapeJob) error
	Pop(ctx context.Context) (ScrapeJob, error)
}
