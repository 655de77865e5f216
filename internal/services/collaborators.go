// internal/services/collaborators.go
package services

import (
	"context"

	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/runner"
)

// BookSource loads books and chapters. Implemented by client.Client and
// storage.BookStore.
type BookSource interface {
	FetchBook(ctx context.Context, bookPath, workPath string) (*models.Book, error)
	FetchChapter(ctx context.Context, ref models.ChapterRef) (*models.Chapter, error)
}

// EntryPersister stores an entry and returns its canonical form.
type EntryPersister interface {
	SaveEntry(ctx context.Context, ref models.ChapterRef, entry *models.SaveEntry) (*models.Entry, error)
}

// HealthChecker probes the book service.
type HealthChecker interface {
	Health(ctx context.Context) models.HealthStatus
}

// BookBackend is everything the workspace needs from the book service.
type BookBackend interface {
	BookSource
	EntryPersister
	HealthChecker
}

// EntryRunner executes runnable entries. Implemented by runner.Runner.
type EntryRunner interface {
	Run(ctx context.Context, entry *models.RunnableEntry, onOutput func(runner.RunMessage)) (runner.RunMessage, error)
}

// RunEvent is one notification about a running entry.
type RunEvent struct {
	ChapterPath string `json:"chapterPath"`
	EntryID     string `json:"entryId"`
	Kind        string `json:"kind"`
	Content     string `json:"content,omitempty"`
}

// Run event kinds.
const (
	RunEventStarted = "started"
	RunEventOutput  = "output"
	RunEventOutcome = "outcome"
	RunEventFailed  = "failed"
)

// RunPublisher receives run events, for example to fan them out to UI clients.
type RunPublisher interface {
	PublishRunEvent(event RunEvent)
}
