package services

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/render"
	"github.com/Corphon/BookRunner/internal/runner"
)

type fakeBackend struct {
	mu       sync.Mutex
	status   models.HealthStatus
	book     *models.Book
	bookErr  error
	chapters map[string][]models.Entry
	saves    []*models.SaveEntry
	save     func(ctx context.Context, entry *models.SaveEntry) (*models.Entry, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		status: models.Healthy,
		book: &models.Book{
			Title: "Go",
			Chapters: []models.ChapterSummary{
				{Title: "Intro", Description: "Getting *started*", Path: "intro.yaml"},
				{Title: "Next", Path: "next.yaml"},
			},
		},
		chapters: map[string][]models.Entry{
			"intro.yaml": {
				{Type: models.EntryTypeChapter, ID: "c1", Parameters: []string{"Title:1", "Hello world"}},
				{Type: models.EntryTypeVariable, ID: "v1", Name: "NAME", Parameters: []string{"Albert"}},
				{Type: models.EntryTypeCommand, ID: "cmd", Parameters: []string{"echo ${NAME}"}, Variables: []string{"NAME"}},
				{Type: models.EntryTypeCommand, ID: "greet", Parameters: []string{"echo ${GREETING}"}, Variables: []string{"GREETING"}},
				{Type: models.EntryTypeMarkdown, ID: "md", Parameters: []string{"Hi **${NAME}**"}, Variables: []string{"NAME"}},
				{Type: "mystery", ID: "x"},
			},
		},
	}
}

func (f *fakeBackend) Health(context.Context) models.HealthStatus {
	return f.status
}

func (f *fakeBackend) FetchBook(_ context.Context, bookPath, workPath string) (*models.Book, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	book := *f.book
	book.Chapters = append([]models.ChapterSummary(nil), f.book.Chapters...)
	return &book, nil
}

func (f *fakeBackend) FetchChapter(_ context.Context, ref models.ChapterRef) (*models.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, ok := f.chapters[ref.ChapterPath]
	if !ok {
		return nil, apperrors.NewNotFoundError("Chapter "+ref.ChapterPath+" not found", nil)
	}
	chapter := &models.Chapter{}
	for i := range entries {
		entry := entries[i].Persisted()
		chapter.Entries = append(chapter.Entries, &entry)
	}
	return chapter, nil
}

func (f *fakeBackend) SaveEntry(ctx context.Context, _ models.ChapterRef, entry *models.SaveEntry) (*models.Entry, error) {
	f.mu.Lock()
	f.saves = append(f.saves, entry)
	save := f.save
	f.mu.Unlock()

	if save != nil {
		return save(ctx, entry)
	}
	canonical := entry.Entry()
	return &canonical, nil
}

type fakeRunner struct {
	output  []string
	outcome string
	err     error
	got     *models.RunnableEntry
}

func (r *fakeRunner) Run(_ context.Context, entry *models.RunnableEntry, onOutput func(runner.RunMessage)) (runner.RunMessage, error) {
	r.got = entry
	for _, line := range r.output {
		onOutput(runner.RunMessage{Content: line})
	}
	if r.err != nil {
		return runner.RunMessage{}, r.err
	}
	return runner.RunMessage{Content: r.outcome}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []RunEvent
}

func (p *recordingPublisher) PublishRunEvent(event RunEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []string
	for _, event := range p.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// openWorkspace opens the fake book and loads intro.yaml.
func openWorkspace(t *testing.T, backend *fakeBackend) *Workspace {
	t.Helper()
	workspace := NewWorkspace(backend, backend, render.NewMarkdown(), NewLockManager())
	if _, err := workspace.Open(context.Background(), "go", "/work"); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if _, err := workspace.LoadChapter(context.Background(), "intro.yaml"); err != nil {
		t.Fatalf("LoadChapter() = %v", err)
	}
	return workspace
}
