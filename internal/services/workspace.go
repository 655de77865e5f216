// internal/services/workspace.go
package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/render"
	"github.com/Corphon/BookRunner/internal/utils"
)

// EntryView is an entry as shown to the UI, with the values derived from it.
// Key addresses the entry in entry operations.
type EntryView struct {
	models.Entry
	Key                 string         `json:"key"`
	Content             models.Content `json:"content,omitempty"`
	Diagnostic          string         `json:"diagnostic,omitempty"`
	HTML                string         `json:"html,omitempty"`
	UndeclaredVariables []string       `json:"undeclaredVariables,omitempty"`
	UnboundVariables    []string       `json:"unboundVariables,omitempty"`
	Runnable            bool           `json:"runnable"`
}

// ChapterView is a loaded chapter as shown to the UI.
type ChapterView struct {
	BookPath        string            `json:"bookPath"`
	WorkPath        string            `json:"workPath"`
	ChapterPath     string            `json:"chapterPath"`
	Title           string            `json:"title,omitempty"`
	DescriptionHTML string            `json:"descriptionHtml,omitempty"`
	Bindings        map[string]string `json:"bindings,omitempty"`
	Entries         []EntryView       `json:"entries"`
	Error           string            `json:"error,omitempty"`
}

type loadedChapter struct {
	chapter  *models.Chapter
	bindings map[string]string
}

// Workspace holds the open book and its loaded chapters. Entries of a
// chapter are only touched while holding that chapter's lock.
type Workspace struct {
	source   BookSource
	health   HealthChecker
	renderer *render.Markdown
	locks    *LockManager
	logger   *utils.Logger

	mu       sync.RWMutex
	book     *models.Book
	chapters map[string]*loadedChapter
}

func NewWorkspace(source BookSource, health HealthChecker, renderer *render.Markdown, locks *LockManager) *Workspace {
	return &Workspace{
		source:   source,
		health:   health,
		renderer: renderer,
		locks:    locks,
		logger:   utils.GetLogger(),
		chapters: make(map[string]*loadedChapter),
	}
}

// Health probes the book service.
func (w *Workspace) Health(ctx context.Context) models.HealthStatus {
	return w.health.Health(ctx)
}

// Open loads a book. The book service must report Healthy first. On failure
// the book is still returned, with its Error set, alongside the error.
func (w *Workspace) Open(ctx context.Context, bookPath, workPath string) (*models.Book, error) {
	if status := w.health.Health(ctx); status != models.Healthy {
		err := apperrors.NewUnavailableError(fmt.Sprintf("The book service is %s", status), nil)
		return w.failOpen(bookPath, workPath, err)
	}

	book, err := w.source.FetchBook(ctx, bookPath, workPath)
	if err != nil {
		return w.failOpen(bookPath, workPath, err)
	}
	book.BookPath = bookPath
	book.WorkPath = workPath
	book.Error = ""
	if book.Chapters == nil {
		book.Chapters = []models.ChapterSummary{}
	}
	w.renderSummaries(book)

	w.mu.Lock()
	w.book = book
	w.chapters = make(map[string]*loadedChapter)
	w.mu.Unlock()

	w.logger.Info("Book opened", map[string]interface{}{
		"book_path": bookPath,
		"work_path": workPath,
		"chapters":  len(book.Chapters),
	})
	return copyBook(book), nil
}

func (w *Workspace) failOpen(bookPath, workPath string, err error) (*models.Book, error) {
	book := &models.Book{
		BookPath: bookPath,
		WorkPath: workPath,
		Chapters: []models.ChapterSummary{},
		Error:    fmt.Sprintf("Failed to load book (%s)", apperrors.FormatError(err)),
	}

	w.mu.Lock()
	w.book = book
	w.chapters = make(map[string]*loadedChapter)
	w.mu.Unlock()

	w.logger.Error("Failed to open book", map[string]interface{}{
		"book_path": bookPath,
		"error":     err,
	})
	return copyBook(book), err
}

func (w *Workspace) renderSummaries(book *models.Book) {
	for i := range book.Chapters {
		summary := &book.Chapters[i]
		html, text, err := w.renderer.Summary(summary.Description)
		if err != nil {
			w.logger.Warn("Failed to summarize chapter description", map[string]interface{}{
				"chapter": summary.Path,
				"error":   err,
			})
		}
		summary.DescriptionHTML = html
		summary.DescriptionText = text
	}
}

// Book returns a copy of the open book.
func (w *Workspace) Book() (*models.Book, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.book == nil {
		return nil, apperrors.NewNotFoundError("No book is open", nil)
	}
	return copyBook(w.book), nil
}

// LoadChapter fetches a chapter, binds the default values of its variables
// and makes it the selected chapter. A failed load returns a view with its
// Error set alongside the error.
func (w *Workspace) LoadChapter(ctx context.Context, chapterPath string) (*ChapterView, error) {
	w.mu.RLock()
	book := w.book
	w.mu.RUnlock()
	if book == nil || book.Error != "" {
		return nil, apperrors.NewValidationError("No book is open", nil)
	}

	ref := models.ChapterRef{BookPath: book.BookPath, WorkPath: book.WorkPath, ChapterPath: chapterPath}
	chapter, err := w.source.FetchChapter(ctx, ref)
	if err != nil {
		w.logger.Error("Failed to load chapter", map[string]interface{}{
			"chapter": chapterPath,
			"error":   err,
		})
		return &ChapterView{
			BookPath:    ref.BookPath,
			WorkPath:    ref.WorkPath,
			ChapterPath: chapterPath,
			Entries:     []EntryView{},
			Error:       fmt.Sprintf("Failed to load chapter (%s)", apperrors.FormatError(err)),
		}, err
	}
	chapter.BookPath = ref.BookPath
	chapter.WorkPath = ref.WorkPath
	chapter.ChapterPath = chapterPath
	chapter.AssignKeys()

	if checkErr := chapter.CheckEntries(); checkErr != nil {
		w.logger.Warn("Chapter has malformed entries", map[string]interface{}{
			"chapter": chapterPath,
			"error":   checkErr,
		})
	}

	loaded := &loadedChapter{chapter: chapter, bindings: make(map[string]string)}
	for _, binding := range chapter.InitialBindings() {
		loaded.bindings[binding.Name] = binding.Value
		chapter.Bind(binding)
	}

	var view *ChapterView
	err = w.locks.ExecuteWithChapterLock(chapterPath, func() error {
		w.mu.Lock()
		w.chapters[chapterPath] = loaded
		if w.book == book {
			w.book.ChapterPath = chapterPath
			w.book.SelectedChapter = selectedIndex(book, chapterPath)
		}
		w.mu.Unlock()

		view = w.chapterView(loaded)
		return nil
	})

	w.logger.Info("Chapter loaded", map[string]interface{}{
		"chapter":  chapterPath,
		"entries":  len(chapter.Entries),
		"bindings": len(loaded.bindings),
	})
	return view, err
}

// Chapter returns the loaded chapter without fetching it again.
func (w *Workspace) Chapter(chapterPath string) (*ChapterView, error) {
	var view *ChapterView
	err := w.withChapter(chapterPath, false, func(loaded *loadedChapter) error {
		view = w.chapterView(loaded)
		return nil
	})
	return view, err
}

// SelectChapter makes an already loaded chapter the selected one.
func (w *Workspace) SelectChapter(chapterPath string) (*ChapterView, error) {
	view, err := w.Chapter(chapterPath)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.book != nil {
		w.book.ChapterPath = chapterPath
		w.book.SelectedChapter = selectedIndex(w.book, chapterPath)
	}
	w.mu.Unlock()
	return view, nil
}

// IsLoaded reports whether the chapter has been loaded.
func (w *Workspace) IsLoaded(chapterPath string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.chapters[chapterPath]
	return ok
}

// Entry returns one entry of a loaded chapter by key.
func (w *Workspace) Entry(chapterPath, entryKey string) (*EntryView, error) {
	var view EntryView
	err := w.withEntry(chapterPath, entryKey, false, func(_ *loadedChapter, entry *models.Entry) error {
		view = w.entryView(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateVariable binds name to value on every entry of the chapter that
// declares it. The returned binding carries the previous value only when the
// value changed; an unchanged value updates nothing.
func (w *Workspace) UpdateVariable(chapterPath, name, value string) (models.VariableBinding, int, error) {
	binding := models.VariableBinding{Name: name, Value: value}
	if strings.TrimSpace(name) == "" {
		return binding, 0, apperrors.NewValidationError("The variable name cannot be empty", nil)
	}

	updated := 0
	err := w.withChapter(chapterPath, true, func(loaded *loadedChapter) error {
		previous, bound := loaded.bindings[name]
		if bound && previous == value {
			return nil
		}
		if bound {
			binding.PreviousValue = &previous
		}
		loaded.bindings[name] = value
		updated = loaded.chapter.Bind(binding)
		return nil
	})
	if err != nil {
		return binding, 0, err
	}

	w.logger.Debug("Variable bound", map[string]interface{}{
		"chapter": chapterPath,
		"name":    name,
		"updated": updated,
	})
	return binding, updated, nil
}

// withChapter runs fn under the chapter's lock.
func (w *Workspace) withChapter(chapterPath string, write bool, fn func(*loadedChapter) error) error {
	w.mu.RLock()
	loaded, ok := w.chapters[chapterPath]
	w.mu.RUnlock()
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("Chapter %s is not loaded", chapterPath), nil)
	}

	run := func() error { return fn(loaded) }
	if write {
		return w.locks.ExecuteWithChapterLock(chapterPath, run)
	}
	return w.locks.ExecuteWithChapterReadLock(chapterPath, run)
}

// withEntry runs fn on the entry with the given key under the chapter's lock.
func (w *Workspace) withEntry(chapterPath, entryKey string, write bool, fn func(*loadedChapter, *models.Entry) error) error {
	return w.withChapter(chapterPath, write, func(loaded *loadedChapter) error {
		entry := loaded.chapter.FindEntry(entryKey)
		if entry == nil {
			return apperrors.NewNotFoundError(fmt.Sprintf("Entry %s not found", entryKey), nil)
		}
		return fn(loaded, entry)
	})
}

// rebind applies the chapter's current bindings to one entry, in name order.
func (loaded *loadedChapter) rebind(entry *models.Entry) {
	names := make([]string, 0, len(loaded.bindings))
	for name := range loaded.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		models.SetValue(entry, models.VariableBinding{Name: name, Value: loaded.bindings[name]})
	}
}

func (w *Workspace) chapterView(loaded *loadedChapter) *ChapterView {
	chapter := loaded.chapter
	view := &ChapterView{
		BookPath:        chapter.BookPath,
		WorkPath:        chapter.WorkPath,
		ChapterPath:     chapter.ChapterPath,
		Title:           chapter.Title(),
		DescriptionHTML: chapter.Description(w.renderer),
		Bindings:        make(map[string]string, len(loaded.bindings)),
		Entries:         make([]EntryView, 0, len(chapter.Entries)),
		Error:           chapter.Error,
	}
	for name, value := range loaded.bindings {
		view.Bindings[name] = value
	}
	for _, entry := range chapter.Entries {
		view.Entries = append(view.Entries, w.entryView(entry))
	}
	return view
}

func (w *Workspace) entryView(entry *models.Entry) EntryView {
	view := EntryView{
		Entry:               entry.Persisted(),
		Key:                 entry.Key,
		UndeclaredVariables: models.MissingVariables(entry),
		UnboundVariables:    unboundVariables(entry),
		Runnable:            models.DoAllVariablesHaveValues(entry),
	}
	view.Edit = entry.Edit
	view.Failed = entry.Failed
	view.Output = entry.Output
	view.Error = entry.Error

	content := models.DecodeContent(entry)
	if unsupported, ok := content.(*models.UnsupportedContent); ok {
		view.Diagnostic = unsupported.Diagnostic()
	} else {
		view.Content = content
	}

	if entry.Type == models.EntryTypeMarkdown {
		view.HTML = w.renderer.Render(models.Interpolate(entry.Variables, entry.Values, models.Join(entry.Parameters)))
	}
	return view
}

// unboundVariables lists declared variables without a non empty value.
func unboundVariables(entry *models.Entry) []string {
	var unbound []string
	for _, name := range entry.Variables {
		if entry.Values[name] == "" {
			unbound = append(unbound, name)
		}
	}
	return unbound
}

func selectedIndex(book *models.Book, chapterPath string) int {
	for i, summary := range book.Chapters {
		if summary.Path == chapterPath {
			return i
		}
	}
	return -1
}

func copyBook(book *models.Book) *models.Book {
	copied := *book
	copied.Chapters = slices.Clone(book.Chapters)
	return &copied
}
