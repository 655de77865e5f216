// internal/storage/book_store.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/utils"
)

// BookFile is the table of contents stored in every book directory.
const BookFile = "book.yaml"

type bookDocument struct {
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Chapters    []string `yaml:"chapters" json:"chapters"`
}

type chapterDocument struct {
	Entries []*models.Entry `yaml:"entries" json:"entries"`
}

// BookStore serves books from a directory tree. It offers the same
// operations as the remote book service so the workspace can run offline.
//
// Layout: <base>/<bookPath>/book.yaml lists chapter files relative to the
// book directory; a chapter file is YAML or JSON holding its entries.
type BookStore struct {
	storage *FileStorage
	mu      sync.Mutex
	logger  *utils.Logger
}

func NewBookStore(storage *FileStorage) *BookStore {
	return &BookStore{
		storage: storage,
		logger:  utils.GetLogger(),
	}
}

// Health is Healthy as long as the base directory exists.
func (s *BookStore) Health(ctx context.Context) models.HealthStatus {
	if ctx.Err() != nil || !s.storage.DirExists("") {
		return models.Unreachable
	}
	return models.Healthy
}

// ListBooks returns the directories below the base that hold a book file.
func (s *BookStore) ListBooks() ([]string, error) {
	dirs, err := s.storage.ListDirs("")
	if err != nil {
		return nil, err
	}

	books := []string{}
	for _, dir := range dirs {
		if s.storage.FileExists(dir, BookFile) {
			books = append(books, dir)
		}
	}
	return books, nil
}

// FetchBook reads the table of contents. A chapter that cannot be read
// keeps its line with the error set instead of failing the whole book.
func (s *BookStore) FetchBook(ctx context.Context, bookPath, workPath string) (*models.Book, error) {
	if err := checkPath("book", bookPath); err != nil {
		return nil, err
	}
	if !s.storage.FileExists(bookPath, BookFile) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Book %s not found", bookPath), nil)
	}

	var toc bookDocument
	if err := s.storage.LoadYAMLFile(bookPath, BookFile, &toc); err != nil {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("Book %s cannot be read", bookPath), err)
	}

	book := &models.Book{
		Title:       toc.Title,
		Description: toc.Description,
		Chapters:    make([]models.ChapterSummary, 0, len(toc.Chapters)),
		BookPath:    bookPath,
		WorkPath:    workPath,
	}

	for _, chapterPath := range toc.Chapters {
		summary := models.ChapterSummary{Path: chapterPath}
		doc, err := s.loadChapter(bookPath, chapterPath)
		if err != nil {
			summary.Error = apperrors.FormatError(err)
		} else {
			chapter := models.Chapter{Entries: doc.Entries}
			summary.Title = chapter.Title()
			summary.Description = chapter.Description(nil)
		}
		book.Chapters = append(book.Chapters, summary)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// FetchChapter reads one chapter. Entries without an id get one, and the
// file is rewritten so the ids stay stable.
func (s *BookStore) FetchChapter(ctx context.Context, ref models.ChapterRef) (*models.Chapter, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadChapter(ref.BookPath, ref.ChapterPath)
	if err != nil {
		return nil, err
	}

	assigned := 0
	for _, entry := range doc.Entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
			assigned++
		}
	}
	if assigned > 0 {
		if err := s.writeChapter(ref.BookPath, ref.ChapterPath, doc); err != nil {
			return nil, err
		}
		s.logger.Info("Assigned entry ids", map[string]interface{}{
			"chapter": ref.ChapterPath,
			"count":   assigned,
		})
	}

	return &models.Chapter{
		ChapterPath: ref.ChapterPath,
		BookPath:    ref.BookPath,
		WorkPath:    ref.WorkPath,
		Entries:     doc.Entries,
	}, nil
}

// SaveEntry replaces the stored entry with the same id and returns what was
// written. Variable values are runtime state and are never stored.
func (s *BookStore) SaveEntry(ctx context.Context, ref models.ChapterRef, save *models.SaveEntry) (*models.Entry, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	if save == nil || save.ID == "" {
		return nil, apperrors.NewValidationError("The entry id is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadChapter(ref.BookPath, ref.ChapterPath)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, entry := range doc.Entries {
		if entry.ID == save.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Entry %s not found", save.ID), nil)
	}

	canonical := save.Entry()
	canonical.Values = nil
	doc.Entries[index] = &canonical

	if err := s.writeChapter(ref.BookPath, ref.ChapterPath, doc); err != nil {
		return nil, err
	}

	s.logger.Info("Entry saved", map[string]interface{}{
		"chapter":  ref.ChapterPath,
		"entry_id": save.ID,
		"type":     save.Type,
	})

	saved := canonical.Persisted()
	return &saved, nil
}

func (s *BookStore) loadChapter(bookPath, chapterPath string) (*chapterDocument, error) {
	dir, file := chapterLocation(bookPath, chapterPath)
	if !s.storage.FileExists(dir, file) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Chapter %s not found", chapterPath), nil)
	}

	var doc chapterDocument
	var err error
	if isJSON(file) {
		err = s.storage.LoadJSONFile(dir, file, &doc)
	} else {
		err = s.storage.LoadYAMLFile(dir, file, &doc)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("Chapter %s cannot be read", chapterPath), err)
	}
	return &doc, nil
}

func (s *BookStore) writeChapter(bookPath, chapterPath string, doc *chapterDocument) error {
	stored := &chapterDocument{Entries: make([]*models.Entry, len(doc.Entries))}
	for i, entry := range doc.Entries {
		persisted := entry.Persisted()
		persisted.Values = nil
		stored.Entries[i] = &persisted
	}

	dir, file := chapterLocation(bookPath, chapterPath)
	if isJSON(file) {
		return s.storage.SaveJSONFile(dir, file, stored)
	}
	return s.storage.SaveYAMLFile(dir, file, stored)
}

// LoadChapterFile reads a chapter file that does not belong to an opened book.
func LoadChapterFile(path string) (*models.Chapter, error) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Chapter %s not found", path), err)
	}
	fs, err := NewFileStorage(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	file := filepath.Base(path)

	var doc chapterDocument
	if isJSON(file) {
		err = fs.LoadJSONFile("", file, &doc)
	} else {
		err = fs.LoadYAMLFile("", file, &doc)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("Chapter %s cannot be read", path), err)
	}
	return &models.Chapter{ChapterPath: file, Entries: doc.Entries}, nil
}

func chapterLocation(bookPath, chapterPath string) (string, string) {
	return filepath.Join(bookPath, filepath.Dir(chapterPath)), filepath.Base(chapterPath)
}

func isJSON(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".json")
}

func checkRef(ref models.ChapterRef) error {
	if err := checkPath("book", ref.BookPath); err != nil {
		return err
	}
	return checkPath("chapter", ref.ChapterPath)
}

// checkPath keeps every access below the storage base directory.
func checkPath(kind, path string) error {
	if path == "" || !filepath.IsLocal(path) {
		return apperrors.NewValidationError(fmt.Sprintf("Invalid %s path %q", kind, path), nil)
	}
	return nil
}
