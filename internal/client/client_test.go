package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(server.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestHealth(t *testing.T) {
	healthy := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actuator/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"UP"}`))
	}))
	if got := healthy.Health(context.Background()); got != models.Healthy {
		t.Errorf("Health() = %v", got)
	}

	unhealthy := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	if got := unhealthy.Health(context.Background()); got != models.Unhealthy {
		t.Errorf("Health() = %v", got)
	}

	server := httptest.NewServer(http.NotFoundHandler())
	unreachable, _ := New(server.URL, time.Second)
	server.Close()
	if got := unreachable.Health(context.Background()); got != models.Unreachable {
		t.Errorf("Health() = %v", got)
	}
}

func TestFetchBook(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/book" || r.URL.Query().Get("bookPath") != "/books/go" || r.URL.Query().Get("workPath") != "/work" {
			t.Errorf("request = %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"Go","description":"Learn Go","chapters":[{"title":"Intro","description":"","path":"intro.yaml"}]}`))
	}))

	book, err := c.FetchBook(context.Background(), "/books/go", "/work")
	if err != nil {
		t.Fatalf("FetchBook() = %v", err)
	}
	if book.Title != "Go" || len(book.Chapters) != 1 || book.Chapters[0].Path != "intro.yaml" {
		t.Errorf("book = %+v", book)
	}
	if book.BookPath != "/books/go" || book.WorkPath != "/work" {
		t.Errorf("paths = %q %q", book.BookPath, book.WorkPath)
	}
}

func TestFetchChapterRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"entries":[{"type":"chapter","id":"c1","parameters":["Title:1","Intro"]}]}`))
	}))

	ref := models.ChapterRef{BookPath: "/b", WorkPath: "/w", ChapterPath: "intro.yaml"}
	chapter, err := c.FetchChapter(context.Background(), ref)
	if err != nil {
		t.Fatalf("FetchChapter() = %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d", calls)
	}
	if chapter.ChapterPath != "intro.yaml" || chapter.Title() != "Intro" {
		t.Errorf("chapter = %+v", chapter)
	}
}

func TestFetchChapterNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Chapter intro.yaml not found"}`))
	}))

	_, err := c.FetchChapter(context.Background(), models.ChapterRef{ChapterPath: "intro.yaml"})
	if err == nil {
		t.Fatal("FetchChapter() should fail")
	}
	if got := apperrors.FormatError(err); got != "Chapter intro.yaml not found" {
		t.Errorf("FormatError() = %q", got)
	}
}

func TestSaveEntry(t *testing.T) {
	var received map[string]json.RawMessage
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/entry" || r.URL.Query().Get("chapterPath") != "intro.yaml" {
			t.Errorf("request = %s %s", r.Method, r.URL)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"type":"chapter","id":"c1","parameters":["Title:1","Hallo Welt!"]}`))
	}))

	save := models.CreateSaveEntry(&models.Entry{Type: "chapter", ID: "c1", Parameters: []string{"Title:1", "Hallo Welt"}}, models.Projection{})
	saved, err := c.SaveEntry(context.Background(), models.ChapterRef{ChapterPath: "intro.yaml"}, save)
	if err != nil {
		t.Fatalf("SaveEntry() = %v", err)
	}
	if !reflect.DeepEqual(saved.Parameters, []string{"Title:1", "Hallo Welt!"}) {
		t.Errorf("saved = %+v", saved)
	}
	if _, ok := received["values"]; ok {
		t.Error("values should not be sent by default")
	}
	if _, ok := received["parameters"]; !ok {
		t.Error("parameters missing from payload")
	}
}

func TestSaveEntryIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.SaveEntry(context.Background(), models.ChapterRef{}, &models.SaveEntry{Type: "command"})
	if err == nil || apperrors.FormatError(err) != "Request failed with status code 500" {
		t.Fatalf("SaveEntry() = %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d", calls)
	}
}
