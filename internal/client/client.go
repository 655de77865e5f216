// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/utils"
)

const (
	healthPath  = "/actuator/health"
	bookPath    = "/api/book"
	chapterPath = "/api/chapter"
	entryPath   = "/api/entry"

	maxRetries  = 3
	baseBackoff = 50 * time.Millisecond
)

// ResponseError is a non 2xx answer from the book service.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// ResponseMessage is the message field of the response payload, if any.
func (e *ResponseError) ResponseMessage() string {
	return e.Message
}

// Client talks to the remote book service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *utils.Logger
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid service url %q", baseURL)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     utils.GetLogger(),
	}, nil
}

// Health probes the service. Any transport failure means Unreachable, any
// status other than 200 means Unhealthy.
func (c *Client) Health(ctx context.Context) models.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(healthPath, nil), nil)
	if err != nil {
		return models.Unreachable
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Health probe failed", map[string]interface{}{"error": err})
		return models.Unreachable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return models.Unhealthy
	}
	return models.Healthy
}

// FetchBook loads the book and its table of contents.
func (c *Client) FetchBook(ctx context.Context, bookPathParam, workPath string) (*models.Book, error) {
	query := url.Values{"bookPath": {bookPathParam}, "workPath": {workPath}}
	var book models.Book
	if err := c.getJSON(ctx, c.endpoint(bookPath, query), &book); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch book %q", bookPathParam)
	}
	if book.BookPath == "" {
		book.BookPath = bookPathParam
	}
	if book.WorkPath == "" {
		book.WorkPath = workPath
	}
	return &book, nil
}

// FetchChapter loads the entries of one chapter.
func (c *Client) FetchChapter(ctx context.Context, ref models.ChapterRef) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := c.getJSON(ctx, c.endpoint(chapterPath, refQuery(ref)), &chapter); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch chapter %q", ref.ChapterPath)
	}
	if chapter.ChapterPath == "" {
		chapter.ChapterPath = ref.ChapterPath
	}
	if chapter.BookPath == "" {
		chapter.BookPath = ref.BookPath
	}
	if chapter.WorkPath == "" {
		chapter.WorkPath = ref.WorkPath
	}
	return &chapter, nil
}

// SaveEntry persists the entry and returns the canonical version. Saves are
// never retried.
func (c *Client) SaveEntry(ctx context.Context, ref models.ChapterRef, entry *models.SaveEntry) (*models.Entry, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(entryPath, refQuery(ref)), bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	setJSONHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error while saving entry %q", entry.ID)
	}
	defer resp.Body.Close()

	var saved models.Entry
	if err := decodeResponse(resp, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	var lastErr error
	for trial := 0; trial < maxRetries; trial++ {
		if trial > 0 {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-time.After(backoffTime(baseBackoff, trial)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		setJSONHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		err = decodeResponse(resp, target)
		resp.Body.Close()
		var responseErr *ResponseError
		if errors.As(err, &responseErr) && responseErr.StatusCode/100 == 5 {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

func decodeResponse(resp *http.Response, target interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode/100 != 2 {
		var payload struct {
			Message string `json:"message"`
		}
		// the payload is optional
		_ = json.Unmarshal(data, &payload)
		return &ResponseError{StatusCode: resp.StatusCode, Message: payload.Message}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func refQuery(ref models.ChapterRef) url.Values {
	return url.Values{
		"bookPath":    {ref.BookPath},
		"workPath":    {ref.WorkPath},
		"chapterPath": {ref.ChapterPath},
	}
}

func setJSONHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

// backoffTime is exponential with jitter.
func backoffTime(base time.Duration, retries int) time.Duration {
	maxDur := base * (time.Duration(1) << retries)
	return time.Duration(rand.Int63n(int64(maxDur)))
}
