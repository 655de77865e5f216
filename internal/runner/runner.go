// internal/runner/runner.go
package runner

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/utils"
)

// Topics and destination of the run protocol.
const (
	RunDestination = "/api/command/run"
	OutputTopic    = "/topic/run/output"
	OutcomeTopic   = "/topic/run/outcome"
)

// RunMessage is one chunk of output or the final outcome.
type RunMessage struct {
	Content string `json:"content"`
}

// Frame is the envelope exchanged with the runner.
type Frame struct {
	Destination string          `json:"destination,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// Runner submits entries to the streaming execution service.
type Runner struct {
	url    string
	dialer *websocket.Dialer
	logger *utils.Logger
}

func New(url string) *Runner {
	return &Runner{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: utils.GetLogger(),
	}
}

// Run sends the entry and calls onOutput for every output message until the
// outcome arrives. There is no timeout: cancelling ctx closes the connection
// and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, entry *models.RunnableEntry, onOutput func(RunMessage)) (RunMessage, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return RunMessage{}, errors.Wrapf(err, "failed to connect to runner %q", r.url)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	body, err := json.Marshal(entry)
	if err != nil {
		return RunMessage{}, errors.WithStack(err)
	}
	if err := conn.WriteJSON(Frame{Destination: RunDestination, Body: body}); err != nil {
		return RunMessage{}, r.transportError(ctx, err, "failed to submit entry")
	}

	r.logger.Debug("Entry submitted to runner", map[string]interface{}{
		"entry_id": entry.ID,
		"type":     entry.Type,
	})

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return RunMessage{}, r.transportError(ctx, err, "runner connection lost")
		}

		var message RunMessage
		if len(frame.Body) > 0 {
			if err := json.Unmarshal(frame.Body, &message); err != nil {
				return RunMessage{}, errors.Wrapf(err, "invalid %s message", frame.Topic)
			}
		}

		switch frame.Topic {
		case OutputTopic:
			if onOutput != nil {
				onOutput(message)
			}
		case OutcomeTopic:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return message, nil
		default:
			r.logger.Warn("Ignoring runner frame", map[string]interface{}{"topic": frame.Topic})
		}
	}
}

func (r *Runner) transportError(ctx context.Context, err error, message string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.WithStack(ctxErr)
	}
	return errors.Wrap(err, message)
}
