// internal/services/run_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/runner"
	"github.com/Corphon/BookRunner/internal/utils"
)

// RunReport is the result of running an entry.
type RunReport struct {
	Outcome string    `json:"outcome,omitempty"`
	Entry   EntryView `json:"entry"`
}

// RunService executes entries through the runner and streams their output
// into the entry and to the publisher.
type RunService struct {
	workspace *Workspace
	runner    EntryRunner
	publisher RunPublisher
	locks     *LockManager
	metrics   *utils.APIMetrics
	logger    *utils.Logger
}

func NewRunService(workspace *Workspace, entryRunner EntryRunner, publisher RunPublisher, metrics *utils.APIMetrics) *RunService {
	return &RunService{
		workspace: workspace,
		runner:    entryRunner,
		publisher: publisher,
		locks:     workspace.locks,
		metrics:   metrics,
		logger:    utils.GetLogger(),
	}
}

// Run executes the entry once all of its variables have values. There is no
// timeout; cancelling ctx disconnects from the runner. A transport failure
// is recorded on the entry and is not returned as an error.
func (s *RunService) Run(ctx context.Context, chapterPath, entryID string) (*RunReport, error) {
	key := runKey(chapterPath, entryID)
	if !s.locks.TryClaim(key) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("Entry %s is already running", entryID), nil)
	}
	defer s.locks.Release(key)

	var runnable *models.RunnableEntry
	err := s.workspace.withEntry(chapterPath, entryID, true, func(loaded *loadedChapter, entry *models.Entry) error {
		if !models.DoAllVariablesHaveValues(entry) {
			return apperrors.NewValidationError(
				fmt.Sprintf("Missing values for %s", strings.Join(unboundVariables(entry), ", ")), nil)
		}
		entry.Output = ""
		entry.Failed = false
		entry.Error = ""
		runnable = models.CreateRunnableEntry(entry, loaded.chapter.WorkPath)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(chapterPath, entryID, RunEventStarted, "")
	s.logger.Info("Running entry", map[string]interface{}{
		"chapter":  chapterPath,
		"entry_id": entryID,
		"type":     runnable.Type,
	})

	started := time.Now()
	outcome, runErr := s.runner.Run(ctx, runnable, func(message runner.RunMessage) {
		s.appendOutput(chapterPath, entryID, message.Content)
		s.publish(chapterPath, entryID, RunEventOutput, message.Content)
	})
	if s.metrics != nil {
		s.metrics.RecordRun(runnable.Type, runErr != nil, time.Since(started))
	}

	report := &RunReport{Outcome: outcome.Content}
	err = s.workspace.withEntry(chapterPath, entryID, true, func(_ *loadedChapter, entry *models.Entry) error {
		if runErr != nil {
			entry.Failed = true
			entry.Error = fmt.Sprintf("Failed to run entry (%s)", apperrors.FormatError(runErr))
		}
		report.Entry = s.workspace.entryView(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if runErr != nil {
		s.publish(chapterPath, entryID, RunEventFailed, report.Entry.Error)
		s.logger.Error("Run failed", map[string]interface{}{
			"chapter":  chapterPath,
			"entry_id": entryID,
			"error":    runErr,
		})
	} else {
		s.publish(chapterPath, entryID, RunEventOutcome, outcome.Content)
		s.logger.Info("Run finished", map[string]interface{}{
			"chapter":  chapterPath,
			"entry_id": entryID,
			"duration": time.Since(started).Milliseconds(),
		})
	}
	return report, nil
}

// Running reports whether the entry is being run.
func (s *RunService) Running(chapterPath, entryID string) bool {
	return s.locks.IsClaimed(runKey(chapterPath, entryID))
}

func (s *RunService) appendOutput(chapterPath, entryID, content string) {
	err := s.workspace.withEntry(chapterPath, entryID, true, func(_ *loadedChapter, entry *models.Entry) error {
		entry.Output += content
		if !strings.HasSuffix(content, "\n") {
			entry.Output += "\n"
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Dropping run output", map[string]interface{}{
			"chapter":  chapterPath,
			"entry_id": entryID,
			"error":    err,
		})
	}
}

func (s *RunService) publish(chapterPath, entryID, kind, content string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishRunEvent(RunEvent{
		ChapterPath: chapterPath,
		EntryID:     entryID,
		Kind:        kind,
		Content:     content,
	})
}

func runKey(chapterPath, entryID string) string {
	return "run:" + chapterPath + "#" + entryID
}
