// internal/services/edit_service.go
package services

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Corphon/BookRunner/internal/errors"
	"github.com/Corphon/BookRunner/internal/models"
	"github.com/Corphon/BookRunner/internal/utils"
)

// SaveReport is the result of a save request.
type SaveReport struct {
	Outcome models.SaveOutcome `json:"outcome"`
	Saved   bool               `json:"saved"`
	Entry   EntryView          `json:"entry"`
}

// EditService drives the edit state of entries: Viewing, Editing and the
// save that leads back to Viewing.
type EditService struct {
	workspace  *Workspace
	persister  EntryPersister
	projection models.Projection
	locks      *LockManager
	metrics    *EditMetrics
	logger     *utils.Logger
}

func NewEditService(workspace *Workspace, persister EntryPersister, projection models.Projection, metrics *EditMetrics) *EditService {
	return &EditService{
		workspace:  workspace,
		persister:  persister,
		projection: projection,
		locks:      workspace.locks,
		metrics:    metrics,
		logger:     utils.GetLogger(),
	}
}

// StartEdit switches the entry to Editing.
func (s *EditService) StartEdit(chapterPath, entryID string) (*EntryView, error) {
	return s.setEdit(chapterPath, entryID, true)
}

// Cancel switches the entry back to Viewing without saving.
func (s *EditService) Cancel(chapterPath, entryID string) (*EntryView, error) {
	if s.locks.IsClaimed(saveKey(chapterPath, entryID)) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("Entry %s is being saved", entryID), nil)
	}
	return s.setEdit(chapterPath, entryID, false)
}

func (s *EditService) setEdit(chapterPath, entryID string, edit bool) (*EntryView, error) {
	var view EntryView
	err := s.workspace.withEntry(chapterPath, entryID, true, func(_ *loadedChapter, entry *models.Entry) error {
		entry.Edit = edit
		entry.Error = ""
		view = s.workspace.entryView(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Save validates the draft against the entry and persists it when it
// changed. Only one save per entry may be in flight.
//
// A failed persistence call is not returned as an error: the entry keeps
// editing, its persisted fields are restored and its Error explains why.
func (s *EditService) Save(ctx context.Context, chapterPath, entryID string, draft []byte) (*SaveReport, error) {
	key := saveKey(chapterPath, entryID)
	if !s.locks.TryClaim(key) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("Entry %s is already being saved", entryID), nil)
	}
	defer s.locks.Release(key)

	var (
		report    SaveReport
		candidate *models.SaveEntry
		snapshot  models.Entry
		ref       models.ChapterRef
		owner     *loadedChapter
	)

	err := s.workspace.withEntry(chapterPath, entryID, true, func(loaded *loadedChapter, entry *models.Entry) error {
		owner = loaded
		if !entry.Edit {
			return apperrors.NewValidationError(fmt.Sprintf("Entry %s is not being edited", entryID), nil)
		}

		content, err := models.DecodeDraft(entry, draft)
		if err != nil {
			return apperrors.NewValidationError("Invalid entry content", err)
		}

		result := models.EvaluateSave(entry, content, s.projection)
		report.Outcome = result.Outcome

		switch result.Outcome {
		case models.NotChanged:
			entry.Edit = false
			entry.Error = ""
		case models.Changed:
			entry.Error = ""
			candidate = result.Entry
			snapshot = entry.Persisted()
			ref = models.ChapterRef{
				BookPath:    loaded.chapter.BookPath,
				WorkPath:    loaded.chapter.WorkPath,
				ChapterPath: chapterPath,
			}
		}
		report.Entry = s.workspace.entryView(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOutcome(report.Outcome)
	if candidate == nil {
		return &report, nil
	}

	started := time.Now()
	canonical, saveErr := s.persister.SaveEntry(ctx, ref, candidate)
	if saveErr == nil && canonical == nil {
		saveErr = apperrors.NewProcessingError("The book service returned no entry", nil)
	}
	s.metrics.RecordSave(time.Since(started), saveErr != nil)

	err = s.workspace.withEntry(chapterPath, entryID, true, func(loaded *loadedChapter, entry *models.Entry) error {
		if loaded != owner {
			// reloaded while the call was in flight; the fresh entry is left alone
			report.Saved = saveErr == nil
			report.Entry = s.workspace.entryView(entry)
			return nil
		}
		if saveErr != nil {
			entry.ReplacePersisted(snapshot)
			entry.Error = fmt.Sprintf("Failed to save entry (%s)", apperrors.FormatError(saveErr))
		} else {
			entry.ReplacePersisted(*canonical)
			entry.Edit = false
			entry.Error = ""
			report.Saved = true
		}
		loaded.rebind(entry)
		report.Entry = s.workspace.entryView(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if saveErr != nil {
		s.logger.Error("Failed to save entry", map[string]interface{}{
			"chapter":  chapterPath,
			"entry_id": entryID,
			"error":    saveErr,
		})
	} else {
		s.logger.Info("Entry saved", map[string]interface{}{
			"chapter":  chapterPath,
			"entry_id": entryID,
			"type":     candidate.Type,
		})
	}
	return &report, nil
}

func saveKey(chapterPath, entryID string) string {
	return "save:" + chapterPath + "#" + entryID
}
