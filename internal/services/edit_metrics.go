// internal/services/edit_metrics.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/BookRunner/internal/models"
)

// EditMetrics counts save attempts and their outcomes.
type EditMetrics struct {
	mutex           sync.RWMutex
	outcomes        map[models.SaveOutcome]int64
	totalSaves      int64
	failedSaves     int64
	averageSaveTime time.Duration
	lastReset       time.Time
}

func NewEditMetrics() *EditMetrics {
	return &EditMetrics{
		outcomes:  make(map[models.SaveOutcome]int64),
		lastReset: time.Now(),
	}
}

// RecordOutcome counts one evaluated save.
func (m *EditMetrics) RecordOutcome(outcome models.SaveOutcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.outcomes[outcome]++
}

// RecordSave records a call to the book service.
func (m *EditMetrics) RecordSave(duration time.Duration, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalSaves++
	if failed {
		m.failedSaves++
	}
	m.averageSaveTime = (m.averageSaveTime*time.Duration(m.totalSaves-1) + duration) / time.Duration(m.totalSaves)
}

// GetMetrics returns a snapshot.
func (m *EditMetrics) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	outcomes := make(map[string]int64, len(m.outcomes))
	for outcome, count := range m.outcomes {
		outcomes[outcome.String()] = count
	}

	return map[string]interface{}{
		"outcomes":          outcomes,
		"total_saves":       m.totalSaves,
		"failed_saves":      m.failedSaves,
		"average_save_time": m.averageSaveTime.Milliseconds(),
		"last_reset":        m.lastReset,
	}
}

// ResetMetrics clears every counter.
func (m *EditMetrics) ResetMetrics() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.outcomes = make(map[models.SaveOutcome]int64)
	m.totalSaves = 0
	m.failedSaves = 0
	m.averageSaveTime = 0
	m.lastReset = time.Now()
}
