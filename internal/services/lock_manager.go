// internal/services/lock_manager.go
package services

import (
	"context"
	"sync"
	"time"
)

const (
	maxIdleLocks = 200
	lockTimeout  = 30 * time.Minute
)

// LockManager hands out one RWMutex per chapter and tracks operations that
// must not run twice at the same time, such as a save of the same entry.
type LockManager struct {
	chapterLocks map[string]*LockInfo
	globalLock   sync.RWMutex

	claims   map[string]time.Time
	claimsMu sync.Mutex
}

// LockInfo wraps a chapter lock and its last use.
type LockInfo struct {
	Mutex    *sync.RWMutex
	LastUsed time.Time
}

func NewLockManager() *LockManager {
	return &LockManager{
		chapterLocks: make(map[string]*LockInfo),
		claims:       make(map[string]time.Time),
	}
}

// GetChapterLock returns the lock of the chapter, creating it on first use.
func (lm *LockManager) GetChapterLock(chapterPath string) *sync.RWMutex {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	if lockInfo, exists := lm.chapterLocks[chapterPath]; exists {
		lockInfo.LastUsed = time.Now()
		return lockInfo.Mutex
	}

	lockInfo := &LockInfo{Mutex: &sync.RWMutex{}, LastUsed: time.Now()}
	lm.chapterLocks[chapterPath] = lockInfo
	return lockInfo.Mutex
}

// ExecuteWithChapterLock runs fn while holding the chapter's write lock.
func (lm *LockManager) ExecuteWithChapterLock(chapterPath string, fn func() error) error {
	lock := lm.GetChapterLock(chapterPath)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithChapterReadLock runs fn while holding the chapter's read lock.
func (lm *LockManager) ExecuteWithChapterReadLock(chapterPath string, fn func() error) error {
	lock := lm.GetChapterLock(chapterPath)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

// TryClaim marks key as in flight. It returns false when key is already
// claimed.
func (lm *LockManager) TryClaim(key string) bool {
	lm.claimsMu.Lock()
	defer lm.claimsMu.Unlock()

	if _, claimed := lm.claims[key]; claimed {
		return false
	}
	lm.claims[key] = time.Now()
	return true
}

// Release ends a claim taken with TryClaim.
func (lm *LockManager) Release(key string) {
	lm.claimsMu.Lock()
	defer lm.claimsMu.Unlock()
	delete(lm.claims, key)
}

// IsClaimed reports whether key is in flight.
func (lm *LockManager) IsClaimed(key string) bool {
	lm.claimsMu.Lock()
	defer lm.claimsMu.Unlock()
	_, claimed := lm.claims[key]
	return claimed
}

// InFlight returns the number of claimed keys.
func (lm *LockManager) InFlight() int {
	lm.claimsMu.Lock()
	defer lm.claimsMu.Unlock()
	return len(lm.claims)
}

// StartCleanup drops idle chapter locks every interval until ctx is done.
func (lm *LockManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lm.cleanupUnusedLocks()
			}
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// chapter locks are held briefly, so one idle for lockTimeout is free
	if len(lm.chapterLocks) <= maxIdleLocks {
		return
	}

	now := time.Now()
	for chapterPath, lockInfo := range lm.chapterLocks {
		if now.Sub(lockInfo.LastUsed) > lockTimeout {
			delete(lm.chapterLocks, chapterPath)
		}
	}
}
