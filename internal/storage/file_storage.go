// internal/storage/file_storage.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/BookRunner/internal/utils"
)

const (
	defaultCacheExpiry  = 5 * time.Minute
	defaultMaxCacheSize = 100
	cleanupInterval     = 2 * time.Minute
)

// FileStorage reads and writes documents below BaseDir. Writes are atomic
// (temp file and rename) and reads go through a small expiring cache.
type FileStorage struct {
	BaseDir string

	fileLocks sync.Map // full path -> *sync.RWMutex

	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int

	logger *utils.Logger
}

// CacheEntry is the cached content of one file.
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage creates baseDir if needed.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  defaultCacheExpiry,
		maxCacheSize: defaultMaxCacheSize,
		logger:       utils.GetLogger(),
	}, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStorage) fullPath(dirPath, filename string) string {
	return filepath.Join(fs.BaseDir, dirPath, filename)
}

// SaveTextFile writes content atomically.
func (fs *FileStorage) SaveTextFile(dirPath, filename string, content []byte) error {
	fullPath := fs.fullPath(dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fs.logger.Warn("Failed to remove temporary file", map[string]interface{}{
				"path":  tempPath,
				"error": removeErr,
			})
		}
		return fmt.Errorf("failed to save file: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// SaveJSONFile writes data as indented JSON.
func (fs *FileStorage) SaveJSONFile(dirPath, filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return fs.SaveTextFile(dirPath, filename, content)
}

// SaveYAMLFile writes data as YAML.
func (fs *FileStorage) SaveYAMLFile(dirPath, filename string, data interface{}) error {
	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return fs.SaveTextFile(dirPath, filename, content)
}

// LoadTextFile returns the file content, from the cache when it is fresh.
// The returned slice must not be modified.
func (fs *FileStorage) LoadTextFile(dirPath, filename string) ([]byte, error) {
	fullPath := fs.fullPath(dirPath, filename)

	if data, ok := fs.cached(fullPath); ok {
		return data, nil
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	// a writer may have refreshed it while we waited
	if data, ok := fs.cached(fullPath); ok {
		return data, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fs.updateCache(fullPath, content)
	return content, nil
}

// LoadJSONFile decodes a JSON file into v.
func (fs *FileStorage) LoadJSONFile(dirPath, filename string, v interface{}) error {
	content, err := fs.LoadTextFile(dirPath, filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to decode JSON %s: %w", filename, err)
	}
	return nil
}

// LoadYAMLFile decodes a YAML file into v. Unknown keys are rejected.
func (fs *FileStorage) LoadYAMLFile(dirPath, filename string, v interface{}) error {
	content, err := fs.LoadTextFile(dirPath, filename)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("failed to decode YAML %s: %w", filename, err)
	}
	return nil
}

// DirExists reports whether dirPath is a directory below BaseDir.
func (fs *FileStorage) DirExists(dirPath string) bool {
	info, err := os.Stat(filepath.Join(fs.BaseDir, dirPath))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists reports whether the file exists.
func (fs *FileStorage) FileExists(dirPath, filename string) bool {
	_, err := os.Stat(fs.fullPath(dirPath, filename))
	return err == nil
}

// ListDirs lists the subdirectories of dirPath, sorted.
func (fs *FileStorage) ListDirs(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, dirPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

// StartCacheCleanup evicts expired entries periodically until ctx is done.
func (fs *FileStorage) StartCacheCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fs.cleanupExpiredCache()
				fs.enforceMaxCacheSize()
			}
		}
	}()
}

func (fs *FileStorage) cached(fullPath string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()

	entry, exists := fs.cache[fullPath]
	if !exists || time.Since(entry.Timestamp) >= fs.cacheExpiry {
		return nil, false
	}
	return entry.Data, true
}

func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &CacheEntry{Data: data, Timestamp: time.Now()}

	if len(fs.cache) > fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time
		for key, entry := range fs.cache {
			if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
			}
		}
		delete(fs.cache, oldestKey)
	}
}

func (fs *FileStorage) cleanupExpiredCache() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.Timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
		}
	}
}

func (fs *FileStorage) enforceMaxCacheSize() {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	if len(fs.cache) <= fs.maxCacheSize {
		return
	}

	keys := make([]string, 0, len(fs.cache))
	for key := range fs.cache {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return fs.cache[keys[i]].Timestamp.Before(fs.cache[keys[j]].Timestamp)
	})

	removeCount := len(keys) - fs.maxCacheSize
	for _, key := range keys[:removeCount] {
		delete(fs.cache, key)
	}
	fs.logger.Debug("Cache size limit enforced", map[string]interface{}{"removed": removeCount})
}

func (fs *FileStorage) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, path)
}
