// Package datastore is a small JSON-backed document store. All durable
// bot state (profile, heartbeat bookkeeping, mood arc, self model) lives
// in one file as a map of named documents, flushed atomically.
package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds configuration options for the DataStore.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
}

// DefaultConfig returns a default configuration for the given file path.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 30 * time.Second,
		BackupCount:      2,
	}
}

// DataStore keeps documents in memory and persists them to a single JSON file.
type DataStore struct {
	mu           sync.RWMutex
	data         map[string]any
	file         string
	config       *Config
	lastChecksum string

	closeMu sync.Mutex
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a DataStore with default configuration.
func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig creates a DataStore, loading existing data if the file exists.
func NewWithConfig(config *Config) (*DataStore, error) {
	if config == nil || config.FilePath == "" {
		return nil, fmt.Errorf("datastore: file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("datastore: failed to create directory: %w", err)
	}

	ds := &DataStore{
		data:   make(map[string]any),
		file:   config.FilePath,
		config: config,
		done:   make(chan struct{}),
	}

	if _, err := os.Stat(config.FilePath); os.IsNotExist(err) {
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("datastore: failed to create empty file: %w", err)
		}
	} else if err == nil {
		ds.loadFromFile()
	} else {
		return nil, fmt.Errorf("datastore: failed to stat file: %w", err)
	}

	ds.wg.Add(1)
	go ds.autoSave()

	return ds, nil
}

// Add stores a document under key. The value is kept as-is until save.
func (ds *DataStore) Add(key string, value any) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data[key] = value
}

// Get retrieves a document by key.
func (ds *DataStore) Get(key string) (any, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	value, exists := ds.data[key]
	return value, exists
}

// Delete removes a document.
func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.data, key)
}

// Keys returns all document keys.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	return keys
}

// SaveToFile forces an immediate flush to disk.
func (ds *DataStore) SaveToFile() error {
	return ds.saveToFile()
}

// Close stops the autosave routine and performs a final save.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	close(ds.done)
	ds.closeMu.Unlock()

	ds.wg.Wait()
	return ds.saveToFile()
}

func (ds *DataStore) saveToFile() error {
	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: failed to marshal data: %w", err)
	}

	checksum := ds.checksum(data)
	if checksum == ds.lastChecksum {
		return nil
	}

	if ds.config.BackupCount > 0 {
		ds.rotateBackups()
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}
	ds.lastChecksum = checksum
	return nil
}

// loadFromFile reads the backing file. Corrupt JSON leaves the store empty;
// callers fall back to their documented defaults per document.
func (ds *DataStore) loadFromFile() {
	data, err := os.ReadFile(ds.file)
	if err != nil {
		return
	}
	var loaded map[string]any
	if err := json.Unmarshal(data, &loaded); err != nil {
		return
	}
	ds.mu.Lock()
	ds.data = loaded
	ds.mu.Unlock()
	ds.lastChecksum = ds.checksum(data)
}

// writeFileAtomic writes via temp file + rename so a crash mid-write never
// leaves a torn document on disk.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmpFile := ds.file + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("datastore: failed to write temp file: %w", err)
	}

	f, err := os.OpenFile(tmpFile, os.O_RDWR, 0644)
	if err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("datastore: failed to reopen temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("datastore: failed to sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpFile, ds.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("datastore: failed to rename temp file: %w", err)
	}
	return nil
}

func (ds *DataStore) rotateBackups() {
	if _, err := os.Stat(ds.file); os.IsNotExist(err) {
		return
	}
	timestamp := time.Now().Format("20060102_150405")
	backup := fmt.Sprintf("%s.backup.%s", ds.file, timestamp)
	if data, err := os.ReadFile(ds.file); err == nil {
		_ = os.WriteFile(backup, data, 0644)
	}

	matches, err := filepath.Glob(ds.file + ".backup.*")
	if err != nil || len(matches) <= ds.config.BackupCount {
		return
	}
	// Names embed timestamps, so lexical order is chronological.
	for len(matches) > ds.config.BackupCount {
		oldest := matches[0]
		for _, m := range matches[1:] {
			if m < oldest {
				oldest = m
			}
		}
		os.Remove(oldest)
		next := matches[:0]
		for _, m := range matches {
			if m != oldest {
				next = append(next, m)
			}
		}
		matches = next
	}
}

func (ds *DataStore) autoSave() {
	defer ds.wg.Done()
	ticker := time.NewTicker(ds.config.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.done:
			return
		case <-ticker.C:
			_ = ds.saveToFile()
		}
	}
}

func (ds *DataStore) checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
