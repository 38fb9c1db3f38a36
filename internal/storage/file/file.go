package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// Storage implements storage.PreferenceStorage backed by an append-only JSONL
// file. The last record for a key wins when the file is replayed.
type Storage struct {
	filePath    string
	values      map[string]map[string]string // uid/app -> key -> value
	mu          sync.RWMutex
	fileWriteMu sync.Mutex
}

// NewStorage creates a file-backed preference storage at the provided path.
func NewStorage(filePath string) (*Storage, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &Storage{
		filePath: filePath,
		values:   make(map[string]map[string]string),
	}

	if err := s.loadFromFile(); err != nil {
		return nil, err
	}

	return s, nil
}

func bucket(uid, appID string) string {
	return uid + "/" + appID
}

// SetUserValue stores a preference and appends it to the file. The file is
// not part of storage transactions: inside one the write is deferred until
// the transaction commits.
func (s *Storage) SetUserValue(ctx context.Context, uid, appID, key, value string) error {
	record := model.Preference{
		UserID: uid,
		AppID:  appID,
		Key:    key,
		Value:  value,
	}

	if storage.InTransaction(ctx) {
		storage.AfterCommit(ctx, func(context.Context) {
			if err := s.store(record); err != nil {
				log.Error().Err(err).Str("uid", uid).Str("key", key).Msg("Failed to store preference after commit")
			}
		})
		return nil
	}

	return s.store(record)
}

// store appends record and applies it while holding the write lock, so the
// in-memory order always matches the replay order.
func (s *Storage) store(record model.Preference) error {
	s.fileWriteMu.Lock()
	defer s.fileWriteMu.Unlock()

	if err := s.saveRecordToFile(record); err != nil {
		return err
	}

	s.mu.Lock()
	s.apply(record)
	s.mu.Unlock()

	return nil
}

// GetUserValue returns a preference and whether it is set.
func (s *Storage) GetUserValue(ctx context.Context, uid, appID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[bucket(uid, appID)][key]
	return value, ok, nil
}

// UserValues returns every preference of uid for appID.
func (s *Storage) UserValues(ctx context.Context, uid, appID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string)
	for k, v := range s.values[bucket(uid, appID)] {
		result[k] = v
	}
	return result, nil
}

func (s *Storage) apply(record model.Preference) {
	b := bucket(record.UserID, record.AppID)
	if s.values[b] == nil {
		s.values[b] = make(map[string]string)
	}
	s.values[b][record.Key] = record.Value
}

func (s *Storage) loadFromFile() error {
	file, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var record model.Preference
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		s.apply(record)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return nil
}

// saveRecordToFile must be called with fileWriteMu held.
func (s *Storage) saveRecordToFile(record model.Preference) error {
	file, err := os.OpenFile(s.filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}
