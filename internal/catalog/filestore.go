package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/dwizi/fixdesk/internal/fsutil"
)

// FileStore keeps the catalog as a JSON array on disk. Hand-edited files may
// contain comments and trailing commas.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) ReadAll(ctx context.Context) ([]IssueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Append rewrites the whole file with record added. A malformed file is
// replaced with valid content holding only the new record. The rewrite holds
// the file lock so a concurrent fixdesk process cannot drop an entry.
func (s *FileStore) Append(ctx context.Context, record IssueRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := fsutil.Lock(ctx, s.path)
	if err != nil {
		return fmt.Errorf("lock catalog file: %w", err)
	}
	defer unlock()
	records, err := s.readLocked()
	if err != nil {
		return err
	}
	records = append(records, record)
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, append(payload, '\n'))
}

func (s *FileStore) readLocked() ([]IssueRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var records []IssueRecord
	if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
		s.logger.Error("catalog file is malformed, treating as empty", "path", s.path, "error", err)
		return nil, nil
	}
	return records, nil
}
