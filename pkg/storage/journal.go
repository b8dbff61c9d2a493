package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal records submission events, one JSON object per line
type Journal interface {
	Append(event string, data any) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal                { return &NopJournal{} }
func (NopJournal) Append(_ string, _ any) error { return nil }
func (NopJournal) Close() error                 { return nil }

type FileJournal struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

type journalEntry struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Data      any    `json:"data"`
}

// OpenFileJournal appends to path, creating it and its directory if needed
func OpenFileJournal(path string) (*FileJournal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &FileJournal{f: f, now: time.Now}, nil
}

func (j *FileJournal) Append(event string, data any) error {
	line, err := json.Marshal(journalEntry{
		Timestamp: j.now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return os.ErrClosed
	}
	_, err = j.f.Write(append(line, '\n'))
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
