package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"TwoDSentinel/internal/model"
)

// historyFile is the on-disk shape: {"history": [...]}.
type historyFile struct {
	History []model.HistoryRecord `json:"history"`
}

// JSONRecorder keeps history in a single JSON document, rewritten on every append.
type JSONRecorder struct {
	mu      sync.Mutex
	path    string
	records []model.HistoryRecord
}

// NewJSONRecorder loads path if it exists; a missing file starts an empty history.
func NewJSONRecorder(path string) (*JSONRecorder, error) {
	records, err := loadHistory(path)
	if err != nil {
		return nil, err
	}
	logrus.Infof("json recorder opened: %s (%d records)", path, len(records))
	return &JSONRecorder{path: path, records: records}, nil
}

func (r *JSONRecorder) Append(rec *model.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(r.records[:len(r.records):len(r.records)], *rec)
	if err := saveHistory(r.path, next); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	r.records = next
	return nil
}

func (r *JSONRecorder) ReadAll() ([]model.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.HistoryRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *JSONRecorder) Close() error { return nil }

func loadHistory(path string) ([]model.HistoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var f historyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return f.History, nil
}

// saveHistory writes through a temp file and rename so a crash never leaves a truncated file.
func saveHistory(path string, records []model.HistoryRecord) error {
	if records == nil {
		records = []model.HistoryRecord{}
	}
	data, err := json.MarshalIndent(historyFile{History: records}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
