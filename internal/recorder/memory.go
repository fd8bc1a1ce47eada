package recorder

import (
	"sync"

	"TwoDSentinel/internal/model"
)

// MemoryRecorder keeps history in process memory. Used in tests and as a
// fallback when the configured backend cannot be opened.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []model.HistoryRecord
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (m *MemoryRecorder) Append(rec *model.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryRecorder) ReadAll() ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.HistoryRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryRecorder) Close() error { return nil }
