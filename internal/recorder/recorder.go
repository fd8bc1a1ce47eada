package recorder

import (
	"fmt"
	"strings"

	"TwoDSentinel/internal/model"
)

// HistoryLog is the append-only store of closed sessions.
type HistoryLog interface {
	// Append durably adds rec after all existing records.
	Append(rec *model.HistoryRecord) error
	// ReadAll returns every record in append order.
	ReadAll() ([]model.HistoryRecord, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// Open creates the history log for backend. path is the database or JSON file path.
func Open(backend, path string) (HistoryLog, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSQLite, "":
		return NewSQLiteRecorder(path)
	case BackendJSON:
		return NewJSONRecorder(path)
	case BackendMemory:
		return NewMemoryRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
