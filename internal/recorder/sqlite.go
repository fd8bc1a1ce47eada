package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"TwoDSentinel/internal/model"
)

// SQLiteRecorder persists session history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so API reads don't wait on the tick's write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logrus.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded   INTEGER NOT NULL,
			session    TEXT NOT NULL,
			closed_on  TEXT NOT NULL,
			date       TEXT,
			time       TEXT,
			set_index  TEXT,
			value      TEXT,
			twod       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_closed ON session_history(closed_on, session)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Append(rec *model.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO session_history
		(recorded, session, closed_on, date, time, set_index, value, twod)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), string(rec.Session), rec.ClosedOn,
		rec.Date, rec.Time, rec.Set, rec.Value, rec.TwoD,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) ReadAll() ([]model.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT session, closed_on, date, time, set_index, value, twod
		FROM session_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := make([]model.HistoryRecord, 0)
	for rows.Next() {
		var (
			rec     model.HistoryRecord
			session string
		)
		if err := rows.Scan(&session, &rec.ClosedOn, &rec.Date, &rec.Time, &rec.Set, &rec.Value, &rec.TwoD); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Session = model.Session(session)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	logrus.Info("closing sqlite recorder")
	return r.db.Close()
}
