package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"deskbot/internal/logging"
)

// Archive persists samples and feedback in SQLite so metrics survive
// restarts.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the archive database.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	a := &Archive{db: db}
	if err := a.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Metrics("opened metrics archive at %s", path)
	return a, nil
}

func (a *Archive) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		response_time_ms INTEGER NOT NULL,
		escalated INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		message_length INTEGER NOT NULL,
		response_length INTEGER NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp);
	CREATE INDEX IF NOT EXISTS idx_samples_user ON samples(user_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON feedback(timestamp);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create archive tables: %w", err)
	}
	return nil
}

// SaveSample inserts one interaction sample.
func (a *Archive) SaveSample(s Sample) error {
	_, err := a.db.Exec(
		`INSERT INTO samples (user_id, intent, response_time_ms, escalated, failed, message_length, response_length, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Intent, s.ResponseTime.Milliseconds(), boolToInt(s.Escalated), boolToInt(s.Failed),
		s.MessageLen, s.ResponseLen, s.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}
	return nil
}

// SaveFeedback inserts one feedback entry.
func (a *Archive) SaveFeedback(f Feedback) error {
	_, err := a.db.Exec(
		`INSERT INTO feedback (user_id, rating, comment, timestamp) VALUES (?, ?, ?, ?)`,
		f.UserID, f.Rating, f.Comment, f.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// LoadSamples returns all archived samples in timestamp order.
func (a *Archive) LoadSamples() ([]Sample, error) {
	rows, err := a.db.Query(
		`SELECT user_id, intent, response_time_ms, escalated, failed, message_length, response_length, timestamp
		 FROM samples ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var ms int64
		var escalated, failed int
		if err := rows.Scan(&s.UserID, &s.Intent, &ms, &escalated, &failed, &s.MessageLen, &s.ResponseLen, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.ResponseTime = time.Duration(ms) * time.Millisecond
		s.Escalated = escalated != 0
		s.Failed = failed != 0
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// LoadFeedback returns all archived feedback in timestamp order.
func (a *Archive) LoadFeedback() ([]Feedback, error) {
	rows, err := a.db.Query(`SELECT user_id, rating, comment, timestamp FROM feedback ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	defer rows.Close()

	var feedback []Feedback
	for rows.Next() {
		var f Feedback
		var comment sql.NullString
		if err := rows.Scan(&f.UserID, &f.Rating, &comment, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f.Comment = comment.String
		feedback = append(feedback, f)
	}
	return feedback, rows.Err()
}

// Prune deletes archived rows older than the retention window. Returns
// how many samples were removed.
func (a *Archive) Prune(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC()

	res, err := a.db.Exec(`DELETE FROM samples WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := a.db.Exec(`DELETE FROM feedback WHERE timestamp < ?`, cutoff); err != nil {
		return removed, fmt.Errorf("failed to prune feedback: %w", err)
	}
	return removed, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
