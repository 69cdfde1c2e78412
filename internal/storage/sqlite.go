package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const jobSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	payload TEXT,
	result TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_records_created_at ON job_records(created_at);
`

// Open opens the job database at dbPath, creating the file and schema on
// first use. WAL mode and a busy timeout keep concurrent readers and the
// single background writer from tripping over each other.
func Open(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping job database: %w", err)
	}
	if _, err := db.Exec(jobSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize job schema: %w", err)
	}
	return db, nil
}
