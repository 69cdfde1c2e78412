package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals an absent record; absence is not an exceptional state.
var ErrNotFound = errors.New("record not found")

// createdAtLayout is fixed-width so lexicographic comparison in SQL matches
// chronological order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// JobRepository handles job record persistence.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create upserts the full record with a server-assigned UTC creation
// timestamp. Status defaults to pending when unset.
func (r *JobRepository) Create(ctx context.Context, record *JobRecord) error {
	if record.ID == "" {
		return errors.New("job record requires an id")
	}
	if record.Status == "" {
		record.Status = JobStatusPending
	}
	record.CreatedAt = time.Now().UTC()

	query := `
		INSERT OR REPLACE INTO job_records (id, status, payload, result, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, string(record.Status),
		nullableJSON(record.Payload), nullableJSON(record.Result),
		record.CreatedAt.Format(createdAtLayout),
	)
	return err
}

// GetByID retrieves a record by ticket id.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*JobRecord, error) {
	query := `
		SELECT id, status, payload, result, created_at
		FROM job_records WHERE id = ?
	`
	var (
		record    JobRecord
		status    string
		payload   sql.NullString
		result    sql.NullString
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &status, &payload, &result, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	record.Status = JobStatus(status)
	if payload.Valid {
		record.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		record.Result = json.RawMessage(result.String)
	}
	record.CreatedAt, err = time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", id, err)
	}
	return &record, nil
}

// UpdateStatusAndResult mutates only the status and result columns; payload
// and creation timestamp are untouched.
func (r *JobRepository) UpdateStatusAndResult(ctx context.Context, id string, status JobStatus, result json.RawMessage) error {
	query := `UPDATE job_records SET status = ?, result = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, string(status), nullableJSON(result), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes all records created before now minus age and
// returns the number removed.
func (r *JobRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(createdAtLayout)

	res, err := r.db.ExecContext(ctx, `DELETE FROM job_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a record by ticket id and reports whether one existed.
func (r *JobRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_records WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullableJSON(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
