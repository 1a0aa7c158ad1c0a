package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/gradesync-api/internal/models"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

const offlineQueueSchema = `CREATE TABLE IF NOT EXISTS pending_grade_syncs (
	id            UUID PRIMARY KEY,
	session_id    TEXT NOT NULL,
	assessment_id TEXT NOT NULL,
	student_id    TEXT NOT NULL,
	record        JSONB NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	enqueued_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, student_id)
)`

type pendingGradeRow struct {
	ID           string    `db:"id"`
	SessionID    string    `db:"session_id"`
	AssessmentID string    `db:"assessment_id"`
	StudentID    string    `db:"student_id"`
	Record       []byte    `db:"record"`
	Attempts     int       `db:"attempts"`
	LastError    string    `db:"last_error"`
	EnqueuedAt   time.Time `db:"enqueued_at"`
}

func (row pendingGradeRow) toModel() (models.QueuedGrade, error) {
	entry := models.QueuedGrade{
		ID:           row.ID,
		SessionID:    row.SessionID,
		AssessmentID: row.AssessmentID,
		StudentID:    row.StudentID,
		Attempts:     row.Attempts,
		LastError:    row.LastError,
		EnqueuedAt:   row.EnqueuedAt,
	}
	if err := json.Unmarshal(row.Record, &entry.Record); err != nil {
		return entry, fmt.Errorf("decode queued grade %s: %w", row.ID, err)
	}
	return entry, nil
}

// OfflineQueueRepository persists queued grades in the pending_grade_syncs table.
type OfflineQueueRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewOfflineQueueRepository constructs the repository.
func NewOfflineQueueRepository(db *sqlx.DB, metrics queryObserver) *OfflineQueueRepository {
	return &OfflineQueueRepository{db: db, metrics: metrics}
}

// EnsureSchema creates the queue table when it does not exist yet.
func (r *OfflineQueueRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, offlineQueueSchema); err != nil {
		return fmt.Errorf("create pending_grade_syncs: %w", err)
	}
	return nil
}

// Put upserts the entry keyed by session and student; the newest edit wins and
// its attempt counter restarts.
func (r *OfflineQueueRepository) Put(ctx context.Context, entry models.QueuedGrade) error {
	defer r.observe("offline_queue_put", time.Now())
	record, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encode queued grade: %w", err)
	}
	row := pendingGradeRow{
		ID:           entry.ID,
		SessionID:    entry.SessionID,
		AssessmentID: entry.AssessmentID,
		StudentID:    entry.StudentID,
		Record:       record,
		Attempts:     entry.Attempts,
		LastError:    entry.LastError,
		EnqueuedAt:   entry.EnqueuedAt,
	}
	const query = `INSERT INTO pending_grade_syncs (id, session_id, assessment_id, student_id, record, attempts, last_error, enqueued_at)
	VALUES (:id, :session_id, :assessment_id, :student_id, :record, :attempts, :last_error, :enqueued_at)
	ON CONFLICT (session_id, student_id)
	DO UPDATE SET id = EXCLUDED.id, assessment_id = EXCLUDED.assessment_id, record = EXCLUDED.record,
		attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error, enqueued_at = EXCLUDED.enqueued_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert queued grade: %w", err)
	}
	return nil
}

// List returns entries oldest first.
func (r *OfflineQueueRepository) List(ctx context.Context) ([]models.QueuedGrade, error) {
	defer r.observe("offline_queue_list", time.Now())
	const query = `SELECT id, session_id, assessment_id, student_id, record, attempts, last_error, enqueued_at
	FROM pending_grade_syncs ORDER BY enqueued_at ASC, id ASC`
	var rows []pendingGradeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list queued grades: %w", err)
	}
	entries := make([]models.QueuedGrade, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes entries by id.
func (r *OfflineQueueRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	defer r.observe("offline_queue_delete", time.Now())
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_grade_syncs WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete queued grades: %w", err)
	}
	return nil
}

// MarkAttempt bumps the attempt counter and stores the last failure reason.
func (r *OfflineQueueRepository) MarkAttempt(ctx context.Context, id, lastError string) error {
	defer r.observe("offline_queue_mark_attempt", time.Now())
	const query = `UPDATE pending_grade_syncs SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("mark queued grade attempt: %w", err)
	}
	return nil
}

// DiscardFor removes the entries of a session for the given students.
func (r *OfflineQueueRepository) DiscardFor(ctx context.Context, sessionID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	defer r.observe("offline_queue_discard", time.Now())
	const query = `DELETE FROM pending_grade_syncs WHERE session_id = $1 AND student_id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, sessionID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("discard queued grades: %w", err)
	}
	return nil
}

// Count returns the number of queued entries.
func (r *OfflineQueueRepository) Count(ctx context.Context) (int, error) {
	defer r.observe("offline_queue_count", time.Now())
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM pending_grade_syncs`); err != nil {
		return 0, fmt.Errorf("count queued grades: %w", err)
	}
	return count, nil
}

func (r *OfflineQueueRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
