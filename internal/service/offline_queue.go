package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

// OfflineQueueStore persists queued grades. Put replaces any entry for the same
// session and student so only the newest edit is replayed.
type OfflineQueueStore interface {
	Put(ctx context.Context, entry models.QueuedGrade) error
	List(ctx context.Context) ([]models.QueuedGrade, error)
	Delete(ctx context.Context, ids []string) error
	MarkAttempt(ctx context.Context, id string, lastError string) error
	DiscardFor(ctx context.Context, sessionID string, studentIDs []string) error
	Count(ctx context.Context) (int, error)
}

// Transition describes the effect of a connectivity signal.
type Transition struct {
	From models.ConnectivityState
	To   models.ConnectivityState
}

// Changed reports whether the signal flipped the state.
func (t Transition) Changed() bool { return t.From != t.To }

// Reconnected reports an Offline to Online transition, which should trigger a flush.
func (t Transition) Reconnected() bool {
	return t.From == models.ConnectivityOffline && t.To == models.ConnectivityOnline
}

// OfflineQueue buffers grades that could not be persisted and tracks whether
// saves should reach the network at all.
type OfflineQueue struct {
	store   OfflineQueueStore
	metrics *MetricsService
	logger  *zap.Logger

	mu     sync.RWMutex
	online bool
	now    func() time.Time
}

// NewOfflineQueue constructs a queue starting in the given connectivity state.
func NewOfflineQueue(store OfflineQueueStore, startOnline bool, metrics *MetricsService, logger *zap.Logger) *OfflineQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfflineQueue{
		store:   store,
		metrics: metrics,
		logger:  logger,
		online:  startOnline,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IsOnline reports whether saves should attempt the network.
func (q *OfflineQueue) IsOnline() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.online
}

// State returns the current connectivity state.
func (q *OfflineQueue) State() models.ConnectivityState {
	return stateOf(q.IsOnline())
}

// SetOnline records a connectivity signal and reports the transition.
func (q *OfflineQueue) SetOnline(online bool) Transition {
	q.mu.Lock()
	prev := q.online
	q.online = online
	q.mu.Unlock()

	t := Transition{From: stateOf(prev), To: stateOf(online)}
	if t.Changed() {
		q.logger.Info("connectivity changed", zap.String("from", string(t.From)), zap.String("to", string(t.To)))
	}
	return t
}

// Enqueue stores a grade for later replay.
func (q *OfflineQueue) Enqueue(ctx context.Context, sessionID string, record models.GradeRecord, reason string) error {
	if record.StudentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "queued grade requires a student id")
	}
	entry := models.QueuedGrade{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		AssessmentID: record.AssessmentID,
		StudentID:    record.StudentID,
		Record:       record.Clone(),
		LastError:    reason,
		EnqueuedAt:   q.now(),
	}
	if err := q.store.Put(ctx, entry); err != nil {
		q.logger.Error("failed to enqueue grade", zap.String("session_id", sessionID), zap.String("student_id", record.StudentID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue grade offline")
	}
	q.refreshDepth(ctx)
	return nil
}

// Entries lists queued grades oldest first.
func (q *OfflineQueue) Entries(ctx context.Context) ([]models.QueuedGrade, error) {
	entries, err := q.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offline queue")
	}
	return entries, nil
}

// Remove drops replayed entries.
func (q *OfflineQueue) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.store.Delete(ctx, ids); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove queued grades")
	}
	q.refreshDepth(ctx)
	return nil
}

// Discard drops queued entries of a session for the given students. It is used
// when a newer save superseded them or the edits were reset.
func (q *OfflineQueue) Discard(ctx context.Context, sessionID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	if err := q.store.DiscardFor(ctx, sessionID, studentIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard queued grades")
	}
	q.refreshDepth(ctx)
	return nil
}

// RecordFailure bumps the attempt counter of an entry that failed to replay.
func (q *OfflineQueue) RecordFailure(ctx context.Context, id, reason string) {
	if err := q.store.MarkAttempt(ctx, id, reason); err != nil {
		q.logger.Warn("failed to record replay attempt", zap.String("entry_id", id), zap.Error(err))
	}
}

// Len returns the number of queued grades.
func (q *OfflineQueue) Len(ctx context.Context) (int, error) {
	count, err := q.store.Count(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count offline queue")
	}
	return count, nil
}

func (q *OfflineQueue) refreshDepth(ctx context.Context) {
	if q.metrics == nil {
		return
	}
	if count, err := q.store.Count(ctx); err == nil {
		q.metrics.SetOfflineQueueDepth(count)
	}
}

func stateOf(online bool) models.ConnectivityState {
	if online {
		return models.ConnectivityOnline
	}
	return models.ConnectivityOffline
}
