package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gradesync-api/internal/models"
)

type gradeWriter interface {
	SaveGrade(ctx context.Context, record models.GradeRecord) (*models.GradeRecord, error)
}

type offlineBuffer interface {
	IsOnline() bool
	Enqueue(ctx context.Context, sessionID string, record models.GradeRecord, reason string) error
	Entries(ctx context.Context) ([]models.QueuedGrade, error)
	Remove(ctx context.Context, ids []string) error
	Discard(ctx context.Context, sessionID string, studentIDs []string) error
	RecordFailure(ctx context.Context, id, reason string)
	Len(ctx context.Context) (int, error)
}

// SaveResult aggregates a save batch. Per-student failures never surface as errors;
// the counts are the contract.
type SaveResult struct {
	SuccessCount int
	ErrorCount   int
	QueuedCount  int
	Offline      bool
	// Saved holds the server copy for each student that was persisted.
	Saved map[string]models.GradeRecord
	// Sent holds the pending version each request carried.
	Sent     map[string]models.GradeRecord
	Failures []models.SaveFailure
}

// Outcome classifies the batch for user-facing messaging.
func (r *SaveResult) Outcome() models.SaveOutcome {
	switch {
	case r == nil || (len(r.Sent) == 0 && !r.Offline):
		return models.SaveOutcomeNothing
	case r.Offline:
		return models.SaveOutcomeOffline
	case r.ErrorCount == 0:
		return models.SaveOutcomeSucceeded
	case r.SuccessCount == 0:
		return models.SaveOutcomeFailed
	default:
		return models.SaveOutcomePartial
	}
}

// ReplayedGrade pairs a queue entry with the record the server confirmed.
type ReplayedGrade struct {
	Entry models.QueuedGrade
	Saved models.GradeRecord
}

// FlushResult aggregates an offline-queue replay.
type FlushResult struct {
	Attempted int
	Replayed  []ReplayedGrade
	Failures  []models.SaveFailure
	Remaining int
	Skipped   bool
}

// SaveReconciler persists pending edits one request per student.
type SaveReconciler struct {
	api         gradeWriter
	queue       offlineBuffer
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
	// syncMu serializes saves with flushes so a replayed queue entry can never
	// reach the server after a newer save of the same grade.
	syncMu sync.Mutex
}

// NewSaveReconciler constructs a reconciler. A concurrency of 1 sends requests
// one after another.
func NewSaveReconciler(api gradeWriter, queue offlineBuffer, concurrency int, metrics *MetricsService, logger *zap.Logger) *SaveReconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaveReconciler{api: api, queue: queue, metrics: metrics, logger: logger, concurrency: concurrency}
}

// Save persists every pending record. When offline nothing touches the network
// and every record is queued instead. Failed records are queued for retry. The
// store is not modified; callers promote Saved records themselves. Save waits
// for a running flush to finish.
func (r *SaveReconciler) Save(ctx context.Context, sessionID string, pending map[string]models.GradeRecord) *SaveResult {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	result := &SaveResult{
		Saved: make(map[string]models.GradeRecord),
		Sent:  make(map[string]models.GradeRecord, len(pending)),
	}
	for id, record := range pending {
		result.Sent[id] = record
	}
	if len(pending) == 0 {
		return result
	}

	if !r.queue.IsOnline() {
		result.Offline = true
		for _, studentID := range sortedKeys(pending) {
			if err := r.queue.Enqueue(ctx, sessionID, pending[studentID], "offline"); err != nil {
				result.ErrorCount++
				result.Failures = append(result.Failures, models.SaveFailure{StudentID: studentID, GradeID: pending[studentID].ID, Reason: err.Error()})
				continue
			}
			result.QueuedCount++
		}
		r.metrics.RecordGradeSaves("queued", result.QueuedCount)
		r.logger.Info("grades held offline", zap.String("session_id", sessionID), zap.Int("queued", result.QueuedCount))
		return result
	}

	var mu sync.Mutex
	r.persistAll(ctx, sortedKeys(pending), func(ctx context.Context, studentID string) {
		record := pending[studentID]
		saved, err := r.api.SaveGrade(ctx, record)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.ErrorCount++
			result.Failures = append(result.Failures, models.SaveFailure{StudentID: studentID, GradeID: record.ID, Reason: err.Error()})
			if qErr := r.queue.Enqueue(ctx, sessionID, record, err.Error()); qErr == nil {
				result.QueuedCount++
			}
			return
		}
		result.SuccessCount++
		result.Saved[studentID] = *saved
	})

	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].StudentID < result.Failures[j].StudentID })
	if len(result.Saved) > 0 {
		saved := make([]string, 0, len(result.Saved))
		for studentID := range result.Saved {
			saved = append(saved, studentID)
		}
		if err := r.queue.Discard(ctx, sessionID, saved); err != nil {
			r.logger.Warn("failed to discard superseded queued grades", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	r.metrics.RecordGradeSaves("success", result.SuccessCount)
	r.metrics.RecordGradeSaves("error", result.ErrorCount)
	r.logger.Info("grade save batch finished",
		zap.String("session_id", sessionID),
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount),
	)
	return result
}

// Flush replays the offline queue. Entries that persist are removed; the rest
// stay queued with their attempt counter bumped. Flushes never overlap each
// other or a save.
func (r *SaveReconciler) Flush(ctx context.Context) (*FlushResult, error) {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	result := &FlushResult{}
	if !r.queue.IsOnline() {
		result.Skipped = true
		remaining, err := r.queue.Len(ctx)
		result.Remaining = remaining
		return result, err
	}
	entries, err := r.queue.Entries(ctx)
	if err != nil {
		return nil, err
	}
	result.Attempted = len(entries)
	if len(entries) > 0 {
		result.Replayed, result.Failures = r.Replay(ctx, entries)
		ids := make([]string, 0, len(result.Replayed))
		for _, replayed := range result.Replayed {
			ids = append(ids, replayed.Entry.ID)
		}
		if err := r.queue.Remove(ctx, ids); err != nil {
			return nil, err
		}
	}
	remaining, err := r.queue.Len(ctx)
	if err != nil {
		return nil, err
	}
	result.Remaining = remaining
	r.logger.Info("offline queue flushed",
		zap.Int("attempted", result.Attempted),
		zap.Int("replayed", len(result.Replayed)),
		zap.Int("failed", len(result.Failures)),
		zap.Int("remaining", result.Remaining),
	)
	return result, nil
}

// Replay persists queued entries without re-queueing failures.
func (r *SaveReconciler) Replay(ctx context.Context, entries []models.QueuedGrade) ([]ReplayedGrade, []models.SaveFailure) {
	byID := make(map[string]models.QueuedGrade, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
		ids = append(ids, entry.ID)
	}

	var (
		mu       sync.Mutex
		replayed []ReplayedGrade
		failures []models.SaveFailure
	)
	r.persistAll(ctx, ids, func(ctx context.Context, id string) {
		entry := byID[id]
		saved, err := r.api.SaveGrade(ctx, entry.Record)
		if err != nil {
			r.queue.RecordFailure(ctx, entry.ID, err.Error())
			mu.Lock()
			failures = append(failures, models.SaveFailure{StudentID: entry.StudentID, GradeID: entry.Record.ID, Reason: err.Error()})
			mu.Unlock()
			return
		}
		mu.Lock()
		replayed = append(replayed, ReplayedGrade{Entry: entry, Saved: *saved})
		mu.Unlock()
	})

	r.metrics.RecordGradeSaves("replayed", len(replayed))
	r.metrics.RecordGradeSaves("error", len(failures))
	return replayed, failures
}

// persistAll runs fn for every key with at most r.concurrency calls in flight.
// fn handles its own failures so one student never cancels another.
func (r *SaveReconciler) persistAll(ctx context.Context, keys []string, fn func(context.Context, string)) {
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			fn(ctx, key)
			return nil
		})
	}
	_ = g.Wait()
}

func sortedKeys(m map[string]models.GradeRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
