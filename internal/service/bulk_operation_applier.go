package service

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

// BulkResult lists the records produced by one bulk operation.
type BulkResult struct {
	Operation string
	Records   []models.GradeRecord
	Skipped   []string
}

// Applied returns the number of students that received a new pending record.
func (r *BulkResult) Applied() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// BulkOperationApplier turns an operation and a student selection into pending edits.
type BulkOperationApplier struct {
	clampScores bool
	now         func() time.Time
	logger      *zap.Logger
}

// NewBulkOperationApplier constructs an applier. With clampScores set, every
// produced score is clamped into [0, max score].
func NewBulkOperationApplier(clampScores bool, logger *zap.Logger) *BulkOperationApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkOperationApplier{
		clampScores: clampScores,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// Apply computes a new record for every target and stores it as a local edit.
// Nothing is written when the selection is empty, the operation is nil, or the
// operation cannot be evaluated.
func (a *BulkOperationApplier) Apply(store *GradeStore, assessment models.Assessment, studentIDs []string, op BulkOperation) (*BulkResult, error) {
	targets := uniqueIDs(studentIDs)
	if len(targets) == 0 {
		return nil, appErrors.ErrNoTargets
	}
	if op == nil {
		return nil, appErrors.ErrNoOperation
	}

	env := operationEnv{assessment: assessment}
	if _, ok := op.(CurveSetHighest); ok {
		env.highest = highestScore(store, targets)
		if env.highest <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "set_highest curve requires at least one positive score")
		}
	}

	now := a.now()
	result := &BulkResult{Operation: op.Kind()}
	for _, studentID := range targets {
		existing, ok := store.GetMerged(studentID)
		if !ok && op.requiresExisting() {
			result.Skipped = append(result.Skipped, studentID)
			continue
		}
		record := existing
		if !ok {
			record = models.NewLocalGrade(studentID, assessment.ID, now)
		}
		record.AssessmentID = assessment.ID
		op.apply(&record, env)
		if a.clampScores {
			record.Score = clamp(record.Score, 0, assessment.MaxScore)
		}
		record.Recalculate(assessment.MaxScore)
		record.UpdatedAt = now
		result.Records = append(result.Records, record)
	}

	for _, record := range result.Records {
		if err := store.UpsertLocal(record.StudentID, record); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("bulk operation applied",
		zap.String("operation", result.Operation),
		zap.String("assessment_id", assessment.ID),
		zap.Int("applied", len(result.Records)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func highestScore(store *GradeStore, studentIDs []string) float64 {
	highest := 0.0
	for _, id := range studentIDs {
		if record, ok := store.GetMerged(id); ok && record.Score > highest {
			highest = record.Score
		}
	}
	return highest
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
