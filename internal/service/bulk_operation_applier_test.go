package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

var quiz = models.Assessment{ID: "quiz-1", MaxScore: 100, PassMark: 60, Type: models.AssessmentQuiz}

func seededStore(scores map[string]float64) *GradeStore {
	store := NewGradeStore()
	records := make([]models.GradeRecord, 0, len(scores))
	for studentID, score := range scores {
		records = append(records, persistedGrade(studentID, score))
	}
	store.SeedPersisted(records)
	return store
}

func mergedScore(t *testing.T, store *GradeStore, studentID string) models.GradeRecord {
	t.Helper()
	record, ok := store.GetMerged(studentID)
	require.True(t, ok, "no record for %s", studentID)
	return record
}

func TestApplierKeepsDerivedFieldsConsistent(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	ops := []BulkOperation{
		ApplyScore{Value: 73},
		CurveAddPoints{Points: 4.5},
		CurveMultiply{Factor: 1.07},
		LatePenaltyPercentage{Percent: 15},
		LatePenaltyPoints{Points: 2},
		CurveSetHighest{},
		ApplyRubric{Scores: map[string]float64{"a": 33, "b": 41}},
	}
	store := seededStore(map[string]float64{"s-1": 55, "s-2": 81, "s-3": 92})
	targets := []string{"s-1", "s-2", "s-3"}

	for _, op := range ops {
		_, err := applier.Apply(store, quiz, targets, op)
		require.NoError(t, err, op.Kind())
		for _, id := range targets {
			record := mergedScore(t, store, id)
			assert.Equal(t, models.PercentageOf(record.Score, quiz.MaxScore), record.Percentage, op.Kind())
			assert.Equal(t, models.LetterFor(record.Percentage), record.LetterGrade, op.Kind())
		}
	}
}

func TestApplierCurveAndPenaltyScores(t *testing.T) {
	cases := []struct {
		name       string
		start      float64
		op         BulkOperation
		score      float64
		percentage float64
		letter     models.LetterGrade
	}{
		{name: "add points", start: 85, op: CurveAddPoints{Points: 5}, score: 90, percentage: 90, letter: "A"},
		{name: "multiply keeps fraction", start: 85, op: CurveMultiply{Factor: 1.1}, score: 93.5, percentage: 93, letter: "A"},
		{name: "multiply exact", start: 80, op: CurveMultiply{Factor: 1.25}, score: 100, percentage: 100, letter: "A"},
		{name: "penalty points", start: 85, op: LatePenaltyPoints{Points: 3}, score: 82, percentage: 82, letter: "B"},
		{name: "penalty percentage", start: 85, op: LatePenaltyPercentage{Percent: 10}, score: 76, percentage: 76, letter: "C"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore(map[string]float64{"s-1": tc.start})

			_, err := NewBulkOperationApplier(false, nil).Apply(store, quiz, []string{"s-1"}, tc.op)
			require.NoError(t, err)

			record := mergedScore(t, store, "s-1")
			assert.InDelta(t, tc.score, record.Score, 1e-9)
			assert.Equal(t, tc.percentage, record.Percentage)
			assert.Equal(t, tc.letter, record.LetterGrade)
		})
	}
}

func TestApplierApplyScoreIsIdempotent(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 40})
	targets := []string{"s-1", "s-2"}

	_, err := applier.Apply(store, quiz, targets, ApplyScore{Value: 85})
	require.NoError(t, err)
	first := map[string]float64{}
	for _, id := range targets {
		first[id] = mergedScore(t, store, id).Score
	}

	_, err = applier.Apply(store, quiz, targets, ApplyScore{Value: 85})
	require.NoError(t, err)
	for _, id := range targets {
		assert.Equal(t, first[id], mergedScore(t, store, id).Score)
		assert.Equal(t, 85.0, mergedScore(t, store, id).Score)
	}
}

func TestApplierSetHighestCurve(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 60, "s-2": 75, "s-3": 90})

	result, err := applier.Apply(store, quiz, []string{"s-1", "s-2", "s-3"}, CurveSetHighest{})
	require.NoError(t, err)
	assert.Equal(t, "apply_curve/set_highest", result.Operation)

	assert.Equal(t, 100.0, mergedScore(t, store, "s-3").Percentage)
	assert.Equal(t, 66.0, mergedScore(t, store, "s-1").Score)
	assert.Equal(t, 83.0, mergedScore(t, store, "s-2").Score)
	assert.Equal(t, models.LetterA, mergedScore(t, store, "s-3").LetterGrade)
	assert.Equal(t, models.LetterB, mergedScore(t, store, "s-2").LetterGrade)
}

func TestApplierSetHighestRequiresPositiveScore(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 0})

	_, err := applier.Apply(store, quiz, []string{"s-1"}, CurveSetHighest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.False(t, store.HasUnsavedChanges())
}

func TestApplierSkipsStudentsWithoutGrade(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 80})

	result, err := applier.Apply(store, quiz, []string{"s-1", "s-2"}, LatePenaltyPoints{Points: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied())
	assert.Equal(t, []string{"s-2"}, result.Skipped)
	assert.Equal(t, 75.0, mergedScore(t, store, "s-1").Score)
	_, ok := store.GetMerged("s-2")
	assert.False(t, ok)
}

func TestApplierApplyScoreCreatesTemporaryRecords(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := NewGradeStore()

	result, err := applier.Apply(store, quiz, []string{"s-9", "s-9", " "}, ApplyScore{Value: 50})
	require.NoError(t, err)
	require.Equal(t, 1, result.Applied())

	record := mergedScore(t, store, "s-9")
	assert.True(t, record.IsTemporary())
	assert.Equal(t, "quiz-1", record.AssessmentID)
	assert.Equal(t, models.LetterF, record.LetterGrade)
}

func TestApplierLatePenaltyFloors(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 85})

	_, err := applier.Apply(store, quiz, []string{"s-1"}, LatePenaltyPercentage{Percent: 10})
	require.NoError(t, err)

	record := mergedScore(t, store, "s-1")
	assert.Equal(t, 76.0, record.Score)
	assert.Equal(t, models.LetterC, record.LetterGrade)
}

func TestApplierClampsWhenConfigured(t *testing.T) {
	store := seededStore(map[string]float64{"s-1": 98, "s-2": 3})

	_, err := NewBulkOperationApplier(true, nil).Apply(store, quiz, []string{"s-1"}, CurveAddPoints{Points: 10})
	require.NoError(t, err)
	_, err = NewBulkOperationApplier(true, nil).Apply(store, quiz, []string{"s-2"}, LatePenaltyPoints{Points: 10})
	require.NoError(t, err)

	assert.Equal(t, 100.0, mergedScore(t, store, "s-1").Score)
	assert.Equal(t, 0.0, mergedScore(t, store, "s-2").Score)
}

func TestApplierWithoutClampKeepsOutOfRangeScores(t *testing.T) {
	store := seededStore(map[string]float64{"s-1": 98})

	_, err := NewBulkOperationApplier(false, nil).Apply(store, quiz, []string{"s-1"}, CurveAddPoints{Points: 10})
	require.NoError(t, err)

	record := mergedScore(t, store, "s-1")
	assert.Equal(t, 108.0, record.Score)
	assert.Equal(t, models.LetterA, record.LetterGrade)
}

func TestApplierExcuseAndFeedbackKeepScore(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 64})

	_, err := applier.Apply(store, quiz, []string{"s-1"}, Excuse{Reason: "medical"})
	require.NoError(t, err)
	_, err = applier.Apply(store, quiz, []string{"s-1"}, ApplyFeedback{Text: "see me"})
	require.NoError(t, err)
	_, err = applier.Apply(store, quiz, []string{"s-1"}, ApplyFeedback{Text: "after class", Append: true})
	require.NoError(t, err)

	record := mergedScore(t, store, "s-1")
	assert.Equal(t, 64.0, record.Score)
	assert.True(t, record.Excused)
	assert.Equal(t, "medical", record.ExcuseReason)
	assert.Equal(t, "see me\nafter class", record.Feedback)
}

func TestApplierRubricUsesAssessmentCriteria(t *testing.T) {
	essay := models.Assessment{ID: "essay-1", MaxScore: 30, Rubric: []models.RubricCriterion{
		{ID: "argument", MaxPoints: 20},
		{ID: "grammar", MaxPoints: 10},
	}}
	store := NewGradeStore()

	_, err := NewBulkOperationApplier(false, nil).Apply(store, essay, []string{"s-1"}, ApplyRubric{Scores: map[string]float64{"argument": 25, "grammar": 7}})
	require.NoError(t, err)

	record := mergedScore(t, store, "s-1")
	assert.Equal(t, 27.0, record.Score)
	assert.Equal(t, 90.0, record.Percentage)
	assert.Equal(t, map[string]float64{"argument": 20, "grammar": 7}, record.RubricScores)
}

func TestApplierRejectsEmptySelectionAndMissingOperation(t *testing.T) {
	applier := NewBulkOperationApplier(false, nil)
	store := seededStore(map[string]float64{"s-1": 50})

	_, err := applier.Apply(store, quiz, nil, ApplyScore{Value: 1})
	assert.ErrorIs(t, err, appErrors.ErrNoTargets)

	_, err = applier.Apply(store, quiz, []string{"s-1"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrNoOperation)
	assert.False(t, store.HasUnsavedChanges())
}
