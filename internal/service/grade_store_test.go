package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/models"
)

func persistedGrade(studentID string, score float64) models.GradeRecord {
	record := models.GradeRecord{ID: "grade-" + studentID, StudentID: studentID, AssessmentID: "quiz-1", Score: score}
	record.Recalculate(100)
	return record
}

func TestGradeStoreLocalShadowsPersisted(t *testing.T) {
	store := NewGradeStore()
	store.SeedPersisted([]models.GradeRecord{persistedGrade("s-1", 70)})

	edit := persistedGrade("s-1", 95)
	edit.Feedback = "regraded"
	require.NoError(t, store.UpsertLocal("s-1", edit))

	merged, ok := store.GetMerged("s-1")
	require.True(t, ok)
	assert.Equal(t, edit, merged)
	assert.True(t, store.IsPending("s-1"))
	assert.True(t, store.HasUnsavedChanges())

	store.ClearLocal()
	merged, ok = store.GetMerged("s-1")
	require.True(t, ok)
	assert.Equal(t, 70.0, merged.Score)
	assert.False(t, store.HasUnsavedChanges())
}

func TestGradeStoreUpsertLocalRequiresStudent(t *testing.T) {
	store := NewGradeStore()
	err := store.UpsertLocal("  ", models.GradeRecord{Score: 10})
	assert.Error(t, err)
	assert.Equal(t, 0, store.PendingCount())
}

func TestGradeStoreMergedIsSortedAndUnionOfLayers(t *testing.T) {
	store := NewGradeStore()
	store.SeedPersisted([]models.GradeRecord{persistedGrade("s-2", 60), persistedGrade("s-3", 80), {Score: 5}})
	require.NoError(t, store.UpsertLocal("s-1", persistedGrade("s-1", 90)))
	require.NoError(t, store.UpsertLocal("s-3", persistedGrade("s-3", 85)))

	merged := store.Merged()
	require.Len(t, merged, 3)
	assert.Equal(t, "s-1", merged[0].StudentID)
	assert.Equal(t, "s-2", merged[1].StudentID)
	assert.Equal(t, 85.0, merged[2].Score)
	assert.Equal(t, 2, store.PendingCount())
}

func TestGradeStoreReturnsCopies(t *testing.T) {
	store := NewGradeStore()
	record := persistedGrade("s-1", 10)
	record.RubricScores = map[string]float64{"a": 1}
	require.NoError(t, store.UpsertLocal("s-1", record))

	record.RubricScores["a"] = 99
	pending := store.Pending()
	pending["s-1"].RubricScores["a"] = 42

	merged, _ := store.GetMerged("s-1")
	assert.Equal(t, 1.0, merged.RubricScores["a"])
}

func TestGradeStoreMarkSavedPromotesSentVersion(t *testing.T) {
	store := NewGradeStore()
	sent := models.NewLocalGrade("s-1", "quiz-1", time.Now())
	sent.Score = 88
	require.NoError(t, store.UpsertLocal("s-1", sent))

	saved := sent
	saved.ID = "grade-s-1"
	store.MarkSaved("s-1", saved, sent)

	assert.False(t, store.IsPending("s-1"))
	merged, ok := store.GetMerged("s-1")
	require.True(t, ok)
	assert.Equal(t, "grade-s-1", merged.ID)
}

func TestGradeStoreMarkSavedKeepsNewerEdit(t *testing.T) {
	store := NewGradeStore()
	sent := models.NewLocalGrade("s-1", "quiz-1", time.Now())
	sent.Score = 70
	require.NoError(t, store.UpsertLocal("s-1", sent))

	newer := sent
	newer.Score = 75
	newer.UpdatedAt = sent.UpdatedAt.Add(time.Second)
	require.NoError(t, store.UpsertLocal("s-1", newer))

	saved := sent
	saved.ID = "grade-s-1"
	store.MarkSaved("s-1", saved, sent)

	assert.True(t, store.IsPending("s-1"))
	merged, _ := store.GetMerged("s-1")
	assert.Equal(t, 75.0, merged.Score)
}

func TestGradeStoreMarkSavedIgnoresOlderVersion(t *testing.T) {
	store := NewGradeStore()
	older := models.NewLocalGrade("s-1", "quiz-1", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	older.ID = "grade-s-1"
	older.Score = 50
	newer := older
	newer.Score = 90
	newer.UpdatedAt = older.UpdatedAt.Add(time.Minute)

	require.True(t, store.MarkSaved("s-1", newer, newer))
	assert.False(t, store.MarkSaved("s-1", older, older))

	merged, ok := store.GetMerged("s-1")
	require.True(t, ok)
	assert.Equal(t, 90.0, merged.Score)
	assert.False(t, store.IsPending("s-1"))
}
