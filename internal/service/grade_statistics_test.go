package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradesync-api/internal/models"
)

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(quiz, []models.Student{{ID: "s-1"}}, nil)

	assert.Equal(t, 0, stats.Graded)
	assert.Equal(t, 1, stats.Ungraded)
	assert.Nil(t, stats.Mean)
	assert.Nil(t, stats.Median)
	assert.Len(t, stats.Distribution, len(models.LetterGrades))
}

func TestComputeStatisticsAggregates(t *testing.T) {
	excused := persistedGrade("s-4", 30)
	excused.Excused = true
	records := []models.GradeRecord{
		persistedGrade("s-1", 92),
		persistedGrade("s-2", 71),
		persistedGrade("s-3", 58),
		excused,
	}

	stats := ComputeStatistics(quiz, nil, records)

	assert.Equal(t, 4, stats.Graded)
	assert.Equal(t, 1, stats.ExcusedCount)
	assert.Equal(t, 2, stats.PassCount)
	require.NotNil(t, stats.Mean)
	assert.Equal(t, 62.75, *stats.Mean)
	assert.Equal(t, 64.5, *stats.Median)
	assert.Equal(t, 30.0, *stats.Min)
	assert.Equal(t, 92.0, *stats.Max)
	assert.Equal(t, 62.75, *stats.MeanPercent)
	assert.Equal(t, 1, stats.Distribution[models.LetterA])
	assert.Equal(t, 1, stats.Distribution[models.LetterC])
	assert.Equal(t, 2, stats.Distribution[models.LetterF])
}

func TestComputeStatisticsWithoutPassMark(t *testing.T) {
	noPass := models.Assessment{ID: "hw-1", MaxScore: 10}
	stats := ComputeStatistics(noPass, nil, []models.GradeRecord{{StudentID: "s-1", Score: 10}})
	assert.Zero(t, stats.PassCount)
}
