package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentageOfFloors(t *testing.T) {
	cases := []struct {
		name     string
		score    float64
		max      float64
		expected float64
	}{
		{name: "exact", score: 85, max: 100, expected: 85},
		{name: "fraction floors", score: 2, max: 3, expected: 66},
		{name: "float noise", score: 0.9, max: 1, expected: 90},
		{name: "over max", score: 110, max: 100, expected: 110},
		{name: "zero max", score: 10, max: 0, expected: 0},
		{name: "scaled max", score: 38, max: 40, expected: 95},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PercentageOf(tc.score, tc.max))
		})
	}
}

func TestLetterForBoundaries(t *testing.T) {
	cases := map[float64]LetterGrade{
		100: LetterA,
		90:  LetterA,
		89:  LetterB,
		80:  LetterB,
		79:  LetterC,
		70:  LetterC,
		69:  LetterD,
		60:  LetterD,
		59:  LetterF,
		0:   LetterF,
	}
	for pct, letter := range cases {
		assert.Equal(t, letter, LetterFor(pct), "percentage %v", pct)
	}
}

func TestRecalculateKeepsDerivedFieldsConsistent(t *testing.T) {
	for score := 0.0; score <= 50; score++ {
		record := GradeRecord{Score: score}
		record.Recalculate(50)

		assert.Equal(t, PercentageOf(score, 50), record.Percentage)
		assert.Equal(t, LetterFor(record.Percentage), record.LetterGrade)
	}
}

func TestNewLocalGradeIsTemporary(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	record := NewLocalGrade("s-1", "quiz-1", now)

	assert.True(t, record.IsTemporary())
	assert.Equal(t, "s-1", record.StudentID)
	assert.Equal(t, "quiz-1", record.AssessmentID)
	assert.Equal(t, now, record.CreatedAt)
	assert.False(t, GradeRecord{ID: "grade-9"}.IsTemporary())
	assert.True(t, GradeRecord{}.IsTemporary())
}

func TestCloneCopiesRubricScores(t *testing.T) {
	original := GradeRecord{RubricScores: map[string]float64{"clarity": 4}}
	clone := original.Clone()
	clone.RubricScores["clarity"] = 1

	assert.Equal(t, 4.0, original.RubricScores["clarity"])
}

func TestAssessmentPassed(t *testing.T) {
	withMark := Assessment{MaxScore: 100, PassMark: 60}
	assert.True(t, withMark.Passed(60))
	assert.False(t, withMark.Passed(59.5))

	noMark := Assessment{MaxScore: 100}
	assert.False(t, noMark.Passed(100))
}
