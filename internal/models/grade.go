package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LetterGrade is the coarse A-F bucket derived from a percentage.
type LetterGrade string

const (
	LetterA LetterGrade = "A"
	LetterB LetterGrade = "B"
	LetterC LetterGrade = "C"
	LetterD LetterGrade = "D"
	LetterF LetterGrade = "F"
)

// LetterGrades lists the ladder from best to worst.
var LetterGrades = []LetterGrade{LetterA, LetterB, LetterC, LetterD, LetterF}

// TempIDPrefix marks grade ids synthesized locally before the first save.
const TempIDPrefix = "tmp-"

// floatTolerance absorbs binary representation error before flooring.
const floatTolerance = 1e-9

// GradeRecord is a single student's grade for an assessment.
// Percentage and LetterGrade are derived from Score; use Recalculate after any score change.
type GradeRecord struct {
	ID           string             `json:"id"`
	StudentID    string             `json:"student_id"`
	AssessmentID string             `json:"assessment_id"`
	Score        float64            `json:"score"`
	Percentage   float64            `json:"percentage"`
	LetterGrade  LetterGrade        `json:"letter_grade"`
	Feedback     string             `json:"feedback,omitempty"`
	RubricScores map[string]float64 `json:"rubric_scores,omitempty"`
	Excused      bool               `json:"excused,omitempty"`
	ExcuseReason string             `json:"excuse_reason,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewLocalGrade synthesizes a pending record with a temporary id.
func NewLocalGrade(studentID, assessmentID string, now time.Time) GradeRecord {
	return GradeRecord{
		ID:           NewTempID(),
		StudentID:    studentID,
		AssessmentID: assessmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTempID returns a locally generated grade id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTemporary reports whether the record has never been confirmed by the server.
func (g GradeRecord) IsTemporary() bool {
	return g.ID == "" || strings.HasPrefix(g.ID, TempIDPrefix)
}

// Recalculate refreshes the derived fields from Score.
func (g *GradeRecord) Recalculate(maxScore float64) {
	g.Percentage = PercentageOf(g.Score, maxScore)
	g.LetterGrade = LetterFor(g.Percentage)
}

// Clone returns a deep copy so callers never share the rubric map.
func (g GradeRecord) Clone() GradeRecord {
	clone := g
	if g.RubricScores != nil {
		clone.RubricScores = make(map[string]float64, len(g.RubricScores))
		for k, v := range g.RubricScores {
			clone.RubricScores[k] = v
		}
	}
	return clone
}

// PercentageOf returns floor(score / maxScore * 100). A non-positive maxScore yields 0.
func PercentageOf(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return FloorScore(score * 100 / maxScore)
}

// FloorScore floors v after absorbing float noise such as 89.99999999999999.
func FloorScore(v float64) float64 {
	return math.Floor(v + floatTolerance)
}

// LetterFor buckets a percentage: >=90 A, >=80 B, >=70 C, >=60 D, else F.
func LetterFor(percentage float64) LetterGrade {
	switch {
	case percentage >= 90:
		return LetterA
	case percentage >= 80:
		return LetterB
	case percentage >= 70:
		return LetterC
	case percentage >= 60:
		return LetterD
	default:
		return LetterF
	}
}

// AssessmentType classifies an assessment.
type AssessmentType string

const (
	AssessmentQuiz       AssessmentType = "quiz"
	AssessmentTest       AssessmentType = "test"
	AssessmentAssignment AssessmentType = "assignment"
	AssessmentProject    AssessmentType = "project"
	AssessmentExam       AssessmentType = "exam"
)

// Assessment is immutable for the lifetime of a grading session.
type Assessment struct {
	ID       string            `json:"id" validate:"required"`
	Title    string            `json:"title,omitempty"`
	MaxScore float64           `json:"max_score" validate:"gt=0"`
	PassMark float64           `json:"pass_mark" validate:"gte=0"`
	Type     AssessmentType    `json:"type" validate:"omitempty,oneof=quiz test assignment project exam"`
	Rubric   []RubricCriterion `json:"rubric,omitempty" validate:"omitempty,dive"`
}

// RubricCriterion caps the points awarded for one rubric row.
type RubricCriterion struct {
	ID        string  `json:"id" validate:"required"`
	Label     string  `json:"label,omitempty"`
	MaxPoints float64 `json:"max_points" validate:"gte=0"`
}

// Passed reports whether score meets the pass mark. Assessments without a pass mark report no passes.
func (a Assessment) Passed(score float64) bool {
	return a.PassMark > 0 && score >= a.PassMark
}
