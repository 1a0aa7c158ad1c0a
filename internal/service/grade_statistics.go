package service

import (
	"sort"

	"github.com/noah-isme/gradesync-api/internal/models"
)

// ComputeStatistics aggregates merged records. Excused records count toward
// every aggregate and are also reported in ExcusedCount. Students on the roster
// without a record are ungraded.
func ComputeStatistics(assessment models.Assessment, students []models.Student, records []models.GradeRecord) models.GradeStatistics {
	stats := models.GradeStatistics{
		AssessmentID: assessment.ID,
		Distribution: make(map[models.LetterGrade]int, len(models.LetterGrades)),
	}
	for _, letter := range models.LetterGrades {
		stats.Distribution[letter] = 0
	}

	graded := make(map[string]struct{}, len(records))
	scores := make([]float64, 0, len(records))
	percentTotal := 0.0
	for _, record := range records {
		graded[record.StudentID] = struct{}{}
		scores = append(scores, record.Score)
		percentTotal += record.Percentage
		stats.Distribution[record.LetterGrade]++
		if record.Excused {
			stats.ExcusedCount++
		}
		if assessment.Passed(record.Score) {
			stats.PassCount++
		}
	}
	stats.Graded = len(records)
	for _, student := range students {
		if _, ok := graded[student.ID]; !ok {
			stats.Ungraded++
		}
	}
	if len(scores) == 0 {
		return stats
	}

	sort.Float64s(scores)
	total := 0.0
	for _, score := range scores {
		total += score
	}
	mean := total / float64(len(scores))
	meanPercent := percentTotal / float64(len(scores))
	minScore, maxScore := scores[0], scores[len(scores)-1]
	median := medianOf(scores)

	stats.Mean = &mean
	stats.MeanPercent = &meanPercent
	stats.Median = &median
	stats.Min = &minScore
	stats.Max = &maxScore
	return stats
}

// medianOf expects sorted, non-empty input.
func medianOf(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
