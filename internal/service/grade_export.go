package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
	"github.com/noah-isme/gradesync-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportFile is a rendered grade sheet.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

var gradeSheetColumns = []export.Column{
	{Key: "student_id", Title: "Student ID", Weight: 1.2},
	{Key: "student", Title: "Student", Weight: 2},
	{Key: "score", Title: "Score"},
	{Key: "percentage", Title: "%"},
	{Key: "letter", Title: "Grade", Weight: 0.7},
	{Key: "excused", Title: "Excused", Weight: 0.9},
	{Key: "status", Title: "Status"},
	{Key: "feedback", Title: "Feedback", Weight: 2.5},
}

// Export renders the merged view of a session as CSV or PDF. Pending edits are
// included and flagged in the status column.
func (s *GradingSessionService) Export(sessionID, format string) (*ExportFile, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var renderer datasetRenderer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ExportFormatCSV:
		format, renderer = ExportFormatCSV, export.NewCSVExporter()
	case ExportFormatPDF:
		format, renderer = ExportFormatPDF, export.NewPDFExporter()
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records := session.store.Merged()
	dataset := export.Dataset{
		Title:   sheetTitle(session.assessment),
		Columns: gradeSheetColumns,
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, record := range records {
		status := "saved"
		if session.store.IsPending(record.StudentID) {
			status = "pending"
		}
		excused := ""
		if record.Excused {
			excused = "yes"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_id": record.StudentID,
			"student":    session.roster[record.StudentID].DisplayName,
			"score":      formatScore(record.Score),
			"percentage": formatScore(record.Percentage),
			"letter":     string(record.LetterGrade),
			"excused":    excused,
			"status":     status,
			"feedback":   record.Feedback,
		})
	}
	stats := ComputeStatistics(session.assessment, session.students, records)
	dataset.Summary = summaryLines(stats)

	data, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("failed to render grade export", zap.String("session_id", sessionID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("grades-%s.%s", session.assessment.ID, format),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func sheetTitle(assessment models.Assessment) string {
	if assessment.Title != "" {
		return assessment.Title
	}
	return "Assessment " + assessment.ID
}

func summaryLines(stats models.GradeStatistics) []string {
	lines := []string{fmt.Sprintf("Graded: %d  Ungraded: %d  Excused: %d  Passed: %d", stats.Graded, stats.Ungraded, stats.ExcusedCount, stats.PassCount)}
	if stats.Mean != nil {
		lines = append(lines, fmt.Sprintf("Mean: %s  Median: %s  Min: %s  Max: %s",
			formatScore(*stats.Mean), formatScore(*stats.Median), formatScore(*stats.Min), formatScore(*stats.Max)))
	}
	return lines
}

func formatScore(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
