package dto

import "github.com/noah-isme/gradesync-api/internal/models"

// OpenSessionRequest starts a grading session for one assessment.
type OpenSessionRequest struct {
	Assessment models.Assessment `json:"assessment" validate:"required"`
	Students   []models.Student  `json:"students" validate:"omitempty,dive"`
}

// UpsertGradeRequest records a teacher's edit for a single student.
// Excused set to false clears an excusal together with its reason.
type UpsertGradeRequest struct {
	StudentID    string             `json:"student_id" validate:"required"`
	Score        *float64           `json:"score"`
	Feedback     *string            `json:"feedback"`
	RubricScores map[string]float64 `json:"rubric_scores"`
	Excused      *bool              `json:"excused"`
	ExcuseReason string             `json:"excuse_reason"`
}

// OperationSpec is the wire form of a bulk operation. Kind selects the variant;
// CurveType and PenaltyType select the sub-variant for apply_curve and late_penalty.
type OperationSpec struct {
	Kind        string             `json:"kind"`
	CurveType   string             `json:"curve_type,omitempty"`
	PenaltyType string             `json:"penalty_type,omitempty"`
	Value       *float64           `json:"value,omitempty"`
	Points      *float64           `json:"points,omitempty"`
	Factor      *float64           `json:"factor,omitempty"`
	Percent     *float64           `json:"percent,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Text        string             `json:"text,omitempty"`
	Append      bool               `json:"append,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

// BulkOperationRequest applies one operation to the selected students.
type BulkOperationRequest struct {
	StudentIDs []string       `json:"student_ids"`
	Operation  *OperationSpec `json:"operation"`
}

// BulkOperationResponse reports which students received a new pending record.
type BulkOperationResponse struct {
	Operation string               `json:"operation"`
	Applied   int                  `json:"applied"`
	Skipped   []string             `json:"skipped,omitempty"`
	Records   []models.GradeRecord `json:"records"`
}

// SaveResponse summarises a save batch.
type SaveResponse struct {
	Outcome      models.SaveOutcome   `json:"outcome"`
	SuccessCount int                  `json:"success_count"`
	ErrorCount   int                  `json:"error_count"`
	QueuedCount  int                  `json:"queued_count"`
	Failures     []models.SaveFailure `json:"failures,omitempty"`
	Message      string               `json:"message"`
}

// SessionResponse is the full merged view of a session.
type SessionResponse struct {
	ID             string                   `json:"id"`
	Assessment     models.Assessment        `json:"assessment"`
	Students       []models.Student         `json:"students,omitempty"`
	Grades         []GradeRow               `json:"grades"`
	UnsavedChanges bool                     `json:"unsaved_changes"`
	Connectivity   models.ConnectivityState `json:"connectivity"`
}

// GradeRow pairs a merged record with its pending flag.
type GradeRow struct {
	models.GradeRecord
	Pending bool `json:"pending"`
}

// ConnectivityRequest is an explicit connectivity signal from the client.
type ConnectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// ConnectivityResponse reports the queue state after a signal.
type ConnectivityResponse struct {
	State        models.ConnectivityState `json:"state"`
	Changed      bool                     `json:"changed"`
	QueuedCount  int                      `json:"queued_count"`
	FlushStarted bool                     `json:"flush_started"`
	// HeldOffline is set while an explicit offline signal overrides health probes.
	HeldOffline bool `json:"held_offline"`
}

// FlushResponse summarises an offline-queue replay.
type FlushResponse struct {
	Attempted    int                  `json:"attempted"`
	SuccessCount int                  `json:"success_count"`
	ErrorCount   int                  `json:"error_count"`
	Remaining    int                  `json:"remaining"`
	Skipped      bool                 `json:"skipped,omitempty"`
	Failures     []models.SaveFailure `json:"failures,omitempty"`
}

// StatisticsResponse wraps the aggregate view of a session.
type StatisticsResponse struct {
	SessionID  string                 `json:"session_id"`
	Statistics models.GradeStatistics `json:"statistics"`
}
