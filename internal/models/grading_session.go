package models

import "time"

// SaveOutcome classifies a save batch for user-facing messaging.
type SaveOutcome string

const (
	SaveOutcomeNothing   SaveOutcome = "nothing_to_save"
	SaveOutcomeSucceeded SaveOutcome = "all_succeeded"
	SaveOutcomePartial   SaveOutcome = "partial"
	SaveOutcomeFailed    SaveOutcome = "failed"
	SaveOutcomeOffline   SaveOutcome = "offline"
)

// SaveFailure describes one grade the external API did not accept.
type SaveFailure struct {
	StudentID string `json:"student_id"`
	GradeID   string `json:"grade_id"`
	Reason    string `json:"reason"`
}

// QueuedGrade is a grade held locally until the grade API is reachable again.
type QueuedGrade struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	AssessmentID string      `json:"assessment_id"`
	StudentID    string      `json:"student_id"`
	Record       GradeRecord `json:"record"`
	Attempts     int         `json:"attempts"`
	LastError    string      `json:"last_error,omitempty"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
}

// ConnectivityState reports whether saves reach the network.
type ConnectivityState string

const (
	ConnectivityOnline  ConnectivityState = "online"
	ConnectivityOffline ConnectivityState = "offline"
)

// GradingSessionSummary is the listing view of an open session.
type GradingSessionSummary struct {
	ID             string     `json:"id"`
	Assessment     Assessment `json:"assessment"`
	OwnerID        string     `json:"owner_id"`
	StudentCount   int        `json:"student_count"`
	PendingCount   int        `json:"pending_count"`
	UnsavedChanges bool       `json:"unsaved_changes"`
	OpenedAt       time.Time  `json:"opened_at"`
}

// GradeStatistics aggregates the merged view of a session.
// Excused records are included in the aggregates and also counted separately.
type GradeStatistics struct {
	AssessmentID string              `json:"assessment_id"`
	Graded       int                 `json:"graded"`
	Ungraded     int                 `json:"ungraded"`
	ExcusedCount int                 `json:"excused_count"`
	PassCount    int                 `json:"pass_count"`
	Mean         *float64            `json:"mean,omitempty"`
	Median       *float64            `json:"median,omitempty"`
	Min          *float64            `json:"min,omitempty"`
	Max          *float64            `json:"max,omitempty"`
	MeanPercent  *float64            `json:"mean_percent,omitempty"`
	Distribution map[LetterGrade]int `json:"distribution"`
	PendingCount int                 `json:"pending_count"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// ProbeResult captures one health probe of the grade API.
type ProbeResult struct {
	URL        string        `json:"url"`
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ObservedAt time.Time     `json:"observed_at"`
}
