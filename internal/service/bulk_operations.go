package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gradesync-api/internal/dto"
	"github.com/noah-isme/gradesync-api/internal/models"
	appErrors "github.com/noah-isme/gradesync-api/pkg/errors"
)

// Operation kinds as they appear on the wire and in metrics.
const (
	OpApplyScore    = "apply_score"
	OpApplyCurve    = "apply_curve"
	OpLatePenalty   = "late_penalty"
	OpExcuse        = "excuse"
	OpApplyFeedback = "apply_feedback"
	OpApplyRubric   = "apply_rubric"

	CurveAddPointsType  = "add_points"
	CurveMultiplyType   = "multiply"
	CurveSetHighestType = "set_highest"

	PenaltyPercentageType = "percentage"
	PenaltyPointsType     = "points"
)

// operationEnv carries what an operation may read besides the record itself.
type operationEnv struct {
	assessment models.Assessment
	highest    float64
}

// BulkOperation is one variant of the bulk grading operations. The set of
// variants is closed: only types in this file implement it.
type BulkOperation interface {
	Kind() string
	// requiresExisting reports whether students without a grade are skipped.
	requiresExisting() bool
	apply(record *models.GradeRecord, env operationEnv)
}

// ApplyScore sets every target's score to Value.
type ApplyScore struct {
	Value float64
}

func (ApplyScore) Kind() string { return OpApplyScore }
func (ApplyScore) requiresExisting() bool { return false }
func (o ApplyScore) apply(record *models.GradeRecord, _ operationEnv) {
	record.Score = o.Value
}

// CurveAddPoints adds Points to every target's score.
type CurveAddPoints struct {
	Points float64
}

func (CurveAddPoints) Kind() string { return OpApplyCurve + "/" + CurveAddPointsType }
func (CurveAddPoints) requiresExisting() bool { return true }
func (o CurveAddPoints) apply(record *models.GradeRecord, _ operationEnv) {
	record.Score += o.Points
}

// CurveMultiply scales every target's score by Factor. The score is not
// rounded; only the derived percentage is floored.
type CurveMultiply struct {
	Factor float64
}

func (CurveMultiply) Kind() string { return OpApplyCurve + "/" + CurveMultiplyType }
func (CurveMultiply) requiresExisting() bool { return true }
func (o CurveMultiply) apply(record *models.GradeRecord, _ operationEnv) {
	record.Score *= o.Factor
}

// CurveSetHighest rescales scores so the highest target score becomes the max score.
type CurveSetHighest struct{}

func (CurveSetHighest) Kind() string { return OpApplyCurve + "/" + CurveSetHighestType }
func (CurveSetHighest) requiresExisting() bool { return true }
func (CurveSetHighest) apply(record *models.GradeRecord, env operationEnv) {
	if env.highest <= 0 {
		return
	}
	record.Score = models.FloorScore(record.Score * env.assessment.MaxScore / env.highest)
}

// LatePenaltyPercentage removes Percent percent of the score, flooring the result.
type LatePenaltyPercentage struct {
	Percent float64
}

func (LatePenaltyPercentage) Kind() string { return OpLatePenalty + "/" + PenaltyPercentageType }
func (LatePenaltyPercentage) requiresExisting() bool { return true }
func (o LatePenaltyPercentage) apply(record *models.GradeRecord, _ operationEnv) {
	record.Score = models.FloorScore(record.Score * (100 - o.Percent) / 100)
}

// LatePenaltyPoints subtracts Points from the score.
type LatePenaltyPoints struct {
	Points float64
}

func (LatePenaltyPoints) Kind() string { return OpLatePenalty + "/" + PenaltyPointsType }
func (LatePenaltyPoints) requiresExisting() bool { return true }
func (o LatePenaltyPoints) apply(record *models.GradeRecord, _ operationEnv) {
	record.Score -= o.Points
}

// Excuse marks targets as excused; the score is kept.
type Excuse struct {
	Reason string
}

func (Excuse) Kind() string { return OpExcuse }
func (Excuse) requiresExisting() bool { return true }
func (o Excuse) apply(record *models.GradeRecord, _ operationEnv) {
	record.Excused = true
	record.ExcuseReason = o.Reason
}

// ApplyFeedback replaces or appends feedback text.
type ApplyFeedback struct {
	Text   string
	Append bool
}

func (ApplyFeedback) Kind() string { return OpApplyFeedback }
func (ApplyFeedback) requiresExisting() bool { return true }
func (o ApplyFeedback) apply(record *models.GradeRecord, _ operationEnv) {
	if o.Append && record.Feedback != "" {
		record.Feedback = record.Feedback + "\n" + o.Text
		return
	}
	record.Feedback = o.Text
}

// ApplyRubric replaces rubric scores and sets the score to their capped sum.
type ApplyRubric struct {
	Scores map[string]float64
}

func (ApplyRubric) Kind() string { return OpApplyRubric }
func (ApplyRubric) requiresExisting() bool { return false }
func (o ApplyRubric) apply(record *models.GradeRecord, env operationEnv) {
	awarded, total := ScoreRubric(env.assessment.Rubric, o.Scores)
	record.RubricScores = awarded
	record.Score = total
}

// ScoreRubric caps each awarded value to [0, criterion max] and returns the capped map and total.
// Without a rubric, values are only floored at zero; with one, unknown criteria are dropped.
func ScoreRubric(rubric []models.RubricCriterion, awarded map[string]float64) (map[string]float64, float64) {
	result := make(map[string]float64, len(awarded))
	total := 0.0
	if len(rubric) == 0 {
		for key, value := range awarded {
			if value < 0 {
				value = 0
			}
			result[key] = value
			total += value
		}
		return result, total
	}
	for _, criterion := range rubric {
		value, ok := awarded[criterion.ID]
		if !ok {
			continue
		}
		if value < 0 {
			value = 0
		}
		if value > criterion.MaxPoints {
			value = criterion.MaxPoints
		}
		result[criterion.ID] = value
		total += value
	}
	return result, total
}

// DecodeOperation turns the loose wire payload into exactly one operation variant.
func DecodeOperation(spec *dto.OperationSpec) (BulkOperation, error) {
	if spec == nil || strings.TrimSpace(spec.Kind) == "" {
		return nil, appErrors.ErrNoOperation
	}
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case OpApplyScore:
		value, err := requireNumber(spec.Value, "value")
		if err != nil {
			return nil, err
		}
		return ApplyScore{Value: value}, nil
	case OpApplyCurve:
		switch strings.ToLower(spec.CurveType) {
		case CurveAddPointsType:
			points, err := requireNumber(spec.Points, "points")
			if err != nil {
				return nil, err
			}
			return CurveAddPoints{Points: points}, nil
		case CurveMultiplyType:
			factor, err := requireNumber(spec.Factor, "factor")
			if err != nil {
				return nil, err
			}
			return CurveMultiply{Factor: factor}, nil
		case CurveSetHighestType:
			return CurveSetHighest{}, nil
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported curve type %q", spec.CurveType))
		}
	case OpLatePenalty:
		switch strings.ToLower(spec.PenaltyType) {
		case PenaltyPercentageType:
			percent, err := requireNumber(spec.Percent, "percent")
			if err != nil {
				return nil, err
			}
			return LatePenaltyPercentage{Percent: percent}, nil
		case PenaltyPointsType:
			points, err := requireNumber(spec.Points, "points")
			if err != nil {
				return nil, err
			}
			return LatePenaltyPoints{Points: points}, nil
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported penalty type %q", spec.PenaltyType))
		}
	case OpExcuse:
		return Excuse{Reason: strings.TrimSpace(spec.Reason)}, nil
	case OpApplyFeedback:
		if strings.TrimSpace(spec.Text) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "feedback text required")
		}
		return ApplyFeedback{Text: spec.Text, Append: spec.Append}, nil
	case OpApplyRubric:
		if len(spec.Scores) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rubric scores required")
		}
		return ApplyRubric{Scores: spec.Scores}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported operation %q", spec.Kind))
	}
}

func requireNumber(v *float64, field string) (float64, error) {
	if v == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, field+" required")
	}
	return *v, nil
}
