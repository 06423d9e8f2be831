package model

import "time"

// ReviewReason explains why the selector routed a transaction the way it did.
type ReviewReason string

const (
	// ReasonUncertainty marks low-confidence predictions picked for review.
	ReasonUncertainty ReviewReason = "uncertainty"
	// ReasonMediumConfidence marks predictions in the medium-confidence band.
	ReasonMediumConfidence ReviewReason = "medium-confidence"
	// ReasonAuditSample marks high-confidence predictions drawn as a
	// quality-control check on the auto-accept path.
	ReasonAuditSample ReviewReason = "high-confidence-validation"
	// ReasonAutoAccept marks predictions accepted without review.
	ReasonAutoAccept ReviewReason = "auto-accept"
)

// ReviewDecision is the selector's verdict for one transaction in a batch.
type ReviewDecision struct {
	TransactionID     string
	Reason            ReviewReason
	PriorityScore     float64
	SelectedForReview bool
}

// SelectionMode switches the selector between sampling policies. It is an
// explicit configuration input, never internal selector state.
type SelectionMode string

const (
	// ModeUncertaintyFirst concentrates the budget on low-confidence
	// predictions. Default while the correction rate is high.
	ModeUncertaintyFirst SelectionMode = "uncertainty-first"
	// ModeDiversityFirst spreads the uncertainty pool across predicted
	// categories once the model is mostly right, to avoid over-sampling
	// merchants that are already well understood.
	ModeDiversityFirst SelectionMode = "diversity-first"
)

// ReviewRecord captures one human review outcome, used to derive the
// selection mode from the recent correction rate.
type ReviewRecord struct {
	ReviewedAt    time.Time
	TransactionID string
	Confidence    float64 // Confidence of the original prediction
	WasCorrected  bool
}
