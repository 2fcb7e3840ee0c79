package classify

import "github.com/shwetayenaji/Super-OTP-Predictor/internal/features"

// Label is the classifier's binary output.
type Label int

const (
	// LabelStandard requires the standard OTP flow.
	LabelStandard Label = 0
	// LabelApproved approves the enhanced (Super OTP) flow.
	LabelApproved Label = 1
)

// Outcome names the two user-facing decisions.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDenied   Outcome = "denied"
)

// Decision is either Approved or Denied, with a 0-100 confidence.
type Decision struct {
	Outcome    Outcome `json:"outcome"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Approved reports whether the decision is the approve variant.
func (d Decision) Approved() bool { return d.Outcome == OutcomeApproved }

// Render maps a label to its outcome. LabelApproved is the only label that
// approves; everything else is a denial.
func Render(label Label, confidence float64) Decision {
	if label == LabelApproved {
		return Decision{Outcome: OutcomeApproved, Label: LabelApproved, Confidence: confidence}
	}
	return Decision{Outcome: OutcomeDenied, Label: LabelStandard, Confidence: confidence}
}

// Confidence sources reported alongside a decision.
const (
	SourceModel   = "model"
	SourceDefault = "default"
)

// Result is a decision plus the vector it was made from.
type Result struct {
	Decision
	Features         features.FeatureVector `json:"features"`
	ConfidenceSource string                 `json:"confidence_source"`
	Classifier       string                 `json:"classifier"`
	ResponseTimeMs   float64                `json:"response_time_ms,omitempty"`
}
