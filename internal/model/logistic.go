package model

import (
	"context"
	"fmt"
	"math"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/artifact"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

// Logistic is a fitted logistic regression.
type Logistic struct {
	weights   [features.Len]float64
	intercept float64
	threshold float64
}

func newLogistic(p *artifact.LogisticParams) (*Logistic, error) {
	if len(p.Weights) != features.Len {
		return nil, fmt.Errorf("logistic: got %d weights, want %d", len(p.Weights), features.Len)
	}
	threshold := p.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("logistic: threshold %v outside (0, 1)", threshold)
	}

	m := &Logistic{intercept: p.Intercept, threshold: threshold}
	copy(m.weights[:], p.Weights)
	return m, nil
}

func (m *Logistic) positive(v features.FeatureVector) float64 {
	z := m.intercept
	for i, x := range v {
		z += m.weights[i] * float64(x)
	}
	return 1 / (1 + math.Exp(-z))
}

func (m *Logistic) Predict(_ context.Context, v features.FeatureVector) (classify.Label, error) {
	if m.positive(v) > m.threshold {
		return classify.LabelApproved, nil
	}
	return classify.LabelStandard, nil
}

func (m *Logistic) PredictProba(_ context.Context, v features.FeatureVector) ([]float64, error) {
	p := m.positive(v)
	return []float64{1 - p, p}, nil
}
