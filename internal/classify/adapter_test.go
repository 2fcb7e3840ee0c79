package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

type labelOnly struct{ label Label }

func (p labelOnly) Predict(context.Context, features.FeatureVector) (Label, error) {
	return p.label, nil
}

type withProba struct {
	label Label
	dist  []float64
	err   error
	panic bool
}

func (p withProba) Predict(context.Context, features.FeatureVector) (Label, error) {
	return p.label, nil
}

func (p withProba) PredictProba(context.Context, features.FeatureVector) ([]float64, error) {
	if p.panic {
		panic("boom")
	}
	return p.dist, p.err
}

type failing struct{}

func (failing) Predict(context.Context, features.FeatureVector) (Label, error) {
	return 0, errors.New("backend down")
}

// scoring answers label and distribution together and counts how it was
// asked.
type scoring struct {
	label    Label
	dist     []float64
	err      error
	scores   *int
	predicts *int
}

func (p scoring) Predict(context.Context, features.FeatureVector) (Label, error) {
	*p.predicts++
	return p.label, p.err
}

func (p scoring) PredictProba(context.Context, features.FeatureVector) ([]float64, error) {
	return []float64{0.99, 0.01}, nil
}

func (p scoring) Score(context.Context, features.FeatureVector) (Label, []float64, error) {
	*p.scores++
	return p.label, p.dist, p.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var vec = features.Encode(features.DefaultSelection())

func TestRenderIsExhaustive(t *testing.T) {
	if d := Render(LabelApproved, 90); d.Outcome != OutcomeApproved || !d.Approved() {
		t.Fatalf("expected approved, got %+v", d)
	}
	if d := Render(LabelStandard, 90); d.Outcome != OutcomeDenied || d.Approved() {
		t.Fatalf("expected denied, got %+v", d)
	}
}

func TestDecideUsesProbabilities(t *testing.T) {
	a := NewAdapter(withProba{label: 1, dist: []float64{0.12, 0.88}}, WithLogger(quietLogger()))
	if !a.SupportsConfidence() {
		t.Fatal("expected confidence capability")
	}

	res, err := a.Decide(context.Background(), vec)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if res.Outcome != OutcomeApproved {
		t.Fatalf("expected approved, got %s", res.Outcome)
	}
	if math.Abs(res.Confidence-88) > 1e-9 {
		t.Fatalf("expected 88, got %v", res.Confidence)
	}
	if res.ConfidenceSource != SourceModel {
		t.Fatalf("expected model source, got %s", res.ConfidenceSource)
	}
	if res.Features != vec {
		t.Fatalf("features not carried: %v", res.Features)
	}
}

func TestDecideFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		p    Predictor
	}{
		{"capability absent", labelOnly{label: 0}},
		{"call fails", withProba{label: 0, err: errors.New("not fitted")}},
		{"call panics", withProba{label: 0, panic: true}},
		{"empty distribution", withProba{label: 0, dist: nil}},
		{"probability above one", withProba{label: 0, dist: []float64{0.2, 1.4}}},
		{"NaN", withProba{label: 0, dist: []float64{math.NaN(), 0.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.p, WithLogger(quietLogger()))
			res, err := a.Decide(context.Background(), vec)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if res.Confidence != DefaultConfidence {
				t.Fatalf("expected %v, got %v", DefaultConfidence, res.Confidence)
			}
			if res.ConfidenceSource != SourceDefault {
				t.Fatalf("expected default source, got %s", res.ConfidenceSource)
			}
			if res.Outcome != OutcomeDenied {
				t.Fatalf("expected denied, got %s", res.Outcome)
			}
		})
	}
}

func TestDecidePropagatesPredictError(t *testing.T) {
	a := NewAdapter(failing{}, WithLogger(quietLogger()))
	if _, err := a.Decide(context.Background(), vec); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecideRejectsUnknownLabel(t *testing.T) {
	a := NewAdapter(labelOnly{label: 2}, WithLogger(quietLogger()))
	_, err := a.Decide(context.Background(), vec)
	if !errors.Is(err, ErrInvalidLabel) {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestConfidenceBound(t *testing.T) {
	for _, dist := range [][]float64{
		{0, 1},
		{1, 0},
		{0.5, 0.5},
		{0.3, 0.7},
	} {
		c, err := Confidence(dist)
		if err != nil {
			t.Fatalf("confidence(%v): %v", dist, err)
		}
		if c < 0 || c > 100 {
			t.Fatalf("confidence(%v) = %v out of bounds", dist, c)
		}
		want := math.Max(dist[0], dist[1]) * 100
		if c != want {
			t.Fatalf("confidence(%v) = %v, want %v", dist, c, want)
		}
	}
}

func TestDecideScoresOnce(t *testing.T) {
	var scores, predicts int
	p := scoring{label: LabelApproved, dist: []float64{0.1, 0.9}, scores: &scores, predicts: &predicts}
	a := NewAdapter(p, WithLogger(quietLogger()))
	if !a.SupportsConfidence() {
		t.Fatal("scorer should count as confidence capability")
	}

	res, err := a.Decide(context.Background(), vec)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if scores != 1 || predicts != 0 {
		t.Fatalf("expected one Score and no Predict, got %d and %d", scores, predicts)
	}
	if res.Outcome != OutcomeApproved || math.Abs(res.Confidence-90) > 1e-9 {
		t.Fatalf("expected approved at 90, got %s at %v", res.Outcome, res.Confidence)
	}
	if res.ConfidenceSource != SourceModel {
		t.Fatalf("expected model source, got %s", res.ConfidenceSource)
	}
}

func TestDecideScoreWithoutDistribution(t *testing.T) {
	var scores, predicts int
	a := NewAdapter(scoring{label: LabelStandard, scores: &scores, predicts: &predicts}, WithLogger(quietLogger()))

	res, err := a.Decide(context.Background(), vec)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if res.Confidence != DefaultConfidence || res.ConfidenceSource != SourceDefault {
		t.Fatalf("expected default confidence, got %v from %s", res.Confidence, res.ConfidenceSource)
	}
}

func TestDecideScoreError(t *testing.T) {
	var scores, predicts int
	a := NewAdapter(scoring{err: errors.New("throttled"), scores: &scores, predicts: &predicts}, WithLogger(quietLogger()))
	if _, err := a.Decide(context.Background(), vec); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecideRecordsInvalidLabelOnSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	a := NewAdapter(labelOnly{label: 7}, WithLogger(quietLogger()), WithTracerProvider(tp))
	if _, err := a.Decide(context.Background(), vec); !errors.Is(err, ErrInvalidLabel) {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
	var recorded bool
	for _, ev := range spans[0].Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Fatal("expected the invalid label error recorded on the span")
	}
}
