package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

// DefaultConfidence is reported when the classifier cannot produce a
// probability distribution.
const DefaultConfidence = 85.0

// Predictor is the mandatory classifier capability.
type Predictor interface {
	Predict(ctx context.Context, v features.FeatureVector) (Label, error)
}

// ProbabilityPredictor is the optional capability returning a probability
// distribution over {0, 1}.
type ProbabilityPredictor interface {
	PredictProba(ctx context.Context, v features.FeatureVector) ([]float64, error)
}

// Scorer is the optional capability of classifiers that produce the label and
// its distribution in a single call. When present it replaces the separate
// Predict and PredictProba calls, so both come from the same answer. A nil
// distribution means the label is known but confidence is not.
type Scorer interface {
	Score(ctx context.Context, v features.FeatureVector) (Label, []float64, error)
}

var (
	ErrInvalidLabel        = errors.New("classifier returned a label outside {0, 1}")
	ErrInvalidDistribution = errors.New("invalid probability distribution")
)

// Adapter wraps a classifier handle. It is immutable after construction and
// safe for concurrent use.
type Adapter struct {
	predictor Predictor
	proba     ProbabilityPredictor // nil when the classifier has no probabilities
	scorer    Scorer               // nil unless label and probabilities come together
	name      string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithName labels results with the classifier backend name.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// WithTracerProvider sets where Decide spans go. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Adapter) { a.tracer = tp.Tracer(tracerName) }
}

const tracerName = "github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"

// NewAdapter builds an adapter around p. Whether p also reports
// probabilities, separately or through Scorer, is decided here, once.
func NewAdapter(p Predictor, opts ...Option) *Adapter {
	a := &Adapter{
		predictor: p,
		name:      "model",
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	if sc, ok := p.(Scorer); ok {
		a.scorer = sc
	} else if pp, ok := p.(ProbabilityPredictor); ok {
		a.proba = pp
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SupportsConfidence reports whether the wrapped classifier exposes
// probabilities.
func (a *Adapter) SupportsConfidence() bool { return a.proba != nil || a.scorer != nil }

// Name returns the backend name.
func (a *Adapter) Name() string { return a.name }

// Decide classifies v and renders the decision. Only a failure to obtain a
// valid label is returned as an error.
func (a *Adapter) Decide(ctx context.Context, v features.FeatureVector) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "classify.Decide", trace.WithAttributes(
		attribute.String("classifier", a.name),
	))
	defer span.End()

	start := time.Now()

	var (
		label Label
		dist  []float64
		err   error
	)
	if a.scorer != nil {
		label, dist, err = a.scorer.Score(ctx, v)
	} else {
		label, err = a.predictor.Predict(ctx, v)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "predict failed")
		return nil, fmt.Errorf("predict: %w", err)
	}
	if label != LabelStandard && label != LabelApproved {
		err := fmt.Errorf("%w: %d", ErrInvalidLabel, label)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid label")
		return nil, err
	}

	var (
		confidence float64
		source     string
	)
	if a.scorer != nil {
		confidence, source = a.fromDistribution(dist)
	} else {
		confidence, source = a.confidence(ctx, v)
	}
	decision := Render(label, confidence)

	span.SetAttributes(
		attribute.String("outcome", string(decision.Outcome)),
		attribute.Float64("confidence", confidence),
		attribute.String("confidence_source", source),
	)

	return &Result{
		Decision:         decision,
		Features:         v,
		ConfidenceSource: source,
		Classifier:       a.name,
		ResponseTimeMs:   float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// confidence never fails: any problem with the optional capability yields
// DefaultConfidence.
func (a *Adapter) confidence(ctx context.Context, v features.FeatureVector) (c float64, source string) {
	if a.proba == nil {
		return DefaultConfidence, SourceDefault
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("confidence call panicked, using default", "classifier", a.name, "panic", r)
			c, source = DefaultConfidence, SourceDefault
		}
	}()

	dist, err := a.proba.PredictProba(ctx, v)
	if err != nil {
		a.logger.Warn("confidence unavailable, using default", "classifier", a.name, "err", err)
		return DefaultConfidence, SourceDefault
	}

	return a.fromDistribution(dist)
}

func (a *Adapter) fromDistribution(dist []float64) (float64, string) {
	pct, err := Confidence(dist)
	if err != nil {
		a.logger.Warn("confidence unavailable, using default", "classifier", a.name, "err", err)
		return DefaultConfidence, SourceDefault
	}
	return pct, SourceModel
}

// Confidence returns max(dist) × 100.
func Confidence(dist []float64) (float64, error) {
	if len(dist) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDistribution)
	}
	best := math.Inf(-1)
	for _, p := range dist {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidDistribution, dist)
		}
		best = math.Max(best, p)
	}
	return best * 100, nil
}
