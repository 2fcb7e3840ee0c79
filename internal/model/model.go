// Package model evaluates classifier artifacts in-process.
package model

import (
	"errors"
	"fmt"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/artifact"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

// ErrColumnMismatch is returned when an artifact was trained on a different
// column order than features.Names.
var ErrColumnMismatch = errors.New("artifact columns do not match feature order")

// FromDocument builds an immutable classifier from a decoded artifact. The
// returned value implements classify.ProbabilityPredictor only when the
// artifact carries enough information to produce probabilities.
func FromDocument(doc *artifact.Document) (classify.Predictor, error) {
	if err := checkColumns(doc.Columns); err != nil {
		return nil, err
	}

	switch doc.Kind {
	case artifact.KindLogistic:
		return newLogistic(doc.Logistic)
	case artifact.KindForest:
		f, err := newForest(doc.Forest)
		if err != nil {
			return nil, err
		}
		if !f.hasDistributions {
			return labelsOnly{f}, nil
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %q", artifact.ErrUnknownKind, doc.Kind)
	}
}

func checkColumns(cols []string) error {
	if len(cols) == 0 {
		return nil
	}
	if len(cols) != features.Len {
		return fmt.Errorf("%w: got %d columns, want %d", ErrColumnMismatch, len(cols), features.Len)
	}
	for i, name := range features.Names {
		if cols[i] != name {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrColumnMismatch, i, cols[i], name)
		}
	}
	return nil
}
