package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v2"
)

// Model kinds understood by the loader.
const (
	KindLogistic = "logistic"
	KindForest   = "forest"
)

// ErrUnknownKind is returned for artifacts of an unsupported model kind.
var ErrUnknownKind = errors.New("unknown model kind")

// Format is the serialization of an artifact document.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a classifier artifact as produced by the training pipeline.
type Document struct {
	Kind     string          `json:"kind" yaml:"kind"`
	Version  string          `json:"version,omitempty" yaml:"version,omitempty"`
	Columns  []string        `json:"columns,omitempty" yaml:"columns,omitempty"`
	Logistic *LogisticParams `json:"logistic,omitempty" yaml:"logistic,omitempty"`
	Forest   *ForestParams   `json:"forest,omitempty" yaml:"forest,omitempty"`
}

// LogisticParams are the coefficients of a logistic regression.
type LogisticParams struct {
	Weights   []float64 `json:"weights" yaml:"weights"`
	Intercept float64   `json:"intercept" yaml:"intercept"`
	Threshold float64   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// ForestParams is an ensemble of binary decision trees.
type ForestParams struct {
	Trees []Tree `json:"trees" yaml:"trees"`
}

// Tree is a flattened decision tree. Nodes[0] is the root and children always
// come after their parent.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a split when Left and Right are set, a leaf otherwise. A leaf
// carries a Label and, when the trainer exported them, class Distribution
// weights.
type Node struct {
	Feature      int       `json:"feature" yaml:"feature"`
	Threshold    float64   `json:"threshold" yaml:"threshold"`
	Left         int       `json:"left" yaml:"left"`
	Right        int       `json:"right" yaml:"right"`
	Label        *int      `json:"label,omitempty" yaml:"label,omitempty"`
	Distribution []float64 `json:"distribution,omitempty" yaml:"distribution,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Left <= 0 && n.Right <= 0 }

// DetectFormat picks a format from a file or object name.
func DetectFormat(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses an artifact. FormatAuto falls back to DetectFormat(name).
func Decode(data []byte, format Format, name string) (*Document, error) {
	if format == FormatAuto {
		format = DetectFormat(name)
	}

	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json artifact: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml artifact: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", format)
	}

	switch doc.Kind {
	case KindLogistic:
		if doc.Logistic == nil {
			return nil, fmt.Errorf("logistic artifact has no logistic section")
		}
	case KindForest:
		if doc.Forest == nil || len(doc.Forest.Trees) == 0 {
			return nil, fmt.Errorf("forest artifact has no trees")
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}
	return &doc, nil
}
