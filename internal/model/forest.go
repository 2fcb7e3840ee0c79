package model

import (
	"context"
	"fmt"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/artifact"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
)

type node struct {
	feature     int
	threshold   float64
	left, right int
	leaf        bool
	label       classify.Label
	dist        [2]float64 // normalized, valid when the forest has distributions
}

// Forest is a tree ensemble. With class distributions on every leaf it
// averages them like a random forest; otherwise it takes a majority vote.
type Forest struct {
	trees            [][]node
	hasDistributions bool
}

func newForest(p *artifact.ForestParams) (*Forest, error) {
	f := &Forest{hasDistributions: true}
	for ti, t := range p.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("forest: tree %d is empty", ti)
		}
		nodes := make([]node, len(t.Nodes))
		for i, n := range t.Nodes {
			built, hasDist, err := buildNode(n, i, len(t.Nodes))
			if err != nil {
				return nil, fmt.Errorf("forest: tree %d node %d: %w", ti, i, err)
			}
			if built.leaf && !hasDist {
				f.hasDistributions = false
			}
			nodes[i] = built
		}
		f.trees = append(f.trees, nodes)
	}
	return f, nil
}

func buildNode(n artifact.Node, idx, count int) (node, bool, error) {
	if !n.IsLeaf() {
		if n.Feature < 0 || n.Feature >= features.Len {
			return node{}, false, fmt.Errorf("feature %d out of range", n.Feature)
		}
		// Children after parent keeps traversal finite.
		for _, child := range []int{n.Left, n.Right} {
			if child <= idx || child >= count {
				return node{}, false, fmt.Errorf("child %d out of order", child)
			}
		}
		return node{feature: n.Feature, threshold: n.Threshold, left: n.Left, right: n.Right}, false, nil
	}

	out := node{leaf: true}
	hasDist := false
	if len(n.Distribution) > 0 {
		if len(n.Distribution) != 2 {
			return node{}, false, fmt.Errorf("distribution has %d classes, want 2", len(n.Distribution))
		}
		sum := n.Distribution[0] + n.Distribution[1]
		if n.Distribution[0] < 0 || n.Distribution[1] < 0 || sum <= 0 {
			return node{}, false, fmt.Errorf("distribution %v is not a weighting", n.Distribution)
		}
		out.dist = [2]float64{n.Distribution[0] / sum, n.Distribution[1] / sum}
		hasDist = true
	}

	switch {
	case n.Label != nil:
		if *n.Label != 0 && *n.Label != 1 {
			return node{}, false, fmt.Errorf("label %d outside {0, 1}", *n.Label)
		}
		out.label = classify.Label(*n.Label)
	case hasDist:
		if out.dist[1] > out.dist[0] {
			out.label = classify.LabelApproved
		}
	default:
		return node{}, false, fmt.Errorf("leaf has neither label nor distribution")
	}
	return out, hasDist, nil
}

func (f *Forest) leaf(tree []node, v features.FeatureVector) node {
	i := 0
	for !tree[i].leaf {
		n := tree[i]
		if float64(v[n.feature]) <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return tree[i]
}

func (f *Forest) Predict(ctx context.Context, v features.FeatureVector) (classify.Label, error) {
	if f.hasDistributions {
		dist, err := f.PredictProba(ctx, v)
		if err != nil {
			return 0, err
		}
		if dist[1] > dist[0] {
			return classify.LabelApproved, nil
		}
		return classify.LabelStandard, nil
	}

	votes := 0
	for _, tree := range f.trees {
		if f.leaf(tree, v).label == classify.LabelApproved {
			votes++
		}
	}
	// Ties go to the standard flow.
	if 2*votes > len(f.trees) {
		return classify.LabelApproved, nil
	}
	return classify.LabelStandard, nil
}

func (f *Forest) PredictProba(_ context.Context, v features.FeatureVector) ([]float64, error) {
	if !f.hasDistributions {
		return nil, fmt.Errorf("forest has no leaf distributions")
	}
	var sum [2]float64
	for _, tree := range f.trees {
		d := f.leaf(tree, v).dist
		sum[0] += d[0]
		sum[1] += d[1]
	}
	n := float64(len(f.trees))
	return []float64{sum[0] / n, sum[1] / n}, nil
}

// labelsOnly hides PredictProba from forests exported without distributions,
// so the adapter sees no confidence capability.
type labelsOnly struct {
	f *Forest
}

func (l labelsOnly) Predict(ctx context.Context, v features.FeatureVector) (classify.Label, error) {
	return l.f.Predict(ctx, v)
}
