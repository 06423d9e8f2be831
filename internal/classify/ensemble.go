package classify

import (
	"fmt"
	"math"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
)

// probSumEpsilon is the floating drift beyond which a blended vector gets
// renormalized.
const probSumEpsilon = 1e-9

// Ensemble blends the tree and text classifiers' aligned probability
// vectors with tunable per-model weights. It is a pure function of its
// inputs and the loaded model state; predictions have no side effects.
type Ensemble struct {
	tree    Scorer
	text    Scorer
	aligner *Aligner
	weights model.BlendWeights
}

// NewEnsemble composes two fitted scorers. The aligner is derived from
// their label sets; incompatible sets refuse to blend.
func NewEnsemble(tree, text Scorer, weights model.BlendWeights) (*Ensemble, error) {
	if err := weights.Validate(); err != nil {
		return nil, common.NewConfigError("%v", err)
	}
	aligner, err := NewAligner(tree.Classes(), text.Classes())
	if err != nil {
		return nil, err
	}
	return &Ensemble{
		tree:    tree,
		text:    text,
		aligner: aligner,
		weights: weights,
	}, nil
}

// Classes returns the canonical category ordering.
func (e *Ensemble) Classes() []int {
	return e.aligner.ClassIDs
}

// Weights returns the current blend weights.
func (e *Ensemble) Weights() model.BlendWeights {
	return e.weights
}

// PredictProba blends the two sub-models' full probability vectors:
// p = w_tree*p_tree + w_text*p_text over the aligned vectors. The result is
// guaranteed to sum to 1 within tolerance. The tree model contributes its
// complete calibrated vector, not an arg-max reconstruction; discarding the
// non-top probabilities measurably degrades the blended log loss.
func (e *Ensemble) PredictProba(v features.Vector) ([]float64, error) {
	treeProbs, err := e.tree.ClassProbabilities(v)
	if err != nil {
		return nil, fmt.Errorf("tree model: %w", err)
	}
	textProbs, err := e.text.ClassProbabilities(v)
	if err != nil {
		return nil, fmt.Errorf("text model: %w", err)
	}

	pt := e.aligner.ProjectTree(treeProbs)
	px := e.aligner.ProjectText(textProbs)

	blended := make([]float64, len(pt))
	sum := 0.0
	for i := range blended {
		blended[i] = e.weights.Tree*pt[i] + e.weights.Text*px[i]
		sum += blended[i]
	}
	if math.Abs(sum-1) > probSumEpsilon && sum > 0 {
		for i := range blended {
			blended[i] /= sum
		}
	}
	return blended, nil
}

// Predict returns the arg-max category and its probability as confidence.
// Ties break toward the lowest category ID, so results are deterministic.
func (e *Ensemble) Predict(v features.Vector) (model.PredictionResult, error) {
	probs, err := e.PredictProba(v)
	if err != nil {
		return model.PredictionResult{}, err
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return model.PredictionResult{
		TransactionID: v.TransactionID,
		CategoryID:    e.aligner.ClassIDs[best],
		Confidence:    probs[best],
		Probabilities: probs,
		ClassIDs:      append([]int(nil), e.aligner.ClassIDs...),
		Contributions: e.contributions(probs[best]),
	}, nil
}

// PredictBatch predicts every vector, preserving input order. Each result
// is identical to an isolated Predict call on that row; there is no
// batch-dependent behavior.
func (e *Ensemble) PredictBatch(vectors []features.Vector) ([]model.PredictionResult, error) {
	results := make([]model.PredictionResult, len(vectors))
	for i, v := range vectors {
		result, err := e.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results[i] = result
	}
	return results, nil
}

// contributions reports the blend composition plus the tree model's feature
// importance, weighted by each model's share of the decision.
func (e *Ensemble) contributions(confidence float64) map[string]float64 {
	out := map[string]float64{
		"ensemble_tree_weight": e.weights.Tree,
		"ensemble_text_weight": e.weights.Text,
		"text_features":        e.weights.Text * confidence,
	}
	if gbt, ok := e.tree.(*GBTClassifier); ok {
		for name, importance := range topImportance(gbt.FeatureImportance(), 10) {
			out["tree_"+name] = importance * e.weights.Tree
		}
	}
	return out
}

func topImportance(importance map[string]float64, n int) map[string]float64 {
	if len(importance) <= n {
		return importance
	}
	// Find the nth largest value as a cutoff.
	values := make([]float64, 0, len(importance))
	for _, v := range importance {
		values = append(values, v)
	}
	for i := 0; i < n; i++ {
		best := i
		for j := i + 1; j < len(values); j++ {
			if values[j] > values[best] {
				best = j
			}
		}
		values[i], values[best] = values[best], values[i]
	}
	cutoff := values[n-1]
	out := make(map[string]float64, n)
	for name, v := range importance {
		if v >= cutoff && len(out) < n {
			out[name] = v
		}
	}
	return out
}
