package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
)

// stubScorer returns fixed probabilities regardless of input.
type stubScorer struct {
	err     error
	classes []int
	probs   []float64
}

func (s *stubScorer) Fit([]features.Vector, []int) error { return nil }

func (s *stubScorer) Classes() []int { return s.classes }

func (s *stubScorer) ClassProbabilities(features.Vector) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]float64(nil), s.probs...), nil
}

func TestEnsemble_PredictProbaBlendsLinearly(t *testing.T) {
	tree := &stubScorer{classes: []int{1, 2}, probs: []float64{0.9, 0.1}}
	text := &stubScorer{classes: []int{1, 2}, probs: []float64{0.3, 0.7}}

	ensemble, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 0.6, Text: 0.4})
	require.NoError(t, err)

	probs, err := ensemble.PredictProba(features.Vector{})
	require.NoError(t, err)

	assert.InDelta(t, 0.6*0.9+0.4*0.3, probs[0], 1e-12)
	assert.InDelta(t, 0.6*0.1+0.4*0.7, probs[1], 1e-12)
}

func TestEnsemble_PredictProbaSumsToOne(t *testing.T) {
	// Sub-model vectors deliberately not summing to 1 force renormalization.
	tree := &stubScorer{classes: []int{1, 2}, probs: []float64{0.5, 0.3}}
	text := &stubScorer{classes: []int{2, 3}, probs: []float64{0.8, 0.2}}

	ensemble, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 0.5, Text: 0.5})
	require.NoError(t, err)

	probs, err := ensemble.PredictProba(features.Vector{})
	require.NoError(t, err)
	require.Len(t, probs, 3)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEnsemble_PredictTieBreaksTowardLowestID(t *testing.T) {
	tree := &stubScorer{classes: []int{4, 7}, probs: []float64{0.5, 0.5}}
	text := &stubScorer{classes: []int{4, 7}, probs: []float64{0.5, 0.5}}

	ensemble, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 0.5, Text: 0.5})
	require.NoError(t, err)

	result, err := ensemble.Predict(features.Vector{TransactionID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, 4, result.CategoryID)
	assert.InDelta(t, 0.5, result.Confidence, 1e-12)
	assert.Equal(t, "t1", result.TransactionID)
}

func TestEnsemble_WeightExtremes(t *testing.T) {
	tree := &stubScorer{classes: []int{1, 2}, probs: []float64{0.9, 0.1}}
	text := &stubScorer{classes: []int{1, 2}, probs: []float64{0.2, 0.8}}

	treeOnly, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 1, Text: 0})
	require.NoError(t, err)
	probs, err := treeOnly.PredictProba(features.Vector{})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, probs[0], 1e-12, "w_tree=1 must reproduce the tree model")

	textOnly, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 0, Text: 1})
	require.NoError(t, err)
	probs, err = textOnly.PredictProba(features.Vector{})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, probs[1], 1e-12, "w_tree=0 must reproduce the text model")
}

func TestEnsemble_PredictBatchMatchesSingleCalls(t *testing.T) {
	tree := &stubScorer{classes: []int{1, 2, 3}, probs: []float64{0.2, 0.5, 0.3}}
	text := &stubScorer{classes: []int{1, 2, 3}, probs: []float64{0.1, 0.6, 0.3}}

	ensemble, err := NewEnsemble(tree, text, model.BlendWeights{Tree: 0.7, Text: 0.3})
	require.NoError(t, err)

	vectors := []features.Vector{
		{TransactionID: "a"},
		{TransactionID: "b"},
		{TransactionID: "c"},
	}

	batch, err := ensemble.PredictBatch(vectors)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, v := range vectors {
		single, predictErr := ensemble.Predict(v)
		require.NoError(t, predictErr)
		assert.Equal(t, single.CategoryID, batch[i].CategoryID)
		assert.Equal(t, single.Confidence, batch[i].Confidence)
		assert.Equal(t, single.Probabilities, batch[i].Probabilities)
		assert.Equal(t, v.TransactionID, batch[i].TransactionID, "batch must preserve input order")
	}
}

func TestNewEnsemble_RejectsInvalidWeights(t *testing.T) {
	tree := &stubScorer{classes: []int{1, 2}, probs: []float64{0.5, 0.5}}
	text := &stubScorer{classes: []int{1, 2}, probs: []float64{0.5, 0.5}}

	tests := []struct {
		name    string
		weights model.BlendWeights
	}{
		{name: "negative weight", weights: model.BlendWeights{Tree: -0.1, Text: 1.1}},
		{name: "sum above one", weights: model.BlendWeights{Tree: 0.8, Text: 0.8}},
		{name: "sum below one", weights: model.BlendWeights{Tree: 0.2, Text: 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnsemble(tree, text, tt.weights)
			assert.Error(t, err)
		})
	}
}
