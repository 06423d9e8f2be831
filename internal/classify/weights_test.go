package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeWeights_PrefersStrictlyBetterModel(t *testing.T) {
	classIDs := []int{1, 2}
	labels := []int{1, 2, 1, 2}

	// Tree is nearly perfect, text is uninformative: log loss decreases
	// monotonically in the tree weight, so the scan must land on 1.0.
	treeProbs := [][]float64{
		{0.99, 0.01},
		{0.01, 0.99},
		{0.99, 0.01},
		{0.01, 0.99},
	}
	textProbs := [][]float64{
		{0.5, 0.5},
		{0.5, 0.5},
		{0.5, 0.5},
		{0.5, 0.5},
	}

	report, err := OptimizeWeights(treeProbs, textProbs, classIDs, labels)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, report.Weights.Tree, 1e-9)
	assert.InDelta(t, 0.0, report.Weights.Text, 1e-9)
	assert.Less(t, report.LogLoss, report.TextLogLoss)
	assert.InDelta(t, report.TreeLogLoss, report.LogLoss, 1e-9)
	assert.Equal(t, 4, report.Samples)
}

func TestOptimizeWeights_TieResolvesTowardNeutralBlend(t *testing.T) {
	classIDs := []int{1, 2}
	labels := []int{1, 2}

	// Identical sub-models make every blend weight score the same.
	probs := [][]float64{
		{0.7, 0.3},
		{0.3, 0.7},
	}

	report, err := OptimizeWeights(probs, probs, classIDs, labels)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.Weights.Tree, 1e-9)
	assert.InDelta(t, 0.5, report.Weights.Text, 1e-9)
}

func TestOptimizeWeights_WeightsAlwaysSumToOne(t *testing.T) {
	classIDs := []int{1, 2}
	labels := []int{1, 1, 2}
	treeProbs := [][]float64{{0.8, 0.2}, {0.6, 0.4}, {0.3, 0.7}}
	textProbs := [][]float64{{0.55, 0.45}, {0.7, 0.3}, {0.4, 0.6}}

	report, err := OptimizeWeights(treeProbs, textProbs, classIDs, labels)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, report.Weights.Tree+report.Weights.Text, 1e-9)
	require.NoError(t, report.Weights.Validate())
}

func TestOptimizeWeights_RejectsMismatchedInputs(t *testing.T) {
	tests := []struct {
		name      string
		treeProbs [][]float64
		textProbs [][]float64
		labels    []int
	}{
		{name: "empty inputs", treeProbs: nil, textProbs: nil, labels: nil},
		{
			name:      "row count mismatch",
			treeProbs: [][]float64{{1, 0}},
			textProbs: [][]float64{{1, 0}, {0, 1}},
			labels:    []int{1},
		},
		{
			name:      "label count mismatch",
			treeProbs: [][]float64{{1, 0}},
			textProbs: [][]float64{{1, 0}},
			labels:    []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OptimizeWeights(tt.treeProbs, tt.textProbs, []int{1, 2}, tt.labels)
			assert.Error(t, err)
		})
	}
}
