package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// textCorpus builds a two-class corpus with clearly separated vocabulary:
// groceries (negative amounts) vs salary (positive amounts).
func textCorpus(perClass int) ([]features.Vector, []int) {
	var vectors []features.Vector
	var labels []int
	for i := 0; i < perClass; i++ {
		vectors = append(vectors, features.Vector{
			Text:      "rewe supermarkt grocery food",
			Amount:    -42.50,
			HasAmount: true,
		})
		labels = append(labels, 1)
		vectors = append(vectors, features.Vector{
			Text:      "acme corp salary payroll wage",
			Amount:    2800,
			HasAmount: true,
		})
		labels = append(labels, 2)
	}
	return vectors, labels
}

func TestTextClassifier_LearnsVocabulary(t *testing.T) {
	vectors, labels := textCorpus(10)

	tc := NewTextClassifier()
	require.NoError(t, tc.Fit(vectors, labels))
	assert.Equal(t, []int{1, 2}, tc.Classes())

	probs, err := tc.ClassProbabilities(features.Vector{
		Text:      "rewe grocery food",
		Amount:    -30,
		HasAmount: true,
	})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.Greater(t, probs[0], probs[1], "grocery vocabulary belongs to class 1")

	probs, err = tc.ClassProbabilities(features.Vector{
		Text:      "acme salary wage",
		Amount:    2800,
		HasAmount: true,
	})
	require.NoError(t, err)
	assert.Greater(t, probs[1], probs[0], "salary vocabulary belongs to class 2")
}

func TestTextClassifier_ProbabilitiesSumToOne(t *testing.T) {
	vectors, labels := textCorpus(5)

	tc := NewTextClassifier()
	require.NoError(t, tc.Fit(vectors, labels))

	probs, err := tc.ClassProbabilities(features.Vector{Text: "something unseen entirely"})
	require.NoError(t, err)

	sum := 0.0
	for _, p := range probs {
		require.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTextClassifier_UntrainedPrediction(t *testing.T) {
	tc := NewTextClassifier()
	_, err := tc.ClassProbabilities(features.Vector{Text: "anything"})
	assert.ErrorIs(t, err, common.ErrModelNotTrained)
}

func TestTextClassifier_FitRejectsSingleCategory(t *testing.T) {
	tc := NewTextClassifier()
	err := tc.Fit([]features.Vector{{Text: "a"}, {Text: "b"}}, []int{1, 1})
	assert.Error(t, err)
}

func TestAmountBucket(t *testing.T) {
	tests := []struct {
		amount float64
		want   int
	}{
		{amount: 0, want: 0},
		{amount: -5, want: 0},
		{amount: 25, want: 1},
		{amount: -120, want: 2},
		{amount: 500, want: 3},
		{amount: -2500, want: 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, amountBucket(tt.amount), "amount %.2f", tt.amount)
	}
}
