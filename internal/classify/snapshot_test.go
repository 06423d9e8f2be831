package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
)

// trainedSnapshot fits both sub-models on a small synthetic corpus.
func trainedSnapshot(t *testing.T) (*Snapshot, []features.Vector) {
	t.Helper()

	var vectors []features.Vector
	var labels []int
	for i := 0; i < 15; i++ {
		vectors = append(vectors, features.Vector{
			Text:      "rewe supermarkt grocery food",
			Numeric:   []float64{float64(i) * 0.01, 1},
			Amount:    -42.50,
			HasAmount: true,
		})
		labels = append(labels, 1)
		vectors = append(vectors, features.Vector{
			Text:      "acme corp salary payroll",
			Numeric:   []float64{1 + float64(i)*0.01, 0},
			Amount:    2800,
			HasAmount: true,
		})
		labels = append(labels, 2)
	}

	tree := NewGBTClassifier(testGBTConfig())
	require.NoError(t, tree.Fit(vectors, labels))
	text := NewTextClassifier()
	require.NoError(t, text.Fit(vectors, labels))

	snapshot, err := NewSnapshot(tree, text, model.BlendWeights{Tree: 0.7, Text: 0.3}, len(vectors))
	require.NoError(t, err)
	return snapshot, vectors
}

func TestSnapshot_RoundTripPreservesPredictions(t *testing.T) {
	snapshot, vectors := trainedSnapshot(t)

	original, err := snapshot.Ensemble()
	require.NoError(t, err)

	data, err := snapshot.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, restored.Version)
	assert.Equal(t, snapshot.ClassIDs, restored.ClassIDs)
	assert.Equal(t, snapshot.Weights, restored.Weights)
	assert.Equal(t, snapshot.TrainingSamples, restored.TrainingSamples)

	loaded, err := restored.Ensemble()
	require.NoError(t, err)

	for _, v := range vectors {
		want, wantErr := original.PredictProba(v)
		require.NoError(t, wantErr)
		got, gotErr := loaded.PredictProba(v)
		require.NoError(t, gotErr)

		require.Len(t, got, len(want))
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-9)
		}
	}
}

func TestUnmarshalSnapshot_RejectsGarbage(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte("not a snapshot"))
	assert.Error(t, err)
}

func TestNewSnapshot_RejectsInvalidWeights(t *testing.T) {
	snapshot, _ := trainedSnapshot(t)

	_, err := NewSnapshot(snapshot.Tree, snapshot.text, model.BlendWeights{Tree: 0.9, Text: 0.9}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestHandle_SwapAndServe(t *testing.T) {
	handle := NewHandle()

	_, err := handle.Ensemble()
	assert.ErrorIs(t, err, common.ErrModelNotTrained)
	_, err = handle.Snapshot()
	assert.ErrorIs(t, err, common.ErrModelNotTrained)

	snapshot, vectors := trainedSnapshot(t)
	require.NoError(t, handle.Swap(snapshot))

	served, err := handle.Ensemble()
	require.NoError(t, err)
	_, err = served.Predict(vectors[0])
	require.NoError(t, err)

	got, err := handle.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snapshot, got)
}
