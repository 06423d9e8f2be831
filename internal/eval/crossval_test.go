package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// oracleProber predicts the true class of each vector via its first numeric
// feature, which the test corpus sets to the label.
type oracleProber struct {
	classes []int
}

func (o oracleProber) Classes() []int { return o.classes }

func (o oracleProber) ClassProbabilities(v features.Vector) ([]float64, error) {
	probs := make([]float64, len(o.classes))
	for i, id := range o.classes {
		if float64(id) == v.Numeric[0] {
			probs[i] = 0.97
		} else {
			probs[i] = 0.03 / float64(len(o.classes)-1)
		}
	}
	return probs, nil
}

// evalCorpus labels each vector with its first numeric feature.
func evalCorpus(perClass int, classes []int) ([]features.Vector, []int) {
	var vectors []features.Vector
	var labels []int
	for _, class := range classes {
		for i := 0; i < perClass; i++ {
			vectors = append(vectors, features.Vector{Numeric: []float64{float64(class), float64(i)}})
			labels = append(labels, class)
		}
	}
	return vectors, labels
}

func oracleBuilder(train []features.Vector, labels []int) (Prober, error) {
	seen := map[int]struct{}{}
	var classes []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			classes = append(classes, l)
		}
	}
	// Keep class order stable regardless of fold composition.
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			if classes[j] < classes[i] {
				classes[i], classes[j] = classes[j], classes[i]
			}
		}
	}
	return oracleProber{classes: classes}, nil
}

func TestHarness_RunScoresAccurateModel(t *testing.T) {
	vectors, labels := evalCorpus(20, []int{1, 2, 3})

	cfg := HarnessConfig{Folds: 4, Repeats: 2, CalibrationBins: 8, Seed: 7}
	reports, err := NewHarness(cfg).Run(context.Background(), vectors, labels,
		map[string]Builder{"oracle": oracleBuilder}, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, "oracle", report.Name)
	assert.InDelta(t, 1.0, report.MacroF1.Mean, 1e-9, "an oracle classifies every fold perfectly")
	assert.InDelta(t, 1.0, report.WeightedF1.Mean, 1e-9)
	assert.Less(t, report.LogLoss.Mean, 0.1)
	assert.NotEmpty(t, report.RiskCoverage)
}

func TestHarness_ReportsSortedByName(t *testing.T) {
	vectors, labels := evalCorpus(10, []int{1, 2})

	cfg := HarnessConfig{Folds: 2, Repeats: 1, CalibrationBins: 4, Seed: 1}
	reports, err := NewHarness(cfg).Run(context.Background(), vectors, labels, map[string]Builder{
		"zeta":  oracleBuilder,
		"alpha": oracleBuilder,
	}, nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "alpha", reports[0].Name)
	assert.Equal(t, "zeta", reports[1].Name)
}

func TestHarness_InsufficientDataPerCategory(t *testing.T) {
	// Category 2 has fewer examples than folds.
	vectors, labels := evalCorpus(10, []int{1})
	extra, extraLabels := evalCorpus(3, []int{2})
	vectors = append(vectors, extra...)
	labels = append(labels, extraLabels...)

	cfg := HarnessConfig{Folds: 5, Repeats: 1, CalibrationBins: 4, Seed: 1}
	_, err := NewHarness(cfg).Run(context.Background(), vectors, labels,
		map[string]Builder{"oracle": oracleBuilder}, map[int]string{2: "travel"})
	require.Error(t, err)

	var dataErr *common.InsufficientDataError
	require.True(t, errors.As(err, &dataErr), "want InsufficientDataError, got %T", err)
	assert.Equal(t, "travel", dataErr.Category)
	assert.Equal(t, 3, dataErr.Count)
	assert.Equal(t, 5, dataErr.Need)
}

func TestHarness_HonorsCancellation(t *testing.T) {
	vectors, labels := evalCorpus(10, []int{1, 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := HarnessConfig{Folds: 2, Repeats: 1, CalibrationBins: 4, Seed: 1}
	_, err := NewHarness(cfg).Run(ctx, vectors, labels,
		map[string]Builder{"oracle": oracleBuilder}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStratifiedFolds(t *testing.T) {
	labels := make([]int, 0, 100)
	for i := 0; i < 75; i++ {
		labels = append(labels, 1)
	}
	for i := 0; i < 25; i++ {
		labels = append(labels, 2)
	}

	folds := stratifiedFolds(labels, 5, 42)
	require.Len(t, folds, 5)

	seen := map[int]int{}
	for _, fold := range folds {
		assert.Len(t, fold, 20)

		count := map[int]int{}
		for _, idx := range fold {
			count[labels[idx]]++
			seen[idx]++
		}
		assert.Equal(t, 15, count[1], "fold keeps the 75/25 class ratio")
		assert.Equal(t, 5, count[2])
	}

	// Every index appears in exactly one fold.
	require.Len(t, seen, 100)
	for idx, n := range seen {
		assert.Equal(t, 1, n, "index %d appears %d times", idx, n)
	}
}

func TestStratifiedFolds_DeterministicPerSeed(t *testing.T) {
	labels := []int{1, 1, 1, 1, 2, 2, 2, 2}

	first := stratifiedFolds(labels, 2, 9)
	second := stratifiedFolds(labels, 2, 9)
	assert.Equal(t, first, second)
}
