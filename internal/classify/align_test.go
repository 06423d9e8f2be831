package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/common"
)

func TestNewAligner(t *testing.T) {
	tests := []struct {
		name        string
		treeClasses []int
		textClasses []int
		wantClasses []int
		wantErr     bool
	}{
		{
			name:        "identical label sets",
			treeClasses: []int{3, 1, 2},
			textClasses: []int{1, 2, 3},
			wantClasses: []int{1, 2, 3},
		},
		{
			name:        "partial overlap takes sorted union",
			treeClasses: []int{1, 2},
			textClasses: []int{2, 3},
			wantClasses: []int{1, 2, 3},
		},
		{
			name:        "single shared category",
			treeClasses: []int{5},
			textClasses: []int{5, 9},
			wantClasses: []int{5, 9},
		},
		{
			name:        "disjoint sets refuse to align",
			treeClasses: []int{1, 2},
			textClasses: []int{3, 4},
			wantErr:     true,
		},
		{
			name:        "empty tree set",
			treeClasses: []int{},
			textClasses: []int{1, 2},
			wantErr:     true,
		},
		{
			name:        "empty text set",
			treeClasses: []int{1, 2},
			textClasses: nil,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner, err := NewAligner(tt.treeClasses, tt.textClasses)
			if tt.wantErr {
				require.Error(t, err)
				var cfgErr *common.ConfigError
				assert.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T", err)
				assert.True(t, errors.Is(err, common.ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantClasses, aligner.ClassIDs)
		})
	}
}

func TestAligner_ProjectZeroFills(t *testing.T) {
	// Tree knows 1,2; text knows 2,3. Canonical order is 1,2,3.
	aligner, err := NewAligner([]int{1, 2}, []int{2, 3})
	require.NoError(t, err)

	pt := aligner.ProjectTree([]float64{0.9, 0.1})
	assert.Equal(t, []float64{0.9, 0.1, 0}, pt, "category 3 is unknown to the tree")

	px := aligner.ProjectText([]float64{0.8, 0.2})
	assert.Equal(t, []float64{0, 0.8, 0.2}, px, "category 1 is unknown to the text model")
}

func TestAligner_ProjectDoesNotRenormalize(t *testing.T) {
	aligner, err := NewAligner([]int{1, 2}, []int{1, 2, 3})
	require.NoError(t, err)

	projected := aligner.ProjectTree([]float64{0.6, 0.4})
	sum := 0.0
	for _, p := range projected {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12, "zero-filled entries must not trigger renormalization")
}
