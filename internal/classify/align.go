package classify

import (
	"sort"

	"github.com/fafycat/fafycat/internal/common"
)

// Aligner reconciles the two sub-models' label orderings into one canonical
// category ordering, so their probability vectors can be blended
// elementwise.
type Aligner struct {
	ClassIDs []int // canonical ordering: sorted union of both label sets
	TreeIdx  []int // canonical position -> tree vector position, -1 if absent
	TextIdx  []int // canonical position -> text vector position, -1 if absent
}

// NewAligner builds the canonical ordering from the two label lists. The
// label sets must overlap: disjoint sets mean the models were trained on
// incompatible data and must not blend.
func NewAligner(treeClasses, textClasses []int) (*Aligner, error) {
	if len(treeClasses) == 0 || len(textClasses) == 0 {
		return nil, common.NewConfigError("cannot align empty label sets (tree=%d, text=%d)", len(treeClasses), len(textClasses))
	}

	union := make(map[int]struct{}, len(treeClasses)+len(textClasses))
	for _, id := range treeClasses {
		union[id] = struct{}{}
	}
	overlap := false
	for _, id := range textClasses {
		if _, ok := union[id]; ok {
			overlap = true
		}
		union[id] = struct{}{}
	}
	if !overlap {
		return nil, common.NewConfigError("tree and text classifiers share no categories; models were trained on incompatible data")
	}

	canonical := make([]int, 0, len(union))
	for id := range union {
		canonical = append(canonical, id)
	}
	sort.Ints(canonical)

	return &Aligner{
		ClassIDs: canonical,
		TreeIdx:  indexMap(canonical, treeClasses),
		TextIdx:  indexMap(canonical, textClasses),
	}, nil
}

// ProjectTree re-projects a tree-ordered probability vector into canonical
// order. A category absent from the tree's label set gets probability 0;
// the vector is not re-normalized, since "never predicted" is itself a
// genuine probability estimate.
func (a *Aligner) ProjectTree(probs []float64) []float64 {
	return project(probs, a.TreeIdx)
}

// ProjectText re-projects a text-ordered probability vector into canonical
// order.
func (a *Aligner) ProjectText(probs []float64) []float64 {
	return project(probs, a.TextIdx)
}

func project(probs []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for canonical, source := range idx {
		if source >= 0 && source < len(probs) {
			out[canonical] = probs[source]
		}
	}
	return out
}

func indexMap(canonical, source []int) []int {
	positions := make(map[int]int, len(source))
	for i, id := range source {
		positions[id] = i
	}
	idx := make([]int, len(canonical))
	for i, id := range canonical {
		if pos, ok := positions[id]; ok {
			idx[i] = pos
		} else {
			idx[i] = -1
		}
	}
	return idx
}
