package classify

import "github.com/fafycat/fafycat/internal/features"

// Scorer is the shared contract both sub-models implement: fit on labeled
// vectors, then emit a full probability vector over a fixed class list.
// The ensemble composes two Scorers behind this interface rather than
// subclassing either.
type Scorer interface {
	Fit(vectors []features.Vector, labels []int) error
	Classes() []int
	ClassProbabilities(v features.Vector) ([]float64, error)
}
