package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// TrainerConfig controls a training run.
type TrainerConfig struct {
	GBT                GBTConfig
	MinTrainingSamples int
	MinPerCategory     int
	ValidationFraction float64
	Seed               int64
}

// DefaultTrainerConfig returns the default training configuration.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		GBT:                DefaultGBTConfig(),
		MinTrainingSamples: 50,
		MinPerCategory:     5,
		ValidationFraction: 0.2,
		Seed:               42,
	}
}

// TrainResult reports what a training run produced.
type TrainResult struct {
	Snapshot *Snapshot
	Report   WeightReport
}

// Trainer fits both sub-models, optimizes the blend weights on a held-out
// split, and produces an immutable snapshot. Within a run the steps are
// strictly sequential: fit tree, fit text, align, optimize weights, refit
// on the full corpus. Cancellation is honored between steps but never
// mid-fit, since a partially boosted or partially counted model is not
// well-defined.
type Trainer struct {
	config TrainerConfig
}

// NewTrainer creates a trainer.
func NewTrainer(config TrainerConfig) *Trainer {
	return &Trainer{config: config}
}

// Train runs a full training pass over the labeled corpus. categoryNames is
// used only to make InsufficientDataError actionable; nil is fine.
func (t *Trainer) Train(ctx context.Context, vectors []features.Vector, labels []int, categoryNames map[int]string) (*TrainResult, error) {
	if err := t.validateCorpus(vectors, labels, categoryNames); err != nil {
		return nil, err
	}

	trainIdx, valIdx := stratifiedSplit(labels, t.config.ValidationFraction, t.config.Seed)
	trainVectors, trainLabels := subset(vectors, labels, trainIdx)
	valVectors, valLabels := subset(vectors, labels, valIdx)

	slog.Info("training ensemble",
		"samples", len(vectors),
		"train", len(trainIdx),
		"validation", len(valIdx),
		"categories", len(uniqueSorted(labels)))

	// Fit tree model on the training split.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	treeTmp := NewGBTClassifier(t.config.GBT)
	if err := treeTmp.Fit(trainVectors, trainLabels); err != nil {
		return nil, fmt.Errorf("failed to fit tree model: %w", err)
	}

	// Fit text model on the training split.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	textTmp := NewTextClassifier()
	if err := textTmp.Fit(trainVectors, trainLabels); err != nil {
		return nil, fmt.Errorf("failed to fit text model: %w", err)
	}

	// Align classes and collect validation probabilities.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	aligner, err := NewAligner(treeTmp.Classes(), textTmp.Classes())
	if err != nil {
		return nil, err
	}
	treeProbs, err := collectProbs(treeTmp, aligner.ProjectTree, valVectors)
	if err != nil {
		return nil, fmt.Errorf("tree validation predictions: %w", err)
	}
	textProbs, err := collectProbs(textTmp, aligner.ProjectText, valVectors)
	if err != nil {
		return nil, fmt.Errorf("text validation predictions: %w", err)
	}

	// Optimize blend weights on the held-out split.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report, err := OptimizeWeights(treeProbs, textProbs, aligner.ClassIDs, valLabels)
	if err != nil {
		return nil, err
	}

	// Refit both models on the full corpus for serving.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree := NewGBTClassifier(t.config.GBT)
	if err := tree.Fit(vectors, labels); err != nil {
		return nil, fmt.Errorf("failed to refit tree model: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := NewTextClassifier()
	if err := text.Fit(vectors, labels); err != nil {
		return nil, fmt.Errorf("failed to refit text model: %w", err)
	}

	snapshot, err := NewSnapshot(tree, text, report.Weights, len(vectors))
	if err != nil {
		return nil, err
	}

	return &TrainResult{Snapshot: snapshot, Report: report}, nil
}

func (t *Trainer) validateCorpus(vectors []features.Vector, labels []int, categoryNames map[int]string) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("corpus mismatch: %d vectors, %d labels", len(vectors), len(labels))
	}
	if len(vectors) < t.config.MinTrainingSamples {
		return common.NewUserError(
			fmt.Sprintf("not enough training data: need at least %d labeled transactions, have %d",
				t.config.MinTrainingSamples, len(vectors)), nil)
	}

	counts := map[int]int{}
	for _, label := range labels {
		counts[label]++
	}
	if len(counts) < 2 {
		return common.NewUserError("need at least 2 categories with labeled transactions to train", nil)
	}

	// Report the worst offender deterministically (lowest category ID).
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if counts[id] < t.config.MinPerCategory {
			name := categoryNames[id]
			if name == "" {
				name = "category " + strconv.Itoa(id)
			}
			return &common.InsufficientDataError{
				Category: name,
				Count:    counts[id],
				Need:     t.config.MinPerCategory,
			}
		}
	}
	return nil
}

func collectProbs(scorer Scorer, projection func([]float64) []float64, vectors []features.Vector) ([][]float64, error) {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		probs, err := scorer.ClassProbabilities(v)
		if err != nil {
			return nil, err
		}
		out[i] = projection(probs)
	}
	return out, nil
}

// stratifiedSplit partitions indices per class, keeping class ratios in
// both splits. Every class contributes at least one example to each side.
func stratifiedSplit(labels []int, valFraction float64, seed int64) (trainIdx, valIdx []int) {
	rng := rand.New(rand.NewSource(seed))
	byClass := map[int][]int{}
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	for _, class := range classes {
		indices := byClass[class]
		rng.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})
		nVal := int(float64(len(indices)) * valFraction)
		if nVal < 1 {
			nVal = 1
		}
		if nVal >= len(indices) {
			nVal = len(indices) - 1
		}
		valIdx = append(valIdx, indices[:nVal]...)
		trainIdx = append(trainIdx, indices[nVal:]...)
	}

	sort.Ints(trainIdx)
	sort.Ints(valIdx)
	return trainIdx, valIdx
}

func subset(vectors []features.Vector, labels, indices []int) ([]features.Vector, []int) {
	outV := make([]features.Vector, len(indices))
	outL := make([]int, len(indices))
	for i, idx := range indices {
		outV[i] = vectors[idx]
		outL[i] = labels[idx]
	}
	return outV, outL
}
