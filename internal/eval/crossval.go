package eval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// Prober is what the harness needs from a trained model: a class list and a
// full probability vector per input. Both sub-models and the ensemble
// satisfy it.
type Prober interface {
	Classes() []int
	ClassProbabilities(v features.Vector) ([]float64, error)
}

// Builder trains a model on one fold's training split.
type Builder func(train []features.Vector, labels []int) (Prober, error)

// HarnessConfig controls the cross-validation run.
type HarnessConfig struct {
	Folds           int
	Repeats         int
	CalibrationBins int
	Seed            int64
	ShowProgress    bool
}

// DefaultHarnessConfig returns the reference configuration: 5 folds over 5
// repeats with 8 calibration bins.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		Folds:           5,
		Repeats:         5,
		CalibrationBins: 8,
		Seed:            42,
	}
}

// Summary is a point estimate with a confidence interval over the repeated
// folds (mean ± 1.96 standard errors).
type Summary struct {
	Mean   float64
	StdDev float64
	StdErr float64
	Low    float64
	High   float64
}

func summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	mean := stat.Mean(scores, nil)
	sd := 0.0
	if len(scores) > 1 {
		sd = stat.StdDev(scores, nil)
	}
	se := sd / math.Sqrt(float64(len(scores)))
	return Summary{
		Mean:   mean,
		StdDev: sd,
		StdErr: se,
		Low:    mean - 1.96*se,
		High:   mean + 1.96*se,
	}
}

// ModelReport aggregates one model's cross-validated metrics.
type ModelReport struct {
	Name         string
	MacroF1      Summary
	WeightedF1   Summary
	LogLoss      Summary
	Brier        Summary
	ECE          Summary
	RiskCoverage []RiskCoveragePoint
}

// Harness runs repeated stratified k-fold cross-validation. It is
// report-only: nothing here feeds back into serving; a human reads the
// deltas before accepting a new configuration.
type Harness struct {
	config HarnessConfig
}

// NewHarness creates a harness.
func NewHarness(config HarnessConfig) *Harness {
	return &Harness{config: config}
}

// Run trains and scores every named builder on each fold of each repeat.
// categoryNames makes InsufficientDataError actionable; nil is fine.
// Builders run in a deterministic name order so progress output is stable.
func (h *Harness) Run(ctx context.Context, vectors []features.Vector, labels []int, builders map[string]Builder, categoryNames map[int]string) ([]ModelReport, error) {
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("cross-validation: %d vectors, %d labels", len(vectors), len(labels))
	}
	if err := h.checkStratifiable(labels, categoryNames); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)

	var bar *progressbar.ProgressBar
	if h.config.ShowProgress {
		bar = progressbar.Default(int64(len(names)*h.config.Repeats*h.config.Folds), "cross-validation")
	}

	reports := make([]ModelReport, 0, len(names))
	for _, name := range names {
		report, err := h.runModel(ctx, name, builders[name], vectors, labels, bar)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (h *Harness) runModel(ctx context.Context, name string, build Builder, vectors []features.Vector, labels []int, bar *progressbar.ProgressBar) (ModelReport, error) {
	var macroF1s, weightedF1s, logLosses, briers, eces []float64

	// Pool every held-out prediction for the risk-coverage curve.
	var pooledProbs [][]float64
	var pooledClassIDs []int
	var pooledLabels []int

	for repeat := 0; repeat < h.config.Repeats; repeat++ {
		folds := stratifiedFolds(labels, h.config.Folds, h.config.Seed+int64(repeat))
		for foldIdx, valIdx := range folds {
			if err := ctx.Err(); err != nil {
				return ModelReport{}, err
			}

			trainIdx := complement(valIdx, len(labels))
			trainV, trainL := subsetVectors(vectors, labels, trainIdx)
			valV, valL := subsetVectors(vectors, labels, valIdx)

			prober, err := build(trainV, trainL)
			if err != nil {
				return ModelReport{}, fmt.Errorf("repeat %d fold %d: %w", repeat+1, foldIdx+1, err)
			}

			classIDs := prober.Classes()
			probs := make([][]float64, len(valV))
			for i, v := range valV {
				p, perr := prober.ClassProbabilities(v)
				if perr != nil {
					return ModelReport{}, fmt.Errorf("repeat %d fold %d row %d: %w", repeat+1, foldIdx+1, i, perr)
				}
				probs[i] = p
			}

			predicted := PredictedIDs(probs, classIDs)
			macroF1s = append(macroF1s, MacroF1(predicted, valL))
			weightedF1s = append(weightedF1s, WeightedF1(predicted, valL))
			logLosses = append(logLosses, LogLoss(probs, classIDs, valL))
			briers = append(briers, BrierScore(probs, classIDs, valL))
			eces = append(eces, ExpectedCalibrationError(probs, classIDs, valL, h.config.CalibrationBins))

			if pooledClassIDs == nil {
				pooledClassIDs = classIDs
			}
			if equalClassLists(pooledClassIDs, classIDs) {
				pooledProbs = append(pooledProbs, probs...)
				pooledLabels = append(pooledLabels, valL...)
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}

	report := ModelReport{
		Name:         name,
		MacroF1:      summarize(macroF1s),
		WeightedF1:   summarize(weightedF1s),
		LogLoss:      summarize(logLosses),
		Brier:        summarize(briers),
		ECE:          summarize(eces),
		RiskCoverage: RiskCoverage(pooledProbs, pooledClassIDs, pooledLabels, DefaultRiskThresholds()),
	}

	slog.Info("cross-validation complete",
		"model", name,
		"macro_f1", report.MacroF1.Mean,
		"log_loss", report.LogLoss.Mean,
		"brier", report.Brier.Mean,
		"ece", report.ECE.Mean)

	return report, nil
}

func (h *Harness) checkStratifiable(labels []int, categoryNames map[int]string) error {
	counts := map[int]int{}
	for _, label := range labels {
		counts[label]++
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if counts[id] < h.config.Folds {
			name := categoryNames[id]
			if name == "" {
				name = "category " + strconv.Itoa(id)
			}
			return &common.InsufficientDataError{
				Category: name,
				Count:    counts[id],
				Need:     h.config.Folds,
			}
		}
	}
	return nil
}

// stratifiedFolds deals each class's shuffled indices round-robin across
// folds, preserving class ratios. Returns the validation indices per fold.
func stratifiedFolds(labels []int, folds int, seed int64) [][]int {
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

	out := make([][]int, folds)
	for _, class := range classes {
		indices := byClass[class]
		rng.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})
		for i, idx := range indices {
			fold := i % folds
			out[fold] = append(out[fold], idx)
		}
	}
	for _, fold := range out {
		sort.Ints(fold)
	}
	return out
}

func complement(valIdx []int, n int) []int {
	inVal := make(map[int]struct{}, len(valIdx))
	for _, i := range valIdx {
		inVal[i] = struct{}{}
	}
	out := make([]int, 0, n-len(valIdx))
	for i := 0; i < n; i++ {
		if _, ok := inVal[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func subsetVectors(vectors []features.Vector, labels, indices []int) ([]features.Vector, []int) {
	outV := make([]features.Vector, len(indices))
	outL := make([]int, len(indices))
	for i, idx := range indices {
		outV[i] = vectors[idx]
		outL[i] = labels[idx]
	}
	return outV, outL
}

func equalClassLists(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
