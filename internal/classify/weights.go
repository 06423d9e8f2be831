package classify

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/fafycat/fafycat/internal/eval"
	"github.com/fafycat/fafycat/internal/model"
)

// weightScanStep is the resolution of the 1-D blend-weight search. The
// space is one-dimensional and bounded, so an exhaustive scan beats any
// gradient scheme.
const weightScanStep = 0.01

// WeightReport carries the optimizer's result and the scores achieved, so
// regressions between trainings are detectable.
type WeightReport struct {
	Weights     model.BlendWeights
	LogLoss     float64
	MacroF1     float64
	TreeLogLoss float64 // solo tree model log loss on the same split
	TextLogLoss float64 // solo text model log loss on the same split
	Samples     int
}

// OptimizeWeights searches w_tree in [0,1] at 0.01 steps for the blend
// minimizing log loss over a held-out validation split. treeProbs and
// textProbs are canonical-order probability matrices for that split,
// classIDs the canonical ordering, labels the true category IDs. Score ties
// resolve toward the neutral 0.5/0.5 blend to avoid overfitting noise in
// small splits.
func OptimizeWeights(treeProbs, textProbs [][]float64, classIDs, labels []int) (WeightReport, error) {
	if len(treeProbs) == 0 || len(treeProbs) != len(textProbs) || len(treeProbs) != len(labels) {
		return WeightReport{}, fmt.Errorf("weight optimization: mismatched inputs (tree=%d text=%d labels=%d)",
			len(treeProbs), len(textProbs), len(labels))
	}

	bestWeight := 0.5
	bestLoss := math.Inf(1)

	steps := int(math.Round(1/weightScanStep)) + 1
	blended := make([][]float64, len(treeProbs))
	for i := range blended {
		blended[i] = make([]float64, len(treeProbs[i]))
	}

	for s := 0; s < steps; s++ {
		w := float64(s) * weightScanStep
		blend(blended, treeProbs, textProbs, w)
		loss := eval.LogLoss(blended, classIDs, labels)

		replace := loss < bestLoss
		if !replace && loss == bestLoss {
			replace = math.Abs(w-0.5) < math.Abs(bestWeight-0.5)
		}
		if replace {
			bestLoss = loss
			bestWeight = w
		}
	}

	blend(blended, treeProbs, textProbs, bestWeight)
	report := WeightReport{
		Weights:     model.BlendWeights{Tree: bestWeight, Text: 1 - bestWeight},
		LogLoss:     bestLoss,
		MacroF1:     eval.MacroF1(eval.PredictedIDs(blended, classIDs), labels),
		TreeLogLoss: eval.LogLoss(treeProbs, classIDs, labels),
		TextLogLoss: eval.LogLoss(textProbs, classIDs, labels),
		Samples:     len(labels),
	}

	slog.Info("optimized blend weights",
		"tree_weight", report.Weights.Tree,
		"text_weight", report.Weights.Text,
		"log_loss", report.LogLoss,
		"macro_f1", report.MacroF1,
		"tree_solo_log_loss", report.TreeLogLoss,
		"text_solo_log_loss", report.TextLogLoss,
		"validation_samples", report.Samples)

	return report, nil
}

func blend(dst, treeProbs, textProbs [][]float64, treeWeight float64) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] = treeWeight*treeProbs[i][j] + (1-treeWeight)*textProbs[i][j]
		}
	}
}
