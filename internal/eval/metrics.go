// Package eval implements the offline calibration and evaluation harness:
// cross-validated scoring of the sub-models and the ensemble. It is
// diagnostic only and never feeds results back into serving automatically.
package eval

import (
	"math"
)

// logLossFloor clips predicted probabilities away from zero so a single
// confidently-wrong prediction cannot produce an infinite log loss.
const logLossFloor = 1e-15

// ArgMax returns the index of the largest probability, ties toward the
// lowest index.
func ArgMax(probs []float64) int {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best
}

// LogLoss is the mean negative log-likelihood of the true category under
// the predicted probability vectors. classIDs gives the column ordering;
// labels are true category IDs.
func LogLoss(probs [][]float64, classIDs, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	col := columnIndex(classIDs)
	total := 0.0
	for i, row := range probs {
		p := logLossFloor
		if c, ok := col[labels[i]]; ok && c < len(row) {
			p = math.Max(row[c], logLossFloor)
		}
		total -= math.Log(p)
	}
	return total / float64(len(probs))
}

// BrierScore is the mean squared error between the predicted probability
// vector and the one-hot true label.
func BrierScore(probs [][]float64, classIDs, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	col := columnIndex(classIDs)
	total := 0.0
	for i, row := range probs {
		trueCol := -1
		if c, ok := col[labels[i]]; ok {
			trueCol = c
		}
		for j, p := range row {
			target := 0.0
			if j == trueCol {
				target = 1
			}
			total += (p - target) * (p - target)
		}
	}
	return total / float64(len(probs))
}

// MacroF1 averages per-category F1 uniformly, regardless of category
// frequency. predicted and labels are category IDs.
func MacroF1(predicted, labels []int) float64 {
	f1s, _ := perClassF1(predicted, labels)
	if len(f1s) == 0 {
		return 0
	}
	total := 0.0
	for _, f1 := range f1s {
		total += f1
	}
	return total / float64(len(f1s))
}

// WeightedF1 averages per-category F1 weighted by category support.
func WeightedF1(predicted, labels []int) float64 {
	f1s, support := perClassF1(predicted, labels)
	totalSupport := 0
	for _, s := range support {
		totalSupport += s
	}
	if totalSupport == 0 {
		return 0
	}
	total := 0.0
	for class, f1 := range f1s {
		total += f1 * float64(support[class])
	}
	return total / float64(totalSupport)
}

func perClassF1(predicted, labels []int) (map[int]float64, map[int]int) {
	tp := map[int]int{}
	fp := map[int]int{}
	fn := map[int]int{}
	support := map[int]int{}

	for i, label := range labels {
		support[label]++
		if predicted[i] == label {
			tp[label]++
		} else {
			fp[predicted[i]]++
			fn[label]++
		}
	}

	f1s := make(map[int]float64, len(support))
	for class := range support {
		precisionDenom := tp[class] + fp[class]
		recallDenom := tp[class] + fn[class]
		if precisionDenom == 0 || recallDenom == 0 {
			f1s[class] = 0
			continue
		}
		precision := float64(tp[class]) / float64(precisionDenom)
		recall := float64(tp[class]) / float64(recallDenom)
		if precision+recall == 0 {
			f1s[class] = 0
			continue
		}
		f1s[class] = 2 * precision * recall / (precision + recall)
	}
	return f1s, support
}

// ExpectedCalibrationError bins predictions by confidence into equal-width
// bins and averages the gap between mean confidence and observed accuracy,
// weighted by bin occupancy.
func ExpectedCalibrationError(probs [][]float64, classIDs, labels []int, bins int) float64 {
	if len(probs) == 0 || bins <= 0 {
		return 0
	}
	col := columnIndex(classIDs)

	binConfidence := make([]float64, bins)
	binCorrect := make([]float64, bins)
	binCount := make([]int, bins)

	for i, row := range probs {
		best := ArgMax(row)
		confidence := row[best]
		bin := int(confidence * float64(bins))
		if bin >= bins {
			bin = bins - 1
		}
		binConfidence[bin] += confidence
		if c, ok := col[labels[i]]; ok && c == best {
			binCorrect[bin]++
		}
		binCount[bin]++
	}

	ece := 0.0
	for b := 0; b < bins; b++ {
		if binCount[b] == 0 {
			continue
		}
		avgConfidence := binConfidence[b] / float64(binCount[b])
		accuracy := binCorrect[b] / float64(binCount[b])
		ece += math.Abs(avgConfidence-accuracy) * float64(binCount[b]) / float64(len(probs))
	}
	return ece
}

// RiskCoveragePoint is one point on the risk-coverage curve: among
// predictions with confidence >= Threshold, Coverage is the retained
// fraction and Risk the error rate within it.
type RiskCoveragePoint struct {
	Threshold float64
	Coverage  float64
	Risk      float64
}

// RiskCoverage computes the error rate at each confidence threshold.
func RiskCoverage(probs [][]float64, classIDs, labels []int, thresholds []float64) []RiskCoveragePoint {
	col := columnIndex(classIDs)
	points := make([]RiskCoveragePoint, len(thresholds))
	for ti, threshold := range thresholds {
		var retained, wrong int
		for i, row := range probs {
			best := ArgMax(row)
			if row[best] < threshold {
				continue
			}
			retained++
			if c, ok := col[labels[i]]; !ok || c != best {
				wrong++
			}
		}
		point := RiskCoveragePoint{Threshold: threshold}
		if len(probs) > 0 {
			point.Coverage = float64(retained) / float64(len(probs))
		}
		if retained > 0 {
			point.Risk = float64(wrong) / float64(retained)
		}
		points[ti] = point
	}
	return points
}

// DefaultRiskThresholds is the reference threshold sequence for the
// risk-coverage curve.
func DefaultRiskThresholds() []float64 {
	return []float64{0.50, 0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95, 0.99}
}

// PredictedIDs converts probability rows into predicted category IDs.
func PredictedIDs(probs [][]float64, classIDs []int) []int {
	predicted := make([]int, len(probs))
	for i, row := range probs {
		predicted[i] = classIDs[ArgMax(row)]
	}
	return predicted
}

func columnIndex(classIDs []int) map[int]int {
	col := make(map[int]int, len(classIDs))
	for i, id := range classIDs {
		col[id] = i
	}
	return col
}
