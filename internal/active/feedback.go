package active

import (
	"github.com/fafycat/fafycat/internal/model"
)

// thresholds for switching sampling policy based on recent review outcomes.
const (
	minHistoryForSwitch     = 10
	recentReviewWindow      = 20
	highConfidence          = 0.9
	highConfCorrectionLimit = 0.2
	lowCorrectionRate       = 0.15
)

// RecommendMode derives a selection mode from recent review history, given
// newest first as GetRecentReviews returns it. It is a pure function: the
// caller feeds the result back in as configuration, so the mode stays
// externally auditable instead of hidden selector state. While corrections
// are frequent the budget belongs to uncertainty sampling; once the model is
// mostly right, diversity sampling covers merchants the queue would
// otherwise never show.
func RecommendMode(history []model.ReviewRecord) model.SelectionMode {
	if len(history) < minHistoryForSwitch {
		return model.ModeUncertaintyFirst
	}

	recent := history
	if len(recent) > recentReviewWindow {
		recent = recent[:recentReviewWindow]
	}

	var highConfTotal, highConfCorrected, corrected int
	for _, r := range recent {
		if r.WasCorrected {
			corrected++
		}
		if r.Confidence > highConfidence {
			highConfTotal++
			if r.WasCorrected {
				highConfCorrected++
			}
		}
	}

	// High-confidence predictions going wrong means the auto-accept path
	// is degrading; stay on uncertainty sampling.
	if highConfTotal > 0 && float64(highConfCorrected)/float64(highConfTotal) > highConfCorrectionLimit {
		return model.ModeUncertaintyFirst
	}

	if float64(corrected)/float64(len(recent)) < lowCorrectionRate {
		return model.ModeDiversityFirst
	}

	return model.ModeUncertaintyFirst
}

// BatchStatistics summarizes a prediction batch for review planning.
type BatchStatistics struct {
	CategoryCounts         map[int]int
	Total                  int
	HighConfidence         int
	MediumConfidence       int
	LowConfidence          int
	AverageConfidence      float64
	RecommendedReviewCount int
}

// Statistics computes the confidence and category distribution of a batch.
func Statistics(predictions []model.PredictionResult, cfg Config) BatchStatistics {
	stats := BatchStatistics{
		Total:          len(predictions),
		CategoryCounts: make(map[int]int),
	}
	if len(predictions) == 0 {
		return stats
	}

	var confidenceSum float64
	for _, p := range predictions {
		confidenceSum += p.Confidence
		stats.CategoryCounts[p.CategoryID]++
		switch {
		case p.Confidence >= cfg.MediumBandHigh:
			stats.HighConfidence++
		case p.Confidence >= cfg.MediumBandLow:
			stats.MediumConfidence++
		default:
			stats.LowConfidence++
		}
	}
	stats.AverageConfidence = confidenceSum / float64(len(predictions))

	recommended := stats.LowConfidence + stats.MediumConfidence/2
	if recommended > cfg.Budget {
		recommended = cfg.Budget
	}
	stats.RecommendedReviewCount = recommended
	return stats
}
