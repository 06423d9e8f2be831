package active

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/model"
)

func candidate(id string, confidence float64) Candidate {
	return Candidate{
		Prediction: model.PredictionResult{
			TransactionID: id,
			CategoryID:    1,
			Confidence:    confidence,
		},
		Merchant:  "merchant-" + id,
		Amount:    -50,
		HasAmount: true,
	}
}

func countSelected(decisions []model.ReviewDecision) int {
	n := 0
	for _, d := range decisions {
		if d.SelectedForReview {
			n++
		}
	}
	return n
}

func TestSelect_RespectsBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 5

	var batch []Candidate
	for i := 0; i < 50; i++ {
		batch = append(batch, candidate(fmt.Sprintf("t%d", i), 0.3))
	}

	decisions := Select(batch, cfg)
	require.Len(t, decisions, len(batch))
	assert.Equal(t, 5, countSelected(decisions))
}

func TestSelect_SmallBatchSelectsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 20

	batch := []Candidate{
		candidate("a", 0.4),
		candidate("b", 0.6),
		candidate("c", 0.8),
	}

	decisions := Select(batch, cfg)
	assert.Equal(t, len(batch), countSelected(decisions), "budget above batch size selects every candidate")
}

func TestSelect_BelowThresholdNeverAutoAccepted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 2

	var batch []Candidate
	for i := 0; i < 40; i++ {
		batch = append(batch, candidate(fmt.Sprintf("t%d", i), 0.5))
	}

	decisions := Select(batch, cfg)
	assert.Equal(t, 2, countSelected(decisions))

	for _, d := range decisions {
		assert.NotEqual(t, model.ReasonAutoAccept, d.Reason,
			"%s sits below the threshold and must stay pending, not auto-accept", d.TransactionID)
	}
}

func TestSelect_HighConfidenceAutoAcceptedUnlessAudited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 20

	// 100 candidates, 5 of them above the auto-accept threshold.
	var batch []Candidate
	for i := 0; i < 95; i++ {
		batch = append(batch, candidate(fmt.Sprintf("low%d", i), 0.4))
	}
	for i := 0; i < 5; i++ {
		batch = append(batch, candidate(fmt.Sprintf("high%d", i), 0.97))
	}

	decisions := Select(batch, cfg)
	assert.Equal(t, 20, countSelected(decisions))

	var audited, accepted int
	for _, d := range decisions[95:] {
		if d.SelectedForReview {
			assert.Equal(t, model.ReasonAuditSample, d.Reason)
			audited++
		} else {
			assert.Equal(t, model.ReasonAutoAccept, d.Reason)
			accepted++
		}
	}
	// 10% of a budget of 20 is 2 audit slots.
	assert.Equal(t, 2, audited)
	assert.Equal(t, 3, accepted)
}

func TestSelect_PoolProportions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 20

	// Plenty of candidates in each pool.
	var batch []Candidate
	for i := 0; i < 30; i++ {
		batch = append(batch, candidate(fmt.Sprintf("unc%d", i), 0.3))
	}
	for i := 0; i < 30; i++ {
		batch = append(batch, candidate(fmt.Sprintf("med%d", i), 0.8))
	}
	for i := 0; i < 30; i++ {
		batch = append(batch, candidate(fmt.Sprintf("aud%d", i), 0.98))
	}

	decisions := Select(batch, cfg)

	counts := map[model.ReviewReason]int{}
	for _, d := range decisions {
		if d.SelectedForReview {
			counts[d.Reason]++
		}
	}
	assert.Equal(t, 14, counts[model.ReasonUncertainty], "70%% of budget 20")
	assert.Equal(t, 4, counts[model.ReasonMediumConfidence], "20%% of budget 20")
	assert.Equal(t, 2, counts[model.ReasonAuditSample], "10%% of budget 20")
}

func TestSelect_ConfiguredSharesDriveAllocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 10
	cfg.UncertaintyShare = 0.5
	cfg.MediumShare = 0
	cfg.AuditShare = 0.5

	var batch []Candidate
	for i := 0; i < 20; i++ {
		batch = append(batch, candidate(fmt.Sprintf("unc%d", i), 0.3))
	}
	for i := 0; i < 20; i++ {
		batch = append(batch, candidate(fmt.Sprintf("aud%d", i), 0.98))
	}

	decisions := Select(batch, cfg)

	counts := map[model.ReviewReason]int{}
	for _, d := range decisions {
		if d.SelectedForReview {
			counts[d.Reason]++
		}
	}
	assert.Equal(t, 5, counts[model.ReasonUncertainty])
	assert.Equal(t, 0, counts[model.ReasonMediumConfidence])
	assert.Equal(t, 5, counts[model.ReasonAuditSample], "audit share controls the audit pool size")
}

func TestSelect_ShortfallReallocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 20

	// Only 2 uncertain candidates; their unused slots must flow to the
	// medium pool rather than expire.
	var batch []Candidate
	for i := 0; i < 2; i++ {
		batch = append(batch, candidate(fmt.Sprintf("unc%d", i), 0.3))
	}
	for i := 0; i < 40; i++ {
		batch = append(batch, candidate(fmt.Sprintf("med%d", i), 0.8))
	}
	for i := 0; i < 10; i++ {
		batch = append(batch, candidate(fmt.Sprintf("aud%d", i), 0.98))
	}

	decisions := Select(batch, cfg)
	assert.Equal(t, 20, countSelected(decisions))

	counts := map[model.ReviewReason]int{}
	for _, d := range decisions {
		if d.SelectedForReview {
			counts[d.Reason]++
		}
	}
	assert.Equal(t, 2, counts[model.ReasonUncertainty])
	assert.Equal(t, 16, counts[model.ReasonMediumConfidence], "medium pool absorbs the uncertainty shortfall")
	assert.Equal(t, 2, counts[model.ReasonAuditSample])
}

func TestSelect_PrioritizesWithinPool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget = 1
	cfg.UncertaintyShare = 1
	cfg.MediumShare = 0
	cfg.AuditShare = 0

	batch := []Candidate{
		{
			Prediction: model.PredictionResult{TransactionID: "small-known", Confidence: 0.4},
			Amount:     -5, MerchantSeen: 50, HasAmount: true,
		},
		{
			Prediction: model.PredictionResult{TransactionID: "large-novel", Confidence: 0.4},
			Amount:     -5000, MerchantSeen: 0, HasAmount: true,
		},
	}

	decisions := Select(batch, cfg)
	assert.False(t, decisions[0].SelectedForReview)
	assert.True(t, decisions[1].SelectedForReview, "large amount from a novel merchant outranks a small familiar one")
}

func TestSelect_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	var batch []Candidate
	for i := 0; i < 60; i++ {
		batch = append(batch, candidate(fmt.Sprintf("t%d", i), float64(i%10)/10.0))
	}

	first := Select(batch, cfg)
	second := Select(batch, cfg)
	assert.Equal(t, first, second)
}

func TestSelect_DiversityFirstSpreadsCategories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = model.ModeDiversityFirst
	cfg.Budget = 4
	cfg.UncertaintyShare = 1
	cfg.MediumShare = 0
	cfg.AuditShare = 0

	// Category 1 dominates the uncertain pool with higher priorities.
	var batch []Candidate
	for i := 0; i < 10; i++ {
		batch = append(batch, Candidate{
			Prediction: model.PredictionResult{
				TransactionID: fmt.Sprintf("cat1-%d", i),
				CategoryID:    1,
				Confidence:    0.2,
			},
			Amount: -900, HasAmount: true,
		})
	}
	for i := 0; i < 10; i++ {
		batch = append(batch, Candidate{
			Prediction: model.PredictionResult{
				TransactionID: fmt.Sprintf("cat2-%d", i),
				CategoryID:    2,
				Confidence:    0.4,
			},
			Amount: -10, HasAmount: true,
		})
	}

	decisions := Select(batch, cfg)

	selectedByCategory := map[int]int{}
	for i, d := range decisions {
		if d.SelectedForReview {
			selectedByCategory[batch[i].Prediction.CategoryID]++
		}
	}
	assert.Equal(t, 2, selectedByCategory[1], "diversity mode alternates categories")
	assert.Equal(t, 2, selectedByCategory[2])

	// Uncertainty-first mode would have spent the whole budget on category 1.
	cfg.Mode = model.ModeUncertaintyFirst
	decisions = Select(batch, cfg)
	selectedByCategory = map[int]int{}
	for i, d := range decisions {
		if d.SelectedForReview {
			selectedByCategory[batch[i].Prediction.CategoryID]++
		}
	}
	assert.Equal(t, 4, selectedByCategory[1])
}

func TestSelect_EmptyBatch(t *testing.T) {
	decisions := Select(nil, DefaultConfig())
	assert.Empty(t, decisions)
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want float64
	}{
		{
			name: "maximum urgency",
			c: Candidate{
				Prediction: model.PredictionResult{Confidence: 0},
				Amount:     -5000, MerchantSeen: 0, HasAmount: true,
			},
			want: 1.0, // 0.6 + 0.2 + 0.2, capped
		},
		{
			name: "confident small familiar",
			c: Candidate{
				Prediction: model.PredictionResult{Confidence: 1},
				Amount:     -1, MerchantSeen: 100, HasAmount: true,
			},
			want: 0.2*(1.0/1000.0) + 0.2*0.2,
		},
		{
			name: "missing amount drops the amount term",
			c: Candidate{
				Prediction:   model.PredictionResult{Confidence: 0.5},
				MerchantSeen: 0,
			},
			want: 0.6*0.5 + 0.2*1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PriorityScore(tt.c), 1e-12)
		})
	}
}

func TestMerchantNovelty(t *testing.T) {
	tests := []struct {
		seen int
		want float64
	}{
		{seen: 0, want: 1.0},
		{seen: 1, want: 0.8},
		{seen: 2, want: 0.8},
		{seen: 3, want: 0.6},
		{seen: 5, want: 0.6},
		{seen: 6, want: 0.4},
		{seen: 10, want: 0.4},
		{seen: 11, want: 0.2},
		{seen: 1000, want: 0.2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MerchantNovelty(tt.seen), "seen=%d", tt.seen)
	}
}
