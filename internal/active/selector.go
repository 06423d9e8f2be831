// Package active implements the review selector: it partitions a batch of
// fresh predictions into auto-accepted transactions and a bounded,
// prioritized review queue.
package active

import (
	"math"
	"sort"

	"github.com/fafycat/fafycat/internal/model"
)

// Config holds the selector's tunables. The selector itself is a pure
// per-batch function; the mode switch is configuration fed in by the
// caller, never internal state.
type Config struct {
	Mode                model.SelectionMode
	Budget              int
	AutoAcceptThreshold float64
	MediumBandLow       float64
	MediumBandHigh      float64
	UncertaintyShare    float64
	MediumShare         float64
	AuditShare          float64
}

// DefaultConfig returns the default selection policy: 20 reviews per batch,
// auto-accept at 0.95, budget split 70/20/10 across the uncertainty, medium
// and audit pools.
func DefaultConfig() Config {
	return Config{
		Mode:                model.ModeUncertaintyFirst,
		Budget:              20,
		AutoAcceptThreshold: 0.95,
		MediumBandLow:       0.70,
		MediumBandHigh:      0.90,
		UncertaintyShare:    0.7,
		MediumShare:         0.2,
		AuditShare:          0.1,
	}
}

// Candidate is one prediction plus the transaction context the priority
// score needs. MerchantSeen is how often the cleaned merchant occurs in the
// training corpus.
type Candidate struct {
	Prediction   model.PredictionResult
	Merchant     string
	Amount       float64
	MerchantSeen int
	HasAmount    bool
}

// scored is a candidate with its computed priority and input position.
type scored struct {
	candidate Candidate
	priority  float64
	pos       int
}

// spreadByCategory interleaves a priority-ranked pool across predicted
// categories round-robin, so diversity-first selection does not spend the
// whole pool on one well-populated category.
func spreadByCategory(pool []scored) []scored {
	if len(pool) < 2 {
		return pool
	}
	groups := make(map[int][]scored)
	var order []int
	for _, s := range pool {
		cat := s.candidate.Prediction.CategoryID
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], s)
	}
	sort.Ints(order)

	out := make([]scored, 0, len(pool))
	for len(out) < len(pool) {
		for _, cat := range order {
			if len(groups[cat]) == 0 {
				continue
			}
			out = append(out, groups[cat][0])
			groups[cat] = groups[cat][1:]
		}
	}
	return out
}

// priority weighting: uncertainty dominates, amount and novelty refine.
const (
	uncertaintyWeight = 0.6
	amountWeight      = 0.2
	noveltyWeight     = 0.2
	amountScaleCap    = 1000.0
)

// Select partitions a batch into review selections and auto-accepts.
// Exactly min(Budget, len(batch)) candidates are selected. A prediction
// below the auto-accept threshold is never marked auto-accepted, no matter
// the budget pressure; if it misses the budget it simply stays pending.
// Decisions are returned in input order and the whole function is
// deterministic for fixed inputs.
func Select(batch []Candidate, cfg Config) []model.ReviewDecision {
	if cfg.Budget < 0 {
		cfg.Budget = 0
	}

	scoredBatch := make([]scored, len(batch))
	for i, c := range batch {
		scoredBatch[i] = scored{candidate: c, priority: PriorityScore(c), pos: i}
	}

	// Rank by priority descending; ties break by confidence ascending then
	// input position, keeping the selection reproducible.
	byPriority := func(pool []scored) {
		sort.SliceStable(pool, func(a, b int) bool {
			if pool[a].priority != pool[b].priority {
				return pool[a].priority > pool[b].priority
			}
			if pool[a].candidate.Prediction.Confidence != pool[b].candidate.Prediction.Confidence {
				return pool[a].candidate.Prediction.Confidence < pool[b].candidate.Prediction.Confidence
			}
			return pool[a].pos < pool[b].pos
		})
	}

	var uncertainty, medium, audit []scored
	for _, s := range scoredBatch {
		conf := s.candidate.Prediction.Confidence
		switch {
		case conf >= cfg.AutoAcceptThreshold:
			audit = append(audit, s)
		case conf >= cfg.MediumBandLow && conf < cfg.MediumBandHigh:
			medium = append(medium, s)
		default:
			uncertainty = append(uncertainty, s)
		}
	}
	byPriority(uncertainty)
	byPriority(medium)
	byPriority(audit)

	if cfg.Mode == model.ModeDiversityFirst {
		uncertainty = spreadByCategory(uncertainty)
	}

	budget := cfg.Budget
	if budget > len(batch) {
		budget = len(batch)
	}

	// Each pool gets its configured share; the uncertainty pool, as the
	// primary consumer of the budget, absorbs any rounding drift.
	nUncertainty := int(math.Round(float64(budget) * cfg.UncertaintyShare))
	nMedium := int(math.Round(float64(budget) * cfg.MediumShare))
	nAudit := int(math.Round(float64(budget) * cfg.AuditShare))
	nUncertainty += budget - nUncertainty - nMedium - nAudit
	if nUncertainty < 0 {
		nUncertainty = 0
	}
	if nMedium > budget {
		nMedium = budget
	}
	if nAudit > budget-nMedium {
		nAudit = budget - nMedium
	}

	takeUncertainty := take(uncertainty, nUncertainty)
	takeMedium := take(medium, nMedium)
	takeAudit := take(audit, nAudit)

	// Pool shortfalls flow to the uncertainty pool first, then medium,
	// then audit, so no budget goes unused while candidates remain.
	if remaining := budget - len(takeUncertainty) - len(takeMedium) - len(takeAudit); remaining > 0 {
		takeUncertainty = take(uncertainty, len(takeUncertainty)+remaining)
	}
	if remaining := budget - len(takeUncertainty) - len(takeMedium) - len(takeAudit); remaining > 0 {
		takeMedium = take(medium, len(takeMedium)+remaining)
	}
	if remaining := budget - len(takeUncertainty) - len(takeMedium) - len(takeAudit); remaining > 0 {
		takeAudit = take(audit, len(takeAudit)+remaining)
	}

	selected := make(map[int]model.ReviewReason, budget)
	for _, s := range takeUncertainty {
		selected[s.pos] = model.ReasonUncertainty
	}
	for _, s := range takeMedium {
		selected[s.pos] = model.ReasonMediumConfidence
	}
	for _, s := range takeAudit {
		selected[s.pos] = model.ReasonAuditSample
	}

	decisions := make([]model.ReviewDecision, len(batch))
	for i, s := range scoredBatch {
		decision := model.ReviewDecision{
			TransactionID: s.candidate.Prediction.TransactionID,
			PriorityScore: s.priority,
		}
		if reason, ok := selected[s.pos]; ok {
			decision.SelectedForReview = true
			decision.Reason = reason
		} else if s.candidate.Prediction.Confidence >= cfg.AutoAcceptThreshold {
			decision.Reason = model.ReasonAutoAccept
		} else if s.candidate.Prediction.Confidence >= cfg.MediumBandLow && s.candidate.Prediction.Confidence < cfg.MediumBandHigh {
			decision.Reason = model.ReasonMediumConfidence
		} else {
			decision.Reason = model.ReasonUncertainty
		}
		decisions[i] = decision
	}
	return decisions
}

func take[T any](pool []T, n int) []T {
	if n > len(pool) {
		n = len(pool)
	}
	if n < 0 {
		n = 0
	}
	return pool[:n]
}

// PriorityScore combines uncertainty (weighted most heavily), transaction
// amount magnitude (errors on large transactions cost more), and merchant
// novelty. A candidate without an amount is scored without the amount term
// rather than dropped.
func PriorityScore(c Candidate) float64 {
	score := uncertaintyWeight * (1 - c.Prediction.Confidence)
	if c.HasAmount {
		score += amountWeight * math.Min(1, math.Abs(c.Amount)/amountScaleCap)
	}
	score += noveltyWeight * MerchantNovelty(c.MerchantSeen)
	return math.Min(1, score)
}

// MerchantNovelty maps corpus frequency to a novelty score: merchants the
// model has never or rarely seen rank highest.
func MerchantNovelty(seen int) float64 {
	switch {
	case seen == 0:
		return 1.0
	case seen <= 2:
		return 0.8
	case seen <= 5:
		return 0.6
	case seen <= 10:
		return 0.4
	default:
		return 0.2
	}
}
