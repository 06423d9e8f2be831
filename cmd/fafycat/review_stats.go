package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fafycat/fafycat/internal/active"
	"github.com/fafycat/fafycat/internal/model"
)

func reviewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review-stats",
		Short: "Show review history and the recommended selection mode",
		Long: `Summarize the recent review history and the current prediction batch,
and recommend a selection mode based on how often high-confidence
predictions have been getting corrected.`,
		RunE: runReviewStats,
	}
}

func runReviewStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	history, err := store.GetRecentReviews(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to load review history: %w", err)
	}

	var corrected int
	for _, r := range history {
		if r.WasCorrected {
			corrected++
		}
	}

	fmt.Printf("Recent reviews: %d", len(history))
	if len(history) > 0 {
		fmt.Printf(" (%d corrected, %.0f%%)", corrected, float64(corrected)/float64(len(history))*100)
	}
	fmt.Println()

	mode := active.RecommendMode(history)
	fmt.Printf("Recommended selection mode: %s\n", mode)

	pending, err := store.GetTransactionsToPredict(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}

	// Pending rows carry the confidence of their stored prediction;
	// rows without one count as zero-confidence.
	predictions := make([]model.PredictionResult, 0, len(pending))
	for _, txn := range pending {
		if txn.PredictedID == 0 {
			continue
		}
		predictions = append(predictions, model.PredictionResult{
			TransactionID: txn.ID,
			CategoryID:    txn.PredictedID,
			Confidence:    txn.Confidence,
		})
	}

	if len(predictions) == 0 {
		fmt.Println("No pending predictions. Run: fafycat classify")
		return nil
	}

	stats := active.Statistics(predictions, selectorConfig())
	fmt.Printf("\nPending batch: %d predictions\n", stats.Total)
	fmt.Printf("  high confidence:   %d\n", stats.HighConfidence)
	fmt.Printf("  medium confidence: %d\n", stats.MediumConfidence)
	fmt.Printf("  low confidence:    %d\n", stats.LowConfidence)
	fmt.Printf("  average confidence: %.2f\n", stats.AverageConfidence)
	fmt.Printf("  recommended reviews: %d\n", stats.RecommendedReviewCount)

	return nil
}
