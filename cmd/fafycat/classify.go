package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fafycat/fafycat/internal/active"
	"github.com/fafycat/fafycat/internal/classify"
	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Predict categories and select transactions for review",
		Long: `Predict a category for every unreviewed transaction, auto-accept the
predictions confident enough to skip review, and pick the batch of
transactions most worth your attention.

Examples:
  fafycat classify                # Predict and select with the configured budget
  fafycat classify --budget 10    # Cap this batch at 10 reviews
  fafycat classify --dry-run      # Preview decisions without saving anything`,
		RunE: runClassify,
	}

	cmd.Flags().IntP("budget", "b", 0, "Review budget for this batch (0 = configured default)")
	cmd.Flags().Bool("dry-run", false, "Preview decisions without saving changes")
	cmd.Flags().String("mode", "", "Selection mode (uncertainty-first, diversity-first)")

	_ = viper.BindPFlag("classification.budget", cmd.Flags().Lookup("budget"))
	_ = viper.BindPFlag("classification.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("classification.mode", cmd.Flags().Lookup("mode"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun := viper.GetBool("classification.dry_run")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	models, err := initModelStore()
	if err != nil {
		return fmt.Errorf("failed to open model store: %w", err)
	}
	defer func() {
		if closeErr := models.Close(); closeErr != nil {
			slog.Error("Failed to close model store", "error", closeErr)
		}
	}()

	snapshot, err := loadSnapshot(ctx, models)
	if err != nil {
		if errors.Is(err, common.ErrModelNotTrained) {
			return common.NewUserError("no trained model found; run: fafycat train", err)
		}
		return fmt.Errorf("failed to load model: %w", err)
	}

	ensemble, err := snapshot.Ensemble()
	if err != nil {
		return fmt.Errorf("failed to assemble model: %w", err)
	}

	pending, err := store.GetTransactionsToPredict(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("Nothing to classify.")
		return nil
	}

	slog.Info("Classifying transactions", "count", len(pending), "model_version", snapshot.Version)

	mappings, err := store.GetMerchantMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load merchant mappings: %w", err)
	}
	mapper := classify.NewMerchantMapper(mappings)

	extractor := features.NewExtractor()
	vectors := extractor.ExtractBatch(pending)

	// Rule-based merchant matches override the ensemble: a merchant that
	// has been confirmed consistently enough does not need a model opinion.
	predictions := make([]model.PredictionResult, len(vectors))
	var ruleMatched int
	for i, v := range vectors {
		if mapping, ok := mapper.Lookup(v.Merchant); ok && mapping.Confidence >= classify.MerchantOverrideConfidence {
			predictions[i] = model.PredictionResult{
				TransactionID: v.TransactionID,
				CategoryID:    mapping.CategoryID,
				Confidence:    mapping.Confidence,
				Contributions: map[string]float64{"merchant_rule": 1.0},
			}
			ruleMatched++
			continue
		}
		p, predictErr := ensemble.Predict(v)
		if predictErr != nil {
			return fmt.Errorf("prediction failed: %w", predictErr)
		}
		predictions[i] = p
	}

	cfg := selectorConfig()
	if budget := viper.GetInt("classification.budget"); budget > 0 {
		cfg.Budget = budget
	}
	if mode := viper.GetString("classification.mode"); mode != "" {
		cfg.Mode = model.SelectionMode(mode)
	}

	candidates := make([]active.Candidate, len(predictions))
	for i, p := range predictions {
		seen, countErr := store.MerchantCount(ctx, vectors[i].Merchant)
		if countErr != nil {
			return fmt.Errorf("failed to look up merchant history: %w", countErr)
		}
		candidates[i] = active.Candidate{
			Prediction:   p,
			Merchant:     vectors[i].Merchant,
			Amount:       vectors[i].Amount,
			MerchantSeen: seen,
			HasAmount:    vectors[i].HasAmount,
		}
	}

	decisions := active.Select(candidates, cfg)

	var selected, accepted int
	for i, d := range decisions {
		p := predictions[i]
		switch {
		case d.SelectedForReview:
			selected++
		case d.Reason == model.ReasonAutoAccept:
			accepted++
		}

		if dryRun {
			continue
		}

		if err := store.SavePrediction(ctx, p.TransactionID, p.CategoryID, p.Confidence); err != nil {
			return fmt.Errorf("failed to save prediction: %w", err)
		}
		if d.Reason == model.ReasonAutoAccept && !d.SelectedForReview {
			if err := store.MarkReviewed(ctx, p.TransactionID, p.CategoryID); err != nil {
				return fmt.Errorf("failed to auto-accept transaction: %w", err)
			}
		}
	}

	pendingReview := len(decisions) - selected - accepted
	fmt.Printf("Classified %d transactions (mode: %s)\n", len(decisions), cfg.Mode)
	if ruleMatched > 0 {
		fmt.Printf("  %d matched by merchant rules\n", ruleMatched)
	}
	fmt.Printf("  %d selected for review\n", selected)
	fmt.Printf("  %d auto-accepted (confidence >= %.2f)\n", accepted, cfg.AutoAcceptThreshold)
	fmt.Printf("  %d left pending for future batches\n", pendingReview)
	if dryRun {
		fmt.Println("Dry run: nothing was saved.")
	}

	return nil
}
