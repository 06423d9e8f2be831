package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fafycat/fafycat/internal/classify"
	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// merchantMappingMinOccurrences is how many confirmed transactions a
// merchant needs with one category before a rule is learned for it.
const merchantMappingMinOccurrences = 3

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the categorization model on reviewed transactions",
		Long: `Train both sub-models on every reviewed transaction, tune the blend
weight on a held-out split, and save the resulting snapshot. The previous
snapshot keeps serving until the new one is saved.`,
		RunE: runTrain,
	}
}

func runTrain(cmd *cobra.Command, _ []string) error {
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

	vectors, labels, categoryNames, err := loadCorpus(ctx, store)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return common.NewUserError("no reviewed transactions to train on; review some transactions first", common.ErrNotFound)
	}

	slog.Info("Starting training", "samples", len(vectors))

	trainer := classify.NewTrainer(trainerConfig())
	result, err := trainer.Train(ctx, vectors, labels, categoryNames)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	serialized, err := result.Snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	models, err := initModelStore()
	if err != nil {
		return fmt.Errorf("failed to open model store: %w", err)
	}
	defer func() {
		if closeErr := models.Close(); closeErr != nil {
			slog.Error("Failed to close model store", "error", closeErr)
		}
	}()

	if err := models.SaveSnapshot(ctx, serialized); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	// Rebuild the rule-based merchant mappings from the same confirmed
	// history the models just trained on.
	cleaner := features.NewMerchantCleaner()
	mappingCount, err := store.RefreshMerchantMappings(ctx, merchantMappingMinOccurrences, cleaner.Clean)
	if err != nil {
		return fmt.Errorf("failed to refresh merchant mappings: %w", err)
	}

	report := result.Report
	fmt.Printf("Trained on %d transactions across %d categories\n", len(vectors), len(categoryNames))
	fmt.Printf("Blend weights: tree=%.2f text=%.2f\n", report.Weights.Tree, report.Weights.Text)
	fmt.Printf("Validation log loss: %.4f (tree alone %.4f, text alone %.4f)\n",
		report.LogLoss, report.TreeLogLoss, report.TextLogLoss)
	fmt.Printf("Validation macro F1: %.4f\n", report.MacroF1)
	fmt.Printf("Merchant rules: %d\n", mappingCount)

	return nil
}
