package main

import (
	"context"
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/fafycat/fafycat/internal/active"
	"github.com/fafycat/fafycat/internal/classify"
	"github.com/fafycat/fafycat/internal/config"
	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
	"github.com/fafycat/fafycat/internal/service"
	"github.com/fafycat/fafycat/internal/storage"
)

// initStorage opens the transaction database and runs migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initModelStore opens the snapshot store.
func initModelStore() (service.ModelStore, error) {
	modelPath := viper.GetString("model.path")
	if modelPath == "" {
		modelPath = config.DefaultModelPath()
	} else {
		modelPath = config.ExpandPath(modelPath)
	}

	return storage.NewBoltModelStore(modelPath)
}

// loadSnapshot reads and deserializes the current model snapshot.
func loadSnapshot(ctx context.Context, models service.ModelStore) (*classify.Snapshot, error) {
	serialized, err := models.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return classify.UnmarshalSnapshot(serialized)
}

// loadCorpus extracts feature vectors and labels from every labeled
// transaction, plus the id-to-name map used in error messages.
func loadCorpus(ctx context.Context, store service.Storage) ([]features.Vector, []int, map[int]string, error) {
	labeled, err := store.GetLabeledTransactions(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load labeled transactions: %w", err)
	}

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load categories: %w", err)
	}
	categoryNames := make(map[int]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	extractor := features.NewExtractor()
	vectors := extractor.ExtractBatch(labeled)
	labels := make([]int, len(labeled))
	for i, txn := range labeled {
		labels[i] = txn.CategoryID
	}

	return vectors, labels, categoryNames, nil
}

// selectorConfig builds the review selection policy from configuration,
// falling back to the documented defaults for anything unset.
func selectorConfig() active.Config {
	cfg := active.DefaultConfig()

	if viper.IsSet("review.budget_per_batch") {
		cfg.Budget = viper.GetInt("review.budget_per_batch")
	}
	if viper.IsSet("review.auto_accept_threshold") {
		cfg.AutoAcceptThreshold = viper.GetFloat64("review.auto_accept_threshold")
	}
	if viper.IsSet("review.medium_band_low") {
		cfg.MediumBandLow = viper.GetFloat64("review.medium_band_low")
	}
	if viper.IsSet("review.medium_band_high") {
		cfg.MediumBandHigh = viper.GetFloat64("review.medium_band_high")
	}
	if mode := viper.GetString("review.selection_mode"); mode != "" {
		cfg.Mode = model.SelectionMode(mode)
	}
	if raw := viper.Get("review.pool_proportions"); raw != nil {
		if u, m, a, ok := parsePoolProportions(raw); ok {
			cfg.UncertaintyShare = u
			cfg.MediumShare = m
			cfg.AuditShare = a
		}
	}

	return cfg
}

// parsePoolProportions reads the uncertainty/medium/audit budget split from
// a 3-element list. Values are normalized by their sum, so both percentage
// form (70, 20, 10) and fraction form (0.7, 0.2, 0.1) work.
func parsePoolProportions(raw any) (uncertainty, medium, audit float64, ok bool) {
	parts := cast.ToSlice(raw)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	u := cast.ToFloat64(parts[0])
	m := cast.ToFloat64(parts[1])
	a := cast.ToFloat64(parts[2])
	sum := u + m + a
	if u < 0 || m < 0 || a < 0 || sum <= 0 {
		return 0, 0, 0, false
	}
	return u / sum, m / sum, a / sum, true
}

// trainerConfig builds the training configuration from the ml.* keys.
func trainerConfig() classify.TrainerConfig {
	cfg := classify.DefaultTrainerConfig()

	if viper.IsSet("ml.rounds") {
		cfg.GBT.Rounds = viper.GetInt("ml.rounds")
	}
	if viper.IsSet("ml.max_depth") {
		cfg.GBT.MaxDepth = viper.GetInt("ml.max_depth")
	}
	if viper.IsSet("ml.learning_rate") {
		cfg.GBT.LearningRate = viper.GetFloat64("ml.learning_rate")
	}
	if viper.IsSet("ml.min_training_samples") {
		cfg.MinTrainingSamples = viper.GetInt("ml.min_training_samples")
	}
	if viper.IsSet("ml.min_per_category") {
		cfg.MinPerCategory = viper.GetInt("ml.min_per_category")
	}

	return cfg
}
