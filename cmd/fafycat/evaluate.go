package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fafycat/fafycat/internal/classify"
	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/eval"
	"github.com/fafycat/fafycat/internal/features"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Cross-validate the model on the labeled corpus",
		Long: `Run repeated stratified cross-validation over the reviewed transactions
and report accuracy and calibration for the ensemble and each sub-model.
The results are a report for you to read; nothing is retrained or saved.`,
		RunE: runEvaluate,
	}

	cmd.Flags().Int("folds", 0, "Number of folds (0 = configured default)")
	cmd.Flags().Int("repeats", 0, "Number of repeats (0 = configured default)")

	_ = viper.BindPFlag("cv.folds_flag", cmd.Flags().Lookup("folds"))
	_ = viper.BindPFlag("cv.repeats_flag", cmd.Flags().Lookup("repeats"))

	return cmd
}

// ensembleProber adapts a trained ensemble to the harness interface.
type ensembleProber struct {
	ensemble *classify.Ensemble
}

func (e ensembleProber) Classes() []int { return e.ensemble.Classes() }

func (e ensembleProber) ClassProbabilities(v features.Vector) ([]float64, error) {
	return e.ensemble.PredictProba(v)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
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
		return common.NewUserError("no reviewed transactions to evaluate on; review some transactions first", common.ErrNotFound)
	}

	harnessCfg := eval.DefaultHarnessConfig()
	harnessCfg.ShowProgress = true
	if v := viper.GetInt("cv.folds"); v > 0 {
		harnessCfg.Folds = v
	}
	if v := viper.GetInt("cv.repeats"); v > 0 {
		harnessCfg.Repeats = v
	}
	if v := viper.GetInt("cv.folds_flag"); v > 0 {
		harnessCfg.Folds = v
	}
	if v := viper.GetInt("cv.repeats_flag"); v > 0 {
		harnessCfg.Repeats = v
	}

	trainCfg := trainerConfig()
	builders := map[string]eval.Builder{
		"tree": func(train []features.Vector, trainLabels []int) (eval.Prober, error) {
			gbt := classify.NewGBTClassifier(trainCfg.GBT)
			if fitErr := gbt.Fit(train, trainLabels); fitErr != nil {
				return nil, fitErr
			}
			return gbt, nil
		},
		"text": func(train []features.Vector, trainLabels []int) (eval.Prober, error) {
			text := classify.NewTextClassifier()
			if fitErr := text.Fit(train, trainLabels); fitErr != nil {
				return nil, fitErr
			}
			return text, nil
		},
		"ensemble": func(train []features.Vector, trainLabels []int) (eval.Prober, error) {
			result, trainErr := classify.NewTrainer(trainCfg).Train(ctx, train, trainLabels, categoryNames)
			if trainErr != nil {
				return nil, trainErr
			}
			ensemble, ensErr := result.Snapshot.Ensemble()
			if ensErr != nil {
				return nil, ensErr
			}
			return ensembleProber{ensemble: ensemble}, nil
		},
	}

	slog.Info("Starting cross-validation",
		"samples", len(vectors),
		"folds", harnessCfg.Folds,
		"repeats", harnessCfg.Repeats)

	reports, err := eval.NewHarness(harnessCfg).Run(ctx, vectors, labels, builders, categoryNames)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	printReports(reports)
	return nil
}

func printReports(reports []eval.ModelReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tMACRO F1\tWEIGHTED F1\tLOG LOSS\tBRIER\tECE")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			formatSummary(r.MacroF1),
			formatSummary(r.WeightedF1),
			formatSummary(r.LogLoss),
			formatSummary(r.Brier),
			formatSummary(r.ECE))
	}
	_ = w.Flush()

	for _, r := range reports {
		if r.Name != "ensemble" || len(r.RiskCoverage) == 0 {
			continue
		}
		fmt.Println("\nRisk-coverage (ensemble):")
		rw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(rw, "THRESHOLD\tCOVERAGE\tRISK")
		for _, p := range r.RiskCoverage {
			fmt.Fprintf(rw, "%.2f\t%.1f%%\t%.1f%%\n", p.Threshold, p.Coverage*100, p.Risk*100)
		}
		_ = rw.Flush()
	}
}

func formatSummary(s eval.Summary) string {
	return fmt.Sprintf("%.4f ± %.4f", s.Mean, 1.96*s.StdErr)
}
