package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/model"
	"github.com/fafycat/fafycat/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review queued predictions",
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewAcceptCmd())
	cmd.AddCommand(reviewCorrectCmd())

	return cmd
}

func reviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transactions waiting for review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer closeStorage(store)

			pending, err := store.GetTransactionsToPredict(ctx)
			if err != nil {
				return fmt.Errorf("failed to load pending transactions: %w", err)
			}

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to load categories: %w", err)
			}
			names := make(map[int]string, len(categories))
			for _, c := range categories {
				names[c.ID] = c.Name
			}

			var queued []model.Transaction
			for _, txn := range pending {
				if txn.PredictedID != 0 {
					queued = append(queued, txn)
				}
			}
			if len(queued) == 0 {
				fmt.Println("Nothing queued for review. Run: fafycat classify")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tNAME\tAMOUNT\tPREDICTED\tCONFIDENCE")
			for _, txn := range queued {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%.2f\n",
					txn.ID, txn.Date.Format("2006-01-02"), txn.Name, txn.Amount,
					names[txn.PredictedID], txn.Confidence)
			}
			return w.Flush()
		},
	}
}

func reviewAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <transaction-id>",
		Short: "Accept the predicted category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer closeStorage(store)

			txn, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("no transaction with id %s", args[0]), err)
				}
				return err
			}
			if txn.PredictedID == 0 {
				return common.NewUserError("transaction has no prediction to accept; run: fafycat classify", common.ErrNotFound)
			}

			return finishReview(ctx, store, txn, txn.PredictedID, false)
		},
	}
}

func reviewCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <transaction-id> <category>",
		Short: "Assign the correct category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer closeStorage(store)

			txn, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("no transaction with id %s", args[0]), err)
				}
				return err
			}

			category, err := store.GetCategoryByName(ctx, args[1])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("no category named %q; list them with: fafycat categories list", args[1]), err)
				}
				return err
			}

			corrected := txn.PredictedID != 0 && txn.PredictedID != category.ID
			return finishReview(ctx, store, txn, category.ID, corrected)
		},
	}
}

func finishReview(ctx context.Context, store service.Storage, txn *model.Transaction, categoryID int, corrected bool) error {
	if err := store.MarkReviewed(ctx, txn.ID, categoryID); err != nil {
		return fmt.Errorf("failed to mark transaction reviewed: %w", err)
	}

	record := model.ReviewRecord{
		TransactionID: txn.ID,
		Confidence:    txn.Confidence,
		WasCorrected:  corrected,
		ReviewedAt:    time.Now(),
	}
	if err := store.RecordReview(ctx, record); err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}

	if corrected {
		fmt.Printf("Corrected %s (prediction had confidence %.2f)\n", txn.ID, txn.Confidence)
	} else {
		fmt.Printf("Accepted %s\n", txn.ID)
	}
	return nil
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}
