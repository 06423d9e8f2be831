package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
	"github.com/fafycat/fafycat/internal/model"
)

func importCmd() *cobra.Command {
	var batchName string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import transactions from a CSV export",
		Long: `Import transactions from a bank CSV export. The file needs a header row
with at least the columns date, name and amount; purpose and currency are
optional. Re-importing the same file is safe: rows are deduplicated by
their content.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], batchName)
		},
	}

	cmd.Flags().StringVar(&batchName, "batch", "", "import batch label (default: file name)")

	return cmd
}

func runImport(cmd *cobra.Command, path, batchName string) error {
	ctx := cmd.Context()

	if batchName == "" {
		batchName = fmt.Sprintf("%s-%s", path, time.Now().Format("2006-01-02"))
	}

	file, err := os.Open(path)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = file.Close() }()

	transactions, err := parseCSV(file, batchName)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		return common.NewUserError("no transactions found in file", common.ErrNotFound)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	// Merchant frequency drives novelty scoring at selection time.
	cleaner := features.NewMerchantCleaner()
	for _, txn := range transactions {
		if err := store.IncrementMerchantCount(ctx, cleaner.Clean(txn.Name)); err != nil {
			return fmt.Errorf("failed to update merchant history: %w", err)
		}
	}

	common.LogInfo("Import complete", common.Fields{
		"file":  path,
		"batch": batchName,
		"count": len(transactions),
	})
	fmt.Printf("Imported %d transactions from %s\n", len(transactions), path)
	fmt.Println("Next: fafycat classify")

	return nil
}

// parseCSV reads a header-keyed CSV export into transactions.
func parseCSV(r io.Reader, batchName string) ([]model.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, common.NewUserError("failed to read CSV header", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "name", "amount"} {
		if _, ok := col[required]; !ok {
			return nil, common.NewUserError(fmt.Sprintf("CSV is missing required column %q", required), common.ErrInvalidConfig)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := col[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var transactions []model.Transaction
	line := 1
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			return nil, common.NewUserError(fmt.Sprintf("failed to parse CSV line %d", line), readErr)
		}

		date, dateErr := parseDate(field(record, "date"))
		if dateErr != nil {
			return nil, common.NewUserError(fmt.Sprintf("line %d has an unrecognized date %q", line, field(record, "date")), dateErr)
		}

		amount, amountErr := parseAmount(field(record, "amount"))
		if amountErr != nil {
			return nil, common.NewUserError(fmt.Sprintf("line %d has an unparseable amount %q", line, field(record, "amount")), amountErr)
		}

		txn := model.Transaction{
			Date:        date,
			Name:        field(record, "name"),
			Purpose:     field(record, "purpose"),
			Amount:      amount,
			Currency:    field(record, "currency"),
			ImportBatch: batchName,
		}
		txn.ID = txn.GenerateID()
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseAmount accepts both 1234.56 and European 1.234,56 formatting.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
