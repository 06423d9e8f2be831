package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/model"
	"github.com/fafycat/fafycat/internal/service"
)

const transactionColumns = `
	id, date, name, purpose, amount, currency,
	COALESCE(category_id, 0), COALESCE(predicted_category_id, 0),
	COALESCE(confidence, 0), is_reviewed, imported_at, import_batch`

// SaveTransactions upserts a batch of transactions inside one database
// transaction so a failed import leaves nothing behind.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, date, name, purpose, amount, currency, imported_at, import_batch)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if txn.ID == "" {
			txn.ID = txn.GenerateID()
		}
		if _, err := stmt.ExecContext(ctx, txn.ID, txn.Date, txn.Name, txn.Purpose,
			txn.Amount, txn.Currency, txn.ImportBatch); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}

	slog.Debug("saved transactions", "count", len(transactions))
	return nil
}

// GetTransactions returns transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	query += ` ORDER BY date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

// GetTransactionByID returns one transaction, or ErrNotFound.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// GetLabeledTransactions returns the training corpus: every transaction
// with a confirmed category.
func (s *SQLiteStorage) GetLabeledTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE category_id IS NOT NULL AND category_id != 0
		ORDER BY date`
	return s.queryTransactions(ctx, query)
}

// GetTransactionsToPredict returns unreviewed transactions without a
// confirmed category.
func (s *SQLiteStorage) GetTransactionsToPredict(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE is_reviewed = 0 AND (category_id IS NULL OR category_id = 0)
		ORDER BY date`
	return s.queryTransactions(ctx, query)
}

// SavePrediction stores the predicted category and confidence for a
// transaction without touching its review state.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, txnID string, categoryID int, confidence float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET predicted_category_id = ?, confidence = ? WHERE id = ?`,
		categoryID, confidence, txnID)
	if err != nil {
		return fmt.Errorf("failed to save prediction for %s: %w", txnID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// MarkReviewed confirms a transaction's category and flags it reviewed.
// Auto-accepted transactions go through here with the predicted category.
func (s *SQLiteStorage) MarkReviewed(ctx context.Context, txnID string, categoryID int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, is_reviewed = 1 WHERE id = ?`,
		categoryID, txnID)
	if err != nil {
		return fmt.Errorf("failed to mark %s reviewed: %w", txnID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	err := row.Scan(
		&txn.ID, &txn.Date, &txn.Name, &txn.Purpose, &txn.Amount, &txn.Currency,
		&txn.CategoryID, &txn.PredictedID, &txn.Confidence, &txn.IsReviewed,
		&txn.ImportedAt, &txn.ImportBatch,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
