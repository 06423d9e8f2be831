package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fafycat/fafycat/internal/model"
)

// RecordReview appends a review outcome to the review log. The log feeds
// the selection-mode recommendation.
func (s *SQLiteStorage) RecordReview(ctx context.Context, record model.ReviewRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (transaction_id, confidence, was_corrected, reviewed_at)
		VALUES (?, ?, ?, ?)`,
		record.TransactionID, record.Confidence, record.WasCorrected, record.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to record review for %s: %w", record.TransactionID, err)
	}

	slog.Debug("recorded review", "transaction_id", record.TransactionID, "corrected", record.WasCorrected)
	return nil
}

// GetRecentReviews returns the most recent review outcomes, newest first.
func (s *SQLiteStorage) GetRecentReviews(ctx context.Context, limit int) ([]model.ReviewRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, confidence, was_corrected, reviewed_at
		FROM review_log
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ReviewRecord
	for rows.Next() {
		var r model.ReviewRecord
		if err := rows.Scan(&r.TransactionID, &r.Confidence, &r.WasCorrected, &r.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review log: %w", err)
	}
	return records, nil
}
