package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fafycat/fafycat/internal/model"
)

// Learned mapping thresholds: a merchant must be confirmed with one category
// at least this consistently before rule-based prediction trusts it, and the
// learned confidence never exceeds the cap.
const (
	mappingMinConfidence = 0.8
	mappingConfidenceCap = 0.95
)

// MerchantCount returns how many times a merchant has been seen across
// imports. Unknown merchants return 0 without an error.
func (s *SQLiteStorage) MerchantCount(ctx context.Context, merchant string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT seen_count FROM merchant_stats WHERE merchant = ?`, merchant).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get merchant count for %q: %w", merchant, err)
	}
	return count, nil
}

// IncrementMerchantCount bumps the seen counter for a merchant, creating
// the row on first sight.
func (s *SQLiteStorage) IncrementMerchantCount(ctx context.Context, merchant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if merchant == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_stats (merchant, seen_count) VALUES (?, 1)
		ON CONFLICT(merchant) DO UPDATE SET seen_count = seen_count + 1`, merchant)
	if err != nil {
		return fmt.Errorf("failed to increment merchant count for %q: %w", merchant, err)
	}
	return nil
}

// GetMerchantMappings returns all learned merchant-to-category mappings.
func (s *SQLiteStorage) GetMerchantMappings(ctx context.Context) ([]model.MerchantMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant_pattern, category_id, confidence, occurrence_count, last_seen
		FROM merchant_mappings
		ORDER BY merchant_pattern`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.MerchantMapping
	for rows.Next() {
		var m model.MerchantMapping
		if err := rows.Scan(&m.Pattern, &m.CategoryID, &m.Confidence, &m.OccurrenceCount, &m.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan merchant mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merchant mappings: %w", err)
	}
	return mappings, nil
}

// RefreshMerchantMappings rebuilds the learned mappings from confirmed
// transactions. A merchant qualifies once it carries the same category on at
// least minOccurrences reviewed transactions, with confidence
// min(0.95, occurrences/total labeled for that merchant); mappings below 0.8
// are not trusted. clean normalizes raw statement names before they become
// patterns. Returns the number of mappings written.
func (s *SQLiteStorage) RefreshMerchantMappings(ctx context.Context, minOccurrences int, clean func(string) string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if minOccurrences < 1 {
		minOccurrences = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name, t.category_id, COUNT(*) AS occurrences, MAX(t.date) AS last_seen,
			(SELECT COUNT(*) FROM transactions t2
			 WHERE t2.name = t.name AND t2.category_id IS NOT NULL AND t2.category_id != 0) AS total
		FROM transactions t
		WHERE t.category_id IS NOT NULL AND t.category_id != 0 AND t.is_reviewed = 1
		GROUP BY t.name, t.category_id
		HAVING COUNT(*) >= ?`, minOccurrences)
	if err != nil {
		return 0, fmt.Errorf("failed to query confirmed merchants: %w", err)
	}

	// Collect before writing: the single SQLite connection cannot run an
	// upsert while the result set is still open.
	type candidate struct {
		lastSeen   time.Time
		pattern    string
		confidence float64
		categoryID int
		count      int
	}
	var candidates []candidate
	for rows.Next() {
		var name string
		var categoryID, occurrences, total int
		var lastSeen time.Time
		if err := rows.Scan(&name, &categoryID, &occurrences, &lastSeen, &total); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan confirmed merchant: %w", err)
		}

		pattern := clean(name)
		if pattern == "" || total == 0 {
			continue
		}
		confidence := float64(occurrences) / float64(total)
		if confidence > mappingConfidenceCap {
			confidence = mappingConfidenceCap
		}
		if confidence < mappingMinConfidence {
			continue
		}
		candidates = append(candidates, candidate{
			pattern:    pattern,
			categoryID: categoryID,
			confidence: confidence,
			count:      occurrences,
			lastSeen:   lastSeen,
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("error iterating confirmed merchants: %w", err)
	}
	_ = rows.Close()

	for _, c := range candidates {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO merchant_mappings (merchant_pattern, category_id, confidence, occurrence_count, last_seen)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(merchant_pattern) DO UPDATE SET
				category_id = excluded.category_id,
				confidence = excluded.confidence,
				occurrence_count = excluded.occurrence_count,
				last_seen = excluded.last_seen`,
			c.pattern, c.categoryID, c.confidence, c.count, c.lastSeen)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert merchant mapping %q: %w", c.pattern, err)
		}
	}

	slog.Debug("refreshed merchant mappings", "count", len(candidates))
	return len(candidates), nil
}
