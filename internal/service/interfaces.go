// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/fafycat/fafycat/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Storage defines the contract for the persistence layer. The prediction
// engine reads the training corpus and merchant statistics through it and
// writes predictions and review outcomes back.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetLabeledTransactions(ctx context.Context) ([]model.Transaction, error)
	GetTransactionsToPredict(ctx context.Context) ([]model.Transaction, error)
	SavePrediction(ctx context.Context, txnID string, categoryID int, confidence float64) error
	MarkReviewed(ctx context.Context, txnID string, categoryID int) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name string, categoryType model.CategoryType, budget float64) (*model.Category, error)

	// Merchant statistics used for novelty scoring
	MerchantCount(ctx context.Context, merchant string) (int, error)
	IncrementMerchantCount(ctx context.Context, merchant string) error

	// Learned merchant-to-category rules consulted before the ensemble
	GetMerchantMappings(ctx context.Context) ([]model.MerchantMapping, error)
	RefreshMerchantMappings(ctx context.Context, minOccurrences int, clean func(string) string) (int, error)

	// Review history used to recommend a selection mode
	RecordReview(ctx context.Context, record model.ReviewRecord) error
	GetRecentReviews(ctx context.Context, limit int) ([]model.ReviewRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ModelStore persists trained model snapshots. A snapshot (sub-model state,
// blend weights, canonical category ordering) is written and loaded as one
// atomic unit.
type ModelStore interface {
	SaveSnapshot(ctx context.Context, serialized []byte) error
	LoadSnapshot(ctx context.Context) ([]byte, error)
	Close() error
}
