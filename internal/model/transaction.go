package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single imported bank transaction.
type Transaction struct {
	Date        time.Time
	ImportedAt  time.Time
	ID          string
	Name        string // Raw merchant/description line from the bank
	Purpose     string // Free-text purpose field, may be empty
	Currency    string
	ImportBatch string
	Amount      float64
	Confidence  float64 // Confidence of the stored prediction, 0 if none
	CategoryID  int     // Confirmed category, 0 if unreviewed
	PredictedID int     // Predicted category, 0 if never predicted
	IsReviewed  bool
}

// GenerateID creates a deterministic identifier for deduplication.
func (t *Transaction) GenerateID() string {
	key := fmt.Sprintf("%s|%.2f|%s|%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Name,
		t.Purpose)
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)[:16]
}
