// Package features turns raw transactions into the fixed-shape feature
// vectors consumed by both classifiers.
package features

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/fafycat/fafycat/internal/model"
)

// Vector is the fixed-shape feature representation of one transaction.
// Numeric holds the numeric features in the order of NumericFeatureNames;
// Text is the preprocessed token string fed to the text classifier;
// Merchant is the cleaned merchant name used for novelty lookups.
type Vector struct {
	TransactionID string
	Merchant      string
	Text          string
	Numeric       []float64
	Amount        float64
	HasAmount     bool
}

// TextHashBuckets is the number of hashed token-presence features appended
// to the numeric vector. Hashing keeps the vector shape fixed regardless of
// vocabulary so the tree model can split on text without a vocabulary map.
const TextHashBuckets = 32

// NumericFeatureNames lists the numeric features in vector order. The order
// is part of the trained model's input contract.
func NumericFeatureNames() []string {
	names := baseFeatureNames()
	for i := 0; i < TextHashBuckets; i++ {
		names = append(names, fmt.Sprintf("text_hash_%02d", i))
	}
	return names
}

func baseFeatureNames() []string {
	return []string{
		"amount",
		"amount_abs",
		"amount_log",
		"is_income",
		"is_round_amount",
		"amount_magnitude",
		"day_of_month",
		"day_of_week",
		"month",
		"is_weekend",
		"is_month_start",
		"is_month_end",
		"is_holiday_season",
		"merchant_length",
		"merchant_word_count",
		"is_card_payment",
		"is_direct_debit",
		"is_standing_order",
		"is_online",
		"is_recurring",
		"is_supermarket",
		"is_fuel",
		"is_restaurant",
		"is_transport",
		"is_subscription",
	}
}

// Extractor derives feature vectors from transactions.
type Extractor struct {
	cleaner *MerchantCleaner
	text    *TextPreprocessor
}

// NewExtractor creates an extractor with default cleaning rules.
func NewExtractor() *Extractor {
	return &Extractor{
		cleaner: NewMerchantCleaner(),
		text:    NewTextPreprocessor(),
	}
}

// Extract builds the feature vector for a single transaction. Partial data
// gets neutral defaults rather than errors: empty text stays empty and a
// missing amount zeroes the amount-derived features.
func (e *Extractor) Extract(txn model.Transaction) Vector {
	merchant := e.cleaner.Clean(txn.Name)
	amountAbs := math.Abs(txn.Amount)
	purpose := strings.ToLower(txn.Purpose)
	merchantLower := strings.ToLower(merchant)

	numeric := []float64{
		txn.Amount,
		amountAbs,
		math.Log1p(amountAbs),
		boolFeature(txn.Amount > 0),
		boolFeature(amountAbs != 0 && math.Mod(amountAbs, 10) == 0),
		float64(amountMagnitude(amountAbs)),
		float64(txn.Date.Day()),
		float64(txn.Date.Weekday()),
		float64(txn.Date.Month()),
		boolFeature(txn.Date.Weekday() == 0 || txn.Date.Weekday() == 6),
		boolFeature(txn.Date.Day() <= 5),
		boolFeature(txn.Date.Day() >= 25),
		boolFeature(txn.Date.Month() == 11 || txn.Date.Month() == 12 || txn.Date.Month() == 1),
		float64(len(merchant)),
		float64(wordCount(merchant)),
		containsAny(purpose, "card", "pos", "debit card"),
		containsAny(purpose, "direct debit", "lastschrift"),
		containsAny(purpose, "standing order", "dauerauftrag"),
		containsAny(purpose, "online", "internet", "paypal", "amazon"),
		containsAny(purpose, "standing order", "subscription", "recurring"),
		containsAny(merchantLower, "edeka", "rewe", "aldi", "lidl", "kroger", "safeway", "tesco"),
		containsAny(merchantLower, "shell", "esso", "aral", "chevron", "texaco", "fuel"),
		containsAny(merchantLower, "mcdonald", "burger", "pizza", "restaurant", "cafe"),
		containsAny(merchantLower, "uber", "lyft", "taxi", "transit", "railway", "bahn"),
		containsAny(merchantLower, "netflix", "spotify", "apple.com", "google", "microsoft"),
	}

	text := e.text.Process(txn.Name + " " + txn.Purpose)
	numeric = append(numeric, hashTokens(strings.Fields(text))...)

	return Vector{
		TransactionID: txn.ID,
		Merchant:      merchant,
		Text:          text,
		Numeric:       numeric,
		Amount:        txn.Amount,
		HasAmount:     txn.Amount != 0,
	}
}

// hashTokens maps tokens onto fixed presence buckets (hashing trick).
func hashTokens(tokens []string) []float64 {
	buckets := make([]float64, TextHashBuckets)
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		buckets[h.Sum32()%TextHashBuckets] = 1
	}
	return buckets
}

// ExtractBatch builds feature vectors for a batch of transactions,
// preserving input order.
func (e *Extractor) ExtractBatch(txns []model.Transaction) []Vector {
	vectors := make([]Vector, len(txns))
	for i, txn := range txns {
		vectors[i] = e.Extract(txn)
	}
	return vectors
}

// amountMagnitude buckets an absolute amount into five coarse sizes.
func amountMagnitude(amount float64) int {
	switch {
	case amount < 10:
		return 0
	case amount < 50:
		return 1
	case amount < 200:
		return 2
	case amount < 1000:
		return 3
	default:
		return 4
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func containsAny(s string, substrings ...string) float64 {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return 1
		}
	}
	return 0
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func wordCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(whitespaceRe.Split(s, -1))
}
