package classify

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbrukh/bayesian"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/features"
)

// TextClassifier is a naive-Bayes model over description tokens and coarse
// amount features. TF-IDF term weighting compensates for the very repetitive
// vocabulary of bank statements.
type TextClassifier struct {
	classifier *bayesian.Classifier
	classIDs   []int
	trained    bool
}

// NewTextClassifier creates an untrained text/amount classifier.
func NewTextClassifier() *TextClassifier {
	return &TextClassifier{}
}

// Classes returns the sorted category IDs the model predicts over.
func (t *TextClassifier) Classes() []int {
	return t.classIDs
}

// Fit trains the classifier on labeled feature vectors.
func (t *TextClassifier) Fit(vectors []features.Vector, labels []int) error {
	if len(vectors) == 0 || len(vectors) != len(labels) {
		return fmt.Errorf("text fit: %d vectors, %d labels", len(vectors), len(labels))
	}

	t.classIDs = uniqueSorted(labels)
	if len(t.classIDs) < 2 {
		return fmt.Errorf("text fit: need at least 2 categories, got %d", len(t.classIDs))
	}

	classes := make([]bayesian.Class, len(t.classIDs))
	for i, id := range t.classIDs {
		classes[i] = bayesian.Class(strconv.Itoa(id))
	}
	t.classifier = bayesian.NewClassifierTfIdf(classes...)

	classIndex := make(map[int]int, len(t.classIDs))
	for i, id := range t.classIDs {
		classIndex[id] = i
	}
	for i, v := range vectors {
		t.classifier.Learn(documentTerms(v), classes[classIndex[labels[i]]])
	}
	t.classifier.ConvertTermsFreqToTfIdf()

	t.trained = true
	return nil
}

// ClassProbabilities returns the full probability vector in Classes order.
// Log scores are normalized through a softmax, which avoids the numeric
// underflow of multiplying raw word likelihoods.
func (t *TextClassifier) ClassProbabilities(v features.Vector) ([]float64, error) {
	if !t.trained {
		return nil, common.ErrModelNotTrained
	}
	scores, _, _ := t.classifier.LogScores(documentTerms(v))
	return softmax(scores), nil
}

// documentTerms builds the token document for one transaction: processed
// description tokens plus coarse amount markers, so the model sees both
// what the money was for and roughly how much it was.
func documentTerms(v features.Vector) []string {
	terms := strings.Fields(v.Text)
	if v.HasAmount {
		terms = append(terms, "amount_bucket_"+strconv.Itoa(amountBucket(v.Amount)))
		if v.Amount > 0 {
			terms = append(terms, "amount_income")
		} else {
			terms = append(terms, "amount_expense")
		}
	}
	return terms
}

func amountBucket(amount float64) int {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 10:
		return 0
	case abs < 50:
		return 1
	case abs < 200:
		return 2
	case abs < 1000:
		return 3
	default:
		return 4
	}
}

// marshal serializes the trained bayesian model for snapshot persistence.
func (t *TextClassifier) marshal() ([]byte, error) {
	if !t.trained {
		return nil, common.ErrModelNotTrained
	}
	var buf bytes.Buffer
	if err := t.classifier.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize text classifier: %w", err)
	}
	return buf.Bytes(), nil
}

// unmarshalTextClassifier restores a trained classifier from snapshot bytes.
func unmarshalTextClassifier(data []byte, classIDs []int) (*TextClassifier, error) {
	classifier, err := bayesian.NewClassifierFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize text classifier: %w", err)
	}
	return &TextClassifier{
		classifier: classifier,
		classIDs:   append([]int(nil), classIDs...),
		trained:    true,
	}, nil
}
