package classify

import (
	"sort"
	"strings"

	"github.com/fafycat/fafycat/internal/model"
)

// MerchantOverrideConfidence is the minimum mapping confidence at which a
// rule-based merchant match overrides the ensemble entirely.
const MerchantOverrideConfidence = 0.95

const (
	// Patterns shorter than this never partial-match; "DB" would swallow
	// half the statement.
	minPartialPatternLen = 5
	partialMatchPenalty  = 0.9
	prefixMatchLen       = 4
)

// MerchantMapper resolves cleaned merchant names against learned
// merchant-to-category rules. Exact matches win; otherwise a conservative
// partial match (shared words, prefix for single-word patterns) applies at
// reduced confidence. Lookups are read-only and deterministic.
type MerchantMapper struct {
	exact    map[string]model.MerchantMapping
	patterns []string // sorted, for deterministic partial-match order
}

// NewMerchantMapper indexes the given mappings. Later duplicates of a
// pattern win, mirroring how a refresh overwrites earlier rules.
func NewMerchantMapper(mappings []model.MerchantMapping) *MerchantMapper {
	exact := make(map[string]model.MerchantMapping, len(mappings))
	for _, m := range mappings {
		if m.Pattern == "" {
			continue
		}
		exact[m.Pattern] = m
	}
	patterns := make([]string, 0, len(exact))
	for p := range exact {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return &MerchantMapper{exact: exact, patterns: patterns}
}

// Len returns the number of indexed patterns.
func (m *MerchantMapper) Len() int {
	return len(m.patterns)
}

// Lookup returns the mapping for a cleaned merchant name. Partial matches
// carry the pattern's confidence scaled by 0.9.
func (m *MerchantMapper) Lookup(merchant string) (model.MerchantMapping, bool) {
	if merchant == "" || len(m.exact) == 0 {
		return model.MerchantMapping{}, false
	}

	if mapping, ok := m.exact[merchant]; ok {
		return mapping, true
	}

	merchantWords := strings.Fields(merchant)
	for _, pattern := range m.patterns {
		if partialMatch(merchantWords, pattern) {
			mapping := m.exact[pattern]
			mapping.Confidence *= partialMatchPenalty
			return mapping, true
		}
	}
	return model.MerchantMapping{}, false
}

// partialMatch reports whether a merchant loosely matches a pattern:
// single-word patterns match on a shared 4-character prefix, multi-word
// patterns on word overlap.
func partialMatch(merchantWords []string, pattern string) bool {
	if len(pattern) < minPartialPatternLen {
		return false
	}

	patternWords := strings.Fields(pattern)
	if len(patternWords) == 1 {
		prefix := patternWords[0]
		if len(prefix) > prefixMatchLen {
			prefix = prefix[:prefixMatchLen]
		}
		for _, word := range merchantWords {
			if strings.HasPrefix(word, prefix) {
				return true
			}
		}
		return false
	}

	need := 2
	if len(patternWords) < need {
		need = len(patternWords)
	}
	overlap := 0
	for _, pw := range patternWords {
		for _, mw := range merchantWords {
			if pw == mw {
				overlap++
				break
			}
		}
	}
	return overlap >= need
}
