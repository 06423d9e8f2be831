package features

import (
	"regexp"
	"strings"
)

// MerchantCleaner normalizes raw merchant lines so the same merchant hashes
// to the same key across statements.
type MerchantCleaner struct {
	patterns []*regexp.Regexp
	prefixes []string
}

// NewMerchantCleaner creates a cleaner with the default noise patterns seen
// on bank statements: dates, times, reference numbers, card sequence
// numbers, and location suffixes.
func NewMerchantCleaner() *MerchantCleaner {
	raw := []string{
		`\d{4}\.\d{2}\.\d{2}.*`, // dates
		`\d{2}:\d{2}:\d{2}.*`,   // times
		`//.*`,                  // location info after //
		`(?i)folgenr\.\d+.*`,    // card sequence numbers
		`(?i)\bnr\.\d+.*`,       // reference numbers
		`\*+.*`,                 // everything after asterisks
	}
	patterns := make([]*regexp.Regexp, len(raw))
	for i, p := range raw {
		patterns[i] = regexp.MustCompile(p)
	}
	return &MerchantCleaner{
		patterns: patterns,
		prefixes: []string{"EC ", "POS ", "CARD "},
	}
}

// Clean strips statement noise and normalizes whitespace and case.
func (c *MerchantCleaner) Clean(name string) string {
	cleaned := strings.TrimSpace(name)
	if cleaned == "" {
		return ""
	}

	for _, pattern := range c.patterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))

	for _, prefix := range c.prefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
		}
	}

	return cleaned
}

// TextPreprocessor prepares description text for the token classifier.
type TextPreprocessor struct {
	stopwords map[string]struct{}
}

// NewTextPreprocessor creates a preprocessor with the default stopword set.
func NewTextPreprocessor() *TextPreprocessor {
	words := []string{
		"and", "or", "the", "for", "from", "with", "ref", "via",
		"und", "oder", "der", "die", "das", "vom", "zum", "zur", "mit", "bei",
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[w] = struct{}{}
	}
	return &TextPreprocessor{stopwords: stop}
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Process lowercases, strips punctuation, and drops stopwords and tokens
// shorter than three characters.
func (p *TextPreprocessor) Process(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, " ")

	var kept []string
	for _, word := range strings.Fields(text) {
		if len(word) <= 2 {
			continue
		}
		if _, isStop := p.stopwords[word]; isStop {
			continue
		}
		kept = append(kept, word)
	}

	return strings.Join(kept, " ")
}

// Tokens returns the processed text as a token slice, the form the text
// classifier learns from.
func (p *TextPreprocessor) Tokens(text string) []string {
	processed := p.Process(text)
	if processed == "" {
		return nil
	}
	return strings.Fields(processed)
}
