package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafycat/fafycat/internal/model"
)

func TestMerchantMapper_ExactMatch(t *testing.T) {
	mapper := NewMerchantMapper([]model.MerchantMapping{
		{Pattern: "REWE MARKT", CategoryID: 3, Confidence: 0.95},
	})

	mapping, ok := mapper.Lookup("REWE MARKT")
	require.True(t, ok)
	assert.Equal(t, 3, mapping.CategoryID)
	assert.Equal(t, 0.95, mapping.Confidence)
}

func TestMerchantMapper_PartialMatchSingleWordPrefix(t *testing.T) {
	mapper := NewMerchantMapper([]model.MerchantMapping{
		{Pattern: "AMAZON", CategoryID: 7, Confidence: 0.9},
	})

	mapping, ok := mapper.Lookup("AMAZONEU SARL")
	require.True(t, ok)
	assert.Equal(t, 7, mapping.CategoryID)
	assert.InDelta(t, 0.9*0.9, mapping.Confidence, 1e-12)
}

func TestMerchantMapper_PartialMatchWordOverlap(t *testing.T) {
	mapper := NewMerchantMapper([]model.MerchantMapping{
		{Pattern: "REWE MARKT GMBH", CategoryID: 3, Confidence: 0.95},
	})

	mapping, ok := mapper.Lookup("REWE MARKT KOELN")
	require.True(t, ok)
	assert.Equal(t, 3, mapping.CategoryID)
	assert.InDelta(t, 0.95*0.9, mapping.Confidence, 1e-12)
}

func TestMerchantMapper_ShortPatternsNeverPartialMatch(t *testing.T) {
	mapper := NewMerchantMapper([]model.MerchantMapping{
		{Pattern: "OBI", CategoryID: 4, Confidence: 0.95},
	})

	_, ok := mapper.Lookup("OBIMARKT HAMBURG")
	assert.False(t, ok)

	// Exact matching still works for short patterns.
	mapping, ok := mapper.Lookup("OBI")
	require.True(t, ok)
	assert.Equal(t, 4, mapping.CategoryID)
}

func TestMerchantMapper_NoMatch(t *testing.T) {
	mapper := NewMerchantMapper([]model.MerchantMapping{
		{Pattern: "REWE MARKT", CategoryID: 3, Confidence: 0.95},
	})

	_, ok := mapper.Lookup("SHELL TANKSTELLE")
	assert.False(t, ok)

	_, ok = mapper.Lookup("")
	assert.False(t, ok)
}

func TestMerchantMapper_PartialMatchOrderIsDeterministic(t *testing.T) {
	// Both patterns share a word with the merchant; the lexicographically
	// first pattern must win every time.
	mappings := []model.MerchantMapping{
		{Pattern: "MARKT SUED GMBH", CategoryID: 9, Confidence: 0.9},
		{Pattern: "EDEKA MARKT GMBH", CategoryID: 2, Confidence: 0.9},
	}

	for i := 0; i < 10; i++ {
		mapper := NewMerchantMapper(mappings)
		mapping, ok := mapper.Lookup("MARKT GMBH NORD")
		require.True(t, ok)
		assert.Equal(t, 2, mapping.CategoryID)
	}
}

func TestMerchantMapper_Empty(t *testing.T) {
	mapper := NewMerchantMapper(nil)
	assert.Equal(t, 0, mapper.Len())

	_, ok := mapper.Lookup("REWE MARKT")
	assert.False(t, ok)
}
