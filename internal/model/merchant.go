package model

import "time"

// MerchantMapping is a learned rule mapping a cleaned merchant name to the
// category its confirmed transactions consistently carry. Mappings are
// rebuilt from review history; they are never hand-maintained state the
// models depend on.
type MerchantMapping struct {
	LastSeen        time.Time
	Pattern         string // cleaned merchant name
	Confidence      float64
	CategoryID      int
	OccurrenceCount int
}
