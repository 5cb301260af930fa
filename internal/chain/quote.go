// Package chain turns provider option records into the canonical chain
// document: expirations -> strikes -> call/put quotes.
package chain

import "encoding/json"

// RawOption is a provider record after field-name mapping and before symbol
// parsing. Every number is optional.
type RawOption struct {
	Symbol       string
	Bid          *float64
	Ask          *float64
	Last         *float64
	IV           *float64
	Delta        *float64
	Volume       *float64
	OpenInterest *float64
}

// OptionQuote is the per-contract output. Mid is always set.
type OptionQuote struct {
	Bid          *float64 `json:"bid"`
	Ask          *float64 `json:"ask"`
	Mid          float64  `json:"mid"`
	Last         *float64 `json:"last"`
	IV           *float64 `json:"iv"`
	Delta        *float64 `json:"delta"`
	Volume       *float64 `json:"volume"`
	OpenInterest *float64 `json:"openInterest"`
}

// ChainEntry holds the call and put sharing one (expiration, strike).
type ChainEntry struct {
	Call *OptionQuote `json:"call,omitempty"`
	Put  *OptionQuote `json:"put,omitempty"`
}

// Snapshot is the normalized response document.
type Snapshot struct {
	Source      string                           `json:"source"`
	Spot        json.RawMessage                  `json:"spot"`
	Timestamp   json.RawMessage                  `json:"timestamp"`
	Expirations []string                         `json:"expirations"`
	Chains      map[string]map[string]ChainEntry `json:"chains"`
}

// NewQuote copies raw's numbers and derives the mid. A missing side counts
// as zero, so bid=nil ask=12 gives mid=6.
func NewQuote(raw RawOption) OptionQuote {
	return OptionQuote{
		Bid:          raw.Bid,
		Ask:          raw.Ask,
		Mid:          (orZero(raw.Bid) + orZero(raw.Ask)) / 2,
		Last:         raw.Last,
		IV:           raw.IV,
		Delta:        raw.Delta,
		Volume:       raw.Volume,
		OpenInterest: raw.OpenInterest,
	}
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
