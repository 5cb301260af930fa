package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestNewQuote_Mid(t *testing.T) {
	assert.Equal(t, 11.0, NewQuote(RawOption{Bid: f(10), Ask: f(12)}).Mid)
	assert.Equal(t, 6.0, NewQuote(RawOption{Ask: f(12)}).Mid, "missing bid counts as zero")
	assert.Equal(t, 5.0, NewQuote(RawOption{Bid: f(10)}).Mid, "missing ask counts as zero")
	assert.Equal(t, 0.0, NewQuote(RawOption{}).Mid)
}

func TestNewQuote_CopiesFields(t *testing.T) {
	raw := RawOption{
		Symbol:       "SPXW261231C06860000",
		Bid:          f(1.5),
		Ask:          f(1.7),
		Last:         f(1.6),
		IV:           f(0.21),
		Delta:        f(0.35),
		Volume:       f(120),
		OpenInterest: f(4500),
	}
	q := NewQuote(raw)
	assert.Equal(t, raw.Bid, q.Bid)
	assert.Equal(t, raw.Ask, q.Ask)
	assert.Equal(t, raw.Last, q.Last)
	assert.Equal(t, raw.IV, q.IV)
	assert.Equal(t, raw.Delta, q.Delta)
	assert.Equal(t, raw.Volume, q.Volume)
	assert.Equal(t, raw.OpenInterest, q.OpenInterest)
	assert.InDelta(t, 1.6, q.Mid, 1e-9)
}
