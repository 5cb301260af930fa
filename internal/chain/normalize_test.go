package chain

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRecords() []RawOption {
	return []RawOption{
		{Symbol: "SPXW261231C06860000", Bid: f(10), Ask: f(12), Delta: f(0.5)},
		{Symbol: "SPXW261231P06860000", Bid: f(9), Ask: f(11)},
		{Symbol: "SPXW261231C06862500", Ask: f(12)},
		{Symbol: "SPXW250103P05000000", Bid: f(1), Ask: f(2)},
		{Symbol: "SPX250103P05000000", Bid: f(3), Ask: f(4)}, // monthly on the same day, loses to SPXW
		{Symbol: "garbage"},
		{Symbol: ""},
		{Symbol: "SPXW251301C05000000"}, // month 13
	}
}

func TestNormalize_BuildsNestedChain(t *testing.T) {
	out := Normalize(sampleRecords())

	require.Equal(t, []string{"2025-01-03", "2026-12-31"}, out.Expirations)
	require.Equal(t, 3, out.Skipped)

	dec := out.Entries["2026-12-31"]
	require.Len(t, dec, 2)

	atm := dec["6860"]
	require.NotNil(t, atm.Call)
	require.NotNil(t, atm.Put)
	require.Equal(t, 11.0, atm.Call.Mid)
	require.Equal(t, 10.0, atm.Put.Mid)
	require.Equal(t, 0.5, *atm.Call.Delta)

	half := dec["6862.5"]
	require.NotNil(t, half.Call)
	require.Nil(t, half.Put)
	require.Equal(t, 6.0, half.Call.Mid)

	jan := out.Entries["2025-01-03"]["5000"]
	require.Nil(t, jan.Call)
	require.NotNil(t, jan.Put)
	require.Equal(t, 1.5, jan.Put.Mid, "SPXW record wins the slot")
}

func TestNormalize_SkipsBadRecordsWithoutAffectingSiblings(t *testing.T) {
	good := []RawOption{{Symbol: "SPXW261231C06860000", Bid: f(1), Ask: f(3)}}
	withBad := append([]RawOption{{Symbol: "not-an-option"}, {Symbol: "SPXW26123"}}, good...)

	require.Equal(t, Normalize(good).Entries, Normalize(withBad).Entries)
	require.Equal(t, Normalize(good).Expirations, Normalize(withBad).Expirations)
}

func TestNormalize_OrderIndependent(t *testing.T) {
	base := sampleRecords()
	want := Normalize(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]RawOption(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Normalize(shuffled)
		require.Equal(t, want.Expirations, got.Expirations)
		require.Equal(t, want.Entries, got.Entries)
	}
}

func TestNormalize_SameSymbolDifferentQuotes(t *testing.T) {
	// Arrange
	a := RawOption{Symbol: "SPXW261231C06860000", Bid: f(1), Ask: f(3)}
	b := RawOption{Symbol: "SPXW261231C06860000", Bid: f(2), Ask: f(3)}
	c := RawOption{Symbol: "SPXW261231C06860000", Bid: f(2)}

	// Act
	orders := [][]RawOption{{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a}}
	want := Normalize(orders[0])

	// Assert
	for _, in := range orders[1:] {
		got := Normalize(in)
		require.Equal(t, want.Entries, got.Entries)
	}
	require.Len(t, want.Entries["2026-12-31"], 1)
}

func TestNormalize_Idempotent(t *testing.T) {
	a := Normalize(sampleRecords())
	b := Normalize(sampleRecords())
	require.Equal(t, a, b)
}

func TestNormalize_Empty(t *testing.T) {
	out := Normalize(nil)
	require.Empty(t, out.Expirations)
	require.NotNil(t, out.Expirations)
	require.Empty(t, out.Entries)
}

func TestBuild_JSONShape(t *testing.T) {
	snap := Build("CBOE", json.RawMessage(`6850.12`), json.RawMessage(`"2026-10-16 15:59:59"`), Normalize([]RawOption{
		{Symbol: "SPXW261231C06862500", Bid: f(10), Ask: f(12)},
	}))

	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Equal(t, "CBOE", doc["source"])
	require.Equal(t, 6850.12, doc["spot"])
	require.Equal(t, "2026-10-16 15:59:59", doc["timestamp"])
	require.Equal(t, []any{"2026-12-31"}, doc["expirations"])

	call := doc["chains"].(map[string]any)["2026-12-31"].(map[string]any)["6862.5"].(map[string]any)["call"].(map[string]any)
	require.Equal(t, 11.0, call["mid"])
	require.Nil(t, call["last"])
	require.Contains(t, call, "openInterest")
}

func TestBuild_NullEnvelopeFields(t *testing.T) {
	b, err := json.Marshal(Build("CBOE", nil, nil, Chains{}))
	require.NoError(t, err)
	require.JSONEq(t, `{"source":"CBOE","spot":null,"timestamp":null,"expirations":[],"chains":{}}`, string(b))
}
