package chain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Chains is the output of Normalize.
type Chains struct {
	Expirations []string
	Entries     map[string]map[string]ChainEntry
	// Skipped counts records whose symbol did not parse.
	Skipped int
}

// Normalize uses the default SPX parser.
func Normalize(raw []RawOption) Chains { return defaultParser.Normalize(raw) }

// Normalize folds raw records into expiration -> strike -> entry.
//
// Records whose symbol does not parse are dropped. The result does not depend
// on input order: when two records land on the same (expiration, strike, side)
// the one with the greater symbol wins, so e.g. an SPXW weekly beats the SPX
// monthly sharing its expiry. Records with equal symbols are ranked by their
// numbers.
func (p *Parser) Normalize(raw []RawOption) Chains {
	out := Chains{
		Expirations: []string{},
		Entries:     make(map[string]map[string]ChainEntry),
	}

	type slot struct {
		expiry, strike string
		typ            OptionType
	}
	winner := make(map[slot]string, len(raw))

	for _, r := range raw {
		c, err := p.Parse(r.Symbol)
		if err != nil {
			out.Skipped++
			continue
		}
		strike := StrikeKey(c.Strike)
		key := slot{c.Expiration, strike, c.Type}
		rank := rankKey(r)
		if prev, ok := winner[key]; ok && prev >= rank {
			continue
		}
		winner[key] = rank

		byStrike, ok := out.Entries[c.Expiration]
		if !ok {
			byStrike = make(map[string]ChainEntry)
			out.Entries[c.Expiration] = byStrike
		}
		entry := byStrike[strike]
		q := NewQuote(r)
		if c.Type == Call {
			entry.Call = &q
		} else {
			entry.Put = &q
		}
		byStrike[strike] = entry
	}

	for expiry := range out.Entries {
		out.Expirations = append(out.Expirations, expiry)
	}
	sort.Strings(out.Expirations)
	return out
}

// rankKey orders records by symbol first, then by every numeric field, so
// any two distinct records compare unequal.
func rankKey(r RawOption) string {
	var b strings.Builder
	b.WriteString(r.Symbol)
	for _, v := range []*float64{r.Bid, r.Ask, r.Last, r.IV, r.Delta, r.Volume, r.OpenInterest} {
		b.WriteByte(0)
		if v == nil {
			b.WriteByte('-')
			continue
		}
		b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
	}
	return b.String()
}

// Build assembles the response document. spot and timestamp are copied from
// the upstream envelope as-is; nil renders as null.
func Build(source string, spot, timestamp json.RawMessage, c Chains) Snapshot {
	exp := c.Expirations
	if exp == nil {
		exp = []string{}
	}
	entries := c.Entries
	if entries == nil {
		entries = map[string]map[string]ChainEntry{}
	}
	return Snapshot{
		Source:      source,
		Spot:        nullIfEmpty(spot),
		Timestamp:   nullIfEmpty(timestamp),
		Expirations: exp,
		Chains:      entries,
	}
}

func nullIfEmpty(m json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("null")
	}
	return m
}
