package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRoot is the underlying root used when none is configured.
const DefaultRoot = "SPX"

// OptionType is the side of a contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Contract is what an option symbol decodes to.
type Contract struct {
	Expiration string // YYYY-MM-DD
	Type       OptionType
	Strike     decimal.Decimal
}

// ParseError explains why a symbol was rejected. Callers drop the record.
type ParseError struct {
	Symbol string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse option symbol %q: %s", e.Symbol, e.Reason)
}

// Parser decodes symbols of the form ROOT[W]YYMMDD{C|P}SSSSSSSS where the
// strike field is an integer scaled by 1000. The zero value parses SPX.
type Parser struct {
	root string
	re   *regexp.Regexp
}

// NewParser returns a parser for the given underlying root, e.g. "SPX".
func NewParser(root string) *Parser {
	if root == "" {
		root = DefaultRoot
	}
	return &Parser{
		root: root,
		re:   regexp.MustCompile(regexp.QuoteMeta(root) + `W?(\d{6})([CP])(\d{8})`),
	}
}

var defaultParser = NewParser(DefaultRoot)

// Root is the underlying this parser accepts.
func (p *Parser) Root() string {
	if p.re == nil {
		return defaultParser.root
	}
	return p.root
}

// ParseSymbol parses with the default SPX root.
func ParseSymbol(symbol string) (Contract, error) { return defaultParser.Parse(symbol) }

// Parse decodes symbol. The pattern may appear anywhere in the string, so
// prefixed encodings such as "O:SPXW261231C06860000" are accepted.
func (p *Parser) Parse(symbol string) (Contract, error) {
	if p.re == nil {
		p = defaultParser
	}
	if symbol == "" {
		return Contract{}, &ParseError{Symbol: symbol, Reason: "empty"}
	}
	m := p.re.FindStringSubmatch(symbol)
	if m == nil {
		return Contract{}, &ParseError{Symbol: symbol, Reason: "does not match " + p.root + "[W]YYMMDD{C|P}SSSSSSSS"}
	}
	dateStr, flag, strikeStr := m[1], m[2], m[3]

	yy, _ := strconv.Atoi(dateStr[0:2])
	mm, _ := strconv.Atoi(dateStr[2:4])
	dd, _ := strconv.Atoi(dateStr[4:6])
	expiry := fmt.Sprintf("%04d-%02d-%02d", 2000+yy, mm, dd)
	if _, err := time.Parse(time.DateOnly, expiry); err != nil {
		return Contract{}, &ParseError{Symbol: symbol, Reason: "invalid expiration " + dateStr}
	}

	scaled, _ := strconv.ParseInt(strikeStr, 10, 64)

	typ := Call
	if flag == "P" {
		typ = Put
	}
	return Contract{
		Expiration: expiry,
		Type:       typ,
		Strike:     decimal.New(scaled, -3),
	}, nil
}

// StrikeKey renders a strike the way it appears as a JSON object key:
// shortest decimal form, no trailing zeros ("6860", "6862.5").
func StrikeKey(strike decimal.Decimal) string { return strike.String() }
