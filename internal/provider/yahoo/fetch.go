package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"optionsproxy/internal/chain"
	"optionsproxy/internal/logger"
	"optionsproxy/internal/provider"
	"optionsproxy/internal/upstream"
)

var errNoResult = errors.New("optionChain.result is empty")

// Fetch obtains a session, requests the chain and returns the envelope, or
// a normalized snapshot when configured. An authentication-class status
// invalidates the session before the error is returned; the next request
// starts from a fresh session.
func (p *Provider) Fetch(ctx context.Context, q provider.Query) (*provider.Result, error) {
	sess, err := p.credentials.Get(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing yahoo url: %w", err)
	}
	if q.Date != "" {
		query := u.Query()
		query.Set("date", q.Date)
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = p.header.Clone()
	sess.Apply(req)

	res, err := upstream.Do(p.httpClient, Source, req)
	if err != nil {
		return nil, err
	}
	body, err := upstream.ReadJSON(Source, res)
	if err != nil {
		if upstream.IsAuthFailure(err) {
			p.log.WithField("status", res.StatusCode).Warn("session rejected, invalidating")
			p.credentials.Invalidate()
		}
		return nil, err
	}

	if p.parser == nil {
		return &provider.Result{Body: body}, nil
	}
	return p.normalize(body)
}

func (p *Provider) normalize(body []byte) (*provider.Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &upstream.TransportError{Op: "decode Yahoo Finance payload", Err: err}
	}
	if len(env.OptionChain.Result) == 0 {
		return nil, &upstream.TransportError{Op: "decode Yahoo Finance payload", Err: errNoResult}
	}
	result := env.OptionChain.Result[0]

	var raw []chain.RawOption
	for _, set := range result.Options {
		for _, c := range set.Calls {
			raw = append(raw, c.raw())
		}
		for _, c := range set.Puts {
			raw = append(raw, c.raw())
		}
	}
	chains := p.parser.Normalize(raw)
	if chains.Skipped > 0 {
		p.log.WithFields(logger.Fields{"skipped": chains.Skipped, "records": len(raw)}).Debug("dropped unparseable option symbols")
	}

	out, err := json.Marshal(chain.Build(SnapshotSource, result.Quote.RegularMarketPrice, result.Quote.RegularMarketTime, chains))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return &provider.Result{Body: out}, nil
}

// {
//   "optionChain": {
//     "result": [{
//       "underlyingSymbol": "^SPX",
//       "quote": {"regularMarketPrice": 6850.12, "regularMarketTime": 1792180800},
//       "options": [{"expirationDate": 1798675200, "calls": [...], "puts": [...]}]
//     }],
//     "error": null
//   }
// }
type envelope struct {
	OptionChain struct {
		Result []struct {
			Quote struct {
				RegularMarketPrice json.RawMessage `json:"regularMarketPrice"`
				RegularMarketTime  json.RawMessage `json:"regularMarketTime"`
			} `json:"quote"`
			Options []struct {
				Calls []contract `json:"calls"`
				Puts  []contract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
	} `json:"optionChain"`
}

type contract struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	LastPrice         *float64 `json:"lastPrice"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
	Volume            *float64 `json:"volume"`
	OpenInterest      *float64 `json:"openInterest"`
}

// Yahoo publishes no greeks, so Delta stays nil.
func (c contract) raw() chain.RawOption {
	return chain.RawOption{
		Symbol:       c.ContractSymbol,
		Bid:          c.Bid,
		Ask:          c.Ask,
		Last:         c.LastPrice,
		IV:           c.ImpliedVolatility,
		Volume:       c.Volume,
		OpenInterest: c.OpenInterest,
	}
}
