// Package cboe reads the CBOE delayed-quotes feed. It needs no session and
// always returns a normalized chain.
package cboe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"optionsproxy/internal/chain"
	"optionsproxy/internal/logger"
	"optionsproxy/internal/provider"
	"optionsproxy/internal/upstream"
)

const (
	DefaultURL = "https://cdn.cboe.com/api/global/delayed_quotes/options/_SPX.json"
	// Source names the feed in snapshots and error messages.
	Source = "CBOE"
)

type Config struct {
	Name    string
	URL     string
	Headers map[string]string
	Parser  *chain.Parser
}

type Provider struct {
	cfg    Config
	client upstream.Doer
	log    *logger.Entry
}

func New(cfg Config, hc upstream.Doer, log *logger.Log) *Provider {
	if cfg.Name == "" {
		cfg.Name = "cboe"
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Parser == nil {
		cfg.Parser = chain.NewParser(chain.DefaultRoot)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Provider{cfg: cfg, client: hc, log: log.WithComponent("cboe")}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, q provider.Query) (*provider.Result, error) {
	target, err := withDate(p.cfg.URL, q.Date)
	if err != nil {
		return nil, fmt.Errorf("building cboe url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}

	res, err := upstream.Do(p.client, Source, req)
	if err != nil {
		return nil, err
	}
	body, err := upstream.ReadJSON(Source, res)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &upstream.TransportError{Op: "decode CBOE payload", Err: err}
	}
	if env.Data == nil {
		return nil, &upstream.TransportError{Op: "decode CBOE payload", Err: errNoData}
	}

	raw := make([]chain.RawOption, 0, len(env.Data.Options))
	for _, o := range env.Data.Options {
		if o.Option == "" {
			continue
		}
		raw = append(raw, chain.RawOption{
			Symbol:       o.Option,
			Bid:          o.Bid,
			Ask:          o.Ask,
			Last:         o.LastTradePrice,
			IV:           o.IV,
			Delta:        o.Delta,
			Volume:       o.Volume,
			OpenInterest: o.OpenInterest,
		})
	}
	chains := p.cfg.Parser.Normalize(raw)
	if chains.Skipped > 0 {
		p.log.WithFields(logger.Fields{"skipped": chains.Skipped, "records": len(raw)}).Debug("dropped unparseable option symbols")
	}

	out, err := json.Marshal(chain.Build(Source, env.Data.CurrentPrice, env.Data.LastTradeTime, chains))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return &provider.Result{Body: out}, nil
}

func withDate(raw, date string) (string, error) {
	if date == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
