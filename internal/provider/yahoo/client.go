// Package yahoo reads option chains from Yahoo Finance, which wants a
// session cookie plus a crumb on every data request.
package yahoo

import (
	"context"
	"net/http"

	"optionsproxy/internal/chain"
	"optionsproxy/internal/logger"
	"optionsproxy/internal/session"
)

const (
	DefaultURL = "https://query2.finance.yahoo.com/v7/finance/options/%5ESPX"
	// Source is used in upstream error messages.
	Source = "Yahoo Finance"
	// SnapshotSource labels normalized documents.
	SnapshotSource = "Yahoo"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_client_test.go -source=client.go
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials hands out sessions and drops them when Yahoo rejects one.
// *session.Manager implements it.
type Credentials interface {
	Get(ctx context.Context) (session.Session, error)
	Invalidate()
}

// Provider fetches the options envelope for one underlying.
type Provider struct {
	// baseURL is the options endpoint, without crumb or date.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// credentials supplies cookie + crumb.
	credentials Credentials
	// parser is set when the envelope should be normalized instead of
	// passed through.
	parser *chain.Parser
	name   string
	log    *logger.Entry
}

// Option is a configuration option for the Yahoo provider.
type Option func(*Provider)

// WithBaseURL sets the options endpoint.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(p *Provider) {
		for key, values := range header {
			for _, value := range values {
				p.header.Add(key, value)
			}
		}
	}
}

// WithNormalize makes Fetch return a normalized chain built with parser
// instead of the raw envelope.
func WithNormalize(parser *chain.Parser) Option {
	return func(p *Provider) {
		p.parser = parser
	}
}

// WithName overrides the provider name used in logs and metrics.
func WithName(name string) Option {
	return func(p *Provider) {
		p.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Log) Option {
	return func(p *Provider) {
		p.log = l.WithComponent("yahoo")
	}
}

// New creates a Yahoo provider that authenticates through credentials.
func New(credentials Credentials, options ...Option) *Provider {
	var p = &Provider{
		baseURL:     DefaultURL,
		httpClient:  http.DefaultClient,
		header:      http.Header{},
		credentials: credentials,
		name:        "yahoo",
		log:         logger.GetLogger().WithComponent("yahoo"),
	}
	p.header.Set("Accept", "application/json")
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }
