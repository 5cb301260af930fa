package provider

import (
	"context"
	"errors"
	"time"

	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/upstream"
)

// Query is what the caller asked for. Date is forwarded to the upstream
// untouched; empty means the provider's default expiration set.
type Query struct {
	Date string
}

// Key identifies the query within one provider, e.g. for caching.
func (q Query) Key() string {
	if q.Date == "" {
		return "default"
	}
	return "date=" + q.Date
}

// Result is an encoded JSON document ready to be written to the client.
type Result struct {
	Body []byte
}

// Provider fetches one options-chain document per call. Implementations
// return *upstream.HTTPError, *upstream.AuthAcquisitionError or
// *upstream.TransportError on failure.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// Instrumented counts outcomes and logs failed fetches.
type Instrumented struct {
	P       Provider
	Metrics *metrics.Metrics
	Log     *logger.Entry
}

func (i *Instrumented) Name() string { return i.P.Name() }

func (i *Instrumented) Fetch(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	res, err := i.P.Fetch(ctx, q)
	outcome := Outcome(err)
	i.Metrics.Upstream(i.P.Name(), outcome)
	if err != nil && i.Log != nil {
		i.Log.WithFields(logger.Fields{
			"provider":    i.P.Name(),
			"outcome":     outcome,
			"date":        q.Date,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1e3,
		}).WithError(err).Warn("upstream fetch failed")
	}
	return res, err
}

// Outcome classifies err into a metrics label.
func Outcome(err error) string {
	var (
		he *upstream.HTTPError
		ae *upstream.AuthAcquisitionError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &ae):
		return metrics.OutcomeAuthError
	case errors.As(err, &he):
		if he.Auth() {
			return metrics.OutcomeAuthError
		}
		return metrics.OutcomeHTTPError
	default:
		return metrics.OutcomeTransport
	}
}
