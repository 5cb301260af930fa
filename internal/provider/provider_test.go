package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/provider"
	"optionsproxy/internal/upstream"
)

type stubProvider struct {
	name string
	res  *provider.Result
	err  error
	seen []provider.Query
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(_ context.Context, q provider.Query) (*provider.Result, error) {
	s.seen = append(s.seen, q)
	return s.res, s.err
}

func TestOutcome(t *testing.T) {
	require.Equal(t, metrics.OutcomeOK, provider.Outcome(nil))
	require.Equal(t, metrics.OutcomeHTTPError, provider.Outcome(&upstream.HTTPError{Status: 502}))
	require.Equal(t, metrics.OutcomeAuthError, provider.Outcome(&upstream.HTTPError{Status: 401}))
	require.Equal(t, metrics.OutcomeAuthError, provider.Outcome(&upstream.AuthAcquisitionError{Reason: "x"}))
	require.Equal(t, metrics.OutcomeTransport, provider.Outcome(&upstream.TransportError{Op: "get"}))
	require.Equal(t, metrics.OutcomeTransport, provider.Outcome(errors.New("boom")))
}

func TestInstrumented(t *testing.T) {
	m := metrics.New()
	stub := &stubProvider{name: "cboe", res: &provider.Result{Body: []byte(`{}`)}}
	p := &provider.Instrumented{P: stub, Metrics: m, Log: logger.Discard().WithComponent("test")}

	require.Equal(t, "cboe", p.Name())
	res, err := p.Fetch(context.Background(), provider.Query{Date: "1767139200"})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(res.Body))
	require.Equal(t, []provider.Query{{Date: "1767139200"}}, stub.seen)

	stub.res, stub.err = nil, &upstream.HTTPError{Source: "CBOE", Status: 503}
	_, err = p.Fetch(context.Background(), provider.Query{})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("cboe", metrics.OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("cboe", metrics.OutcomeHTTPError)))
}

func TestQueryKey(t *testing.T) {
	require.Equal(t, "default", provider.Query{}.Key())
	require.Equal(t, "date=1767139200", provider.Query{Date: "1767139200"}.Key())
}
