package cache

import (
	"context"
	"time"

	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/provider"
)

// Provider caches successful documents per (provider, query) for a TTL.
// Failures are never cached, so an auth error is retried by the next request.
type Provider struct {
	P       provider.Provider
	Store   Store
	TTL     time.Duration
	Metrics *metrics.Metrics
	Log     *logger.Entry
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) Fetch(ctx context.Context, q provider.Query) (*provider.Result, error) {
	if c.Store == nil || c.TTL <= 0 {
		return c.P.Fetch(ctx, q)
	}

	key := c.P.Name() + ":" + q.Key()
	body, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		c.warn(err, key, "cache read failed")
	}
	if ok {
		c.Metrics.CacheLookup(true)
		return &provider.Result{Body: body}, nil
	}
	c.Metrics.CacheLookup(false)

	res, err := c.P.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Set(ctx, key, res.Body, c.TTL); err != nil {
		c.warn(err, key, "cache write failed")
	}
	return res, nil
}

func (c *Provider) warn(err error, key, msg string) {
	if c.Log != nil {
		c.Log.WithField("key", key).WithError(err).Warn(msg)
	}
}
