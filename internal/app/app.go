// Package app assembles the provider stack described by a config.Config.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"optionsproxy/internal/api"
	"optionsproxy/internal/chain"
	"optionsproxy/internal/config"
	"optionsproxy/internal/httpx"
	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/provider"
	"optionsproxy/internal/provider/cache"
	"optionsproxy/internal/provider/cboe"
	"optionsproxy/internal/provider/ratelimit"
	"optionsproxy/internal/provider/yahoo"
	"optionsproxy/internal/session"
)

// App owns everything a process needs to answer /api/options.
type App struct {
	Config   config.Config
	Log      *logger.Log
	Metrics  *metrics.Metrics
	Provider provider.Provider
	// Session is nil in direct mode.
	Session *session.Manager

	redis *redis.Client
}

// New wires upstream client, session manager, provider and decorators:
//
//	cache -> instrumented -> rate limit -> cboe | yahoo
func New(ctx context.Context, cfg config.Config, log *logger.Log) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	hc := httpx.New(time.Duration(cfg.Server.UpstreamTimeoutSec) * time.Second)
	parser := chain.NewParser(cfg.Upstream.Root)

	var p provider.Provider
	switch cfg.Upstream.Mode {
	case config.ModeDirect:
		p = cboe.New(cboe.Config{URL: cfg.CBOE.URL, Parser: parser}, hc, log)
	case config.ModeSession:
		a.Session = session.NewManager(cfg.Session.LandingURL, cfg.Session.CrumbURL,
			session.WithHTTPClient(hc),
			session.WithTTL(time.Duration(cfg.Session.TTLSec)*time.Second),
			session.WithLogger(log),
			session.WithMetrics(a.Metrics),
		)
		opts := []yahoo.Option{
			yahoo.WithBaseURL(cfg.Yahoo.OptionsURL),
			yahoo.WithHTTPClient(hc),
			yahoo.WithLogger(log),
		}
		if cfg.Upstream.Normalize {
			opts = append(opts, yahoo.WithNormalize(parser))
		}
		p = yahoo.New(a.Session, opts...)
	}

	p = ratelimit.New(p, cfg.Upstream.MaxRPS, cfg.Upstream.Burst)
	p = &provider.Instrumented{P: p, Metrics: a.Metrics, Log: log.WithComponent("provider")}

	if cfg.Cache.TTLSec > 0 {
		store, err := a.newStore(ctx)
		if err != nil {
			return nil, err
		}
		p = &cache.Provider{
			P:       p,
			Store:   store,
			TTL:     time.Duration(cfg.Cache.TTLSec) * time.Second,
			Metrics: a.Metrics,
			Log:     log.WithComponent("cache"),
		}
	}
	a.Provider = p

	log.WithComponent("app").WithFields(logger.Fields{
		"mode":      cfg.Upstream.Mode,
		"normalize": cfg.Upstream.Mode == config.ModeDirect || cfg.Upstream.Normalize,
		"root":      parser.Root(),
		"cache_ttl": cfg.Cache.TTLSec,
	}).Info("provider ready")
	return a, nil
}

func (a *App) newStore(ctx context.Context) (cache.Store, error) {
	if a.Config.Cache.RedisAddr == "" {
		size := a.Config.Cache.MaxItems
		if size <= 0 {
			size = 1
		}
		return cache.NewMemoryStore(uint(size)), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Cache.RedisAddr,
		Password: a.Config.Cache.RedisPassword,
		DB:       a.Config.Cache.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		_ = a.redis.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", a.Config.Cache.RedisAddr, err)
	}
	return cache.NewRedisStore(a.redis), nil
}

// Handler is the full HTTP surface.
func (a *App) Handler() http.Handler {
	h := api.NewHandler(a.Provider,
		api.WithLogger(a.Log),
		api.WithCacheControl(a.Config.Server.CacheMaxAgeSec, a.Config.Server.StaleWhileRevalidateSec),
	)
	return api.NewRouter(h, a.Metrics, a.Log)
}

// upstreamCalls is the most sequential upstream requests one client request
// can make: landing page, crumb, data.
const upstreamCalls = 3

// Server returns the HTTP server for Handler. WriteTimeout covers a full
// session acquisition plus the data fetch.
func (a *App) Server() *http.Server {
	upstreamTimeout := time.Duration(a.Config.Server.UpstreamTimeoutSec) * time.Second
	return &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      upstreamCalls*upstreamTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
