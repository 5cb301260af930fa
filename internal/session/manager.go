// Package session keeps the cookie + crumb credential a session-protected
// quote provider requires. Sessions are acquired lazily, shared by concurrent
// requests until they expire, and dropped on demand when the provider rejects
// them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"optionsproxy/internal/logger"
	"optionsproxy/internal/metrics"
	"optionsproxy/internal/upstream"
)

// DefaultTTL is how long an acquired session is reused.
const DefaultTTL = 5 * time.Minute

// maxCrumbLen is a sanity bound; anything longer is an error page.
const maxCrumbLen = 50

// Session is an acquired cookie/crumb pair. The zero value is empty.
type Session struct {
	cookie    string
	crumb     string
	expiresAt time.Time
}

// New builds a session from parts obtained elsewhere.
func New(cookie, crumb string, expiresAt time.Time) Session {
	return Session{cookie: cookie, crumb: crumb, expiresAt: expiresAt}
}

func (s Session) Cookie() string       { return s.cookie }
func (s Session) Crumb() string        { return s.crumb }
func (s Session) ExpiresAt() time.Time { return s.expiresAt }

// Valid reports whether the session can still be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.crumb != "" && now.Before(s.expiresAt)
}

// Apply attaches the credential to an outgoing request: the cookie as a
// header and the crumb as a query parameter.
func (s Session) Apply(req *http.Request) {
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
	q := req.URL.Query()
	q.Set("crumb", s.crumb)
	req.URL.RawQuery = q.Encode()
}

// Manager acquires, caches and invalidates sessions.
type Manager struct {
	landingURL string
	crumbURL   string
	ttl        time.Duration
	httpClient HTTPClient
	cookies    CookieSource
	now        func() time.Time
	log        *logger.Entry
	metrics    *metrics.Metrics

	current atomic.Pointer[Session]
	// gen is bumped by Invalidate; an acquisition started under an older
	// generation does not publish its result.
	gen   atomic.Uint64
	mu    sync.Mutex // serializes publish against Invalidate
	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

func WithHTTPClient(c HTTPClient) Option { return func(m *Manager) { m.httpClient = c } }

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithCookieSource(src CookieSource) Option { return func(m *Manager) { m.cookies = src } }

func WithLogger(l *logger.Log) Option {
	return func(m *Manager) { m.log = l.WithComponent("session") }
}

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// NewManager returns a Manager that reads cookies from landingURL and the
// crumb from crumbURL.
func NewManager(landingURL, crumbURL string, opts ...Option) *Manager {
	m := &Manager{
		landingURL: landingURL,
		crumbURL:   crumbURL,
		ttl:        DefaultTTL,
		httpClient: http.DefaultClient,
		cookies:    HeaderCookies,
		now:        time.Now,
		log:        logger.GetLogger().WithComponent("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a valid session, acquiring one if none is cached. Concurrent
// callers share a single acquisition. A caller whose ctx ends stops waiting
// but does not cancel the acquisition others may be waiting on.
func (m *Manager) Get(ctx context.Context) (Session, error) {
	if s := m.current.Load(); s != nil && s.Valid(m.now()) {
		return *s, nil
	}

	gen := m.gen.Load()
	ch := m.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		// Another flight may have published while we queued.
		if s := m.current.Load(); s != nil && s.Valid(m.now()) {
			return *s, nil
		}
		s, err := m.acquire(context.WithoutCancel(ctx))
		if err != nil {
			m.metrics.Acquisition(false)
			m.log.WithError(err).Warn("session acquisition failed")
			return nil, err
		}
		m.metrics.Acquisition(true)
		m.publish(gen, s)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return Session{}, &upstream.TransportError{Op: "wait for session", Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return Session{}, r.Err
		}
		return r.Val.(Session), nil
	}
}

// Invalidate drops the cached session. The next Get performs a full
// acquisition even inside the original validity window.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.gen.Add(1)
	had := m.current.Swap(nil) != nil
	m.mu.Unlock()

	m.metrics.Invalidation()
	m.log.WithField("had_session", had).Info("session invalidated")
}

func (m *Manager) publish(gen uint64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen.Load() != gen {
		m.log.Debug("discarding session acquired before invalidation")
		return
	}
	m.current.Store(&s)
	m.log.WithField("expires_at", s.expiresAt.Format(time.RFC3339)).Info("session acquired")
}

func (m *Manager) acquire(ctx context.Context) (Session, error) {
	cookie, err := m.fetchCookie(ctx)
	if err != nil {
		return Session{}, err
	}
	crumb, err := m.fetchCrumb(ctx, cookie)
	if err != nil {
		return Session{}, err
	}
	return Session{cookie: cookie, crumb: crumb, expiresAt: m.now().Add(m.ttl)}, nil
}

// fetchCookie loads the landing page for its Set-Cookie headers. The landing
// page status is not checked: it only has to hand out cookies.
func (m *Manager) fetchCookie(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.landingURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating landing request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return "", &upstream.TransportError{Op: "fetch landing page", Err: upstream.StripURL(err)}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))

	return JoinCookies(m.cookies.SetCookies(res)), nil
}

func (m *Manager) fetchCrumb(ctx context.Context, cookie string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.crumbURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating crumb request: %w", err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	res, err := m.httpClient.Do(req)
	if err != nil {
		return "", &upstream.TransportError{Op: "fetch crumb", Err: upstream.StripURL(err)}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return "", &upstream.TransportError{Op: "read crumb", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &upstream.AuthAcquisitionError{Reason: "crumb endpoint rejected request", Status: res.StatusCode}
	}

	crumb := strings.TrimSpace(string(b))
	if err := ValidateCrumb(crumb); err != nil {
		return "", &upstream.AuthAcquisitionError{Reason: "invalid crumb", Err: err}
	}
	return crumb, nil
}

var (
	errEmptyCrumb = errors.New("empty")
	errLongCrumb  = errors.New("too long")
	errHTMLCrumb  = errors.New("looks like an HTML page")
)

// ValidateCrumb applies the sanity checks a real crumb always passes.
func ValidateCrumb(crumb string) error {
	switch {
	case crumb == "":
		return errEmptyCrumb
	case len(crumb) >= maxCrumbLen:
		return errLongCrumb
	case strings.Contains(crumb, "<"):
		return errHTMLCrumb
	}
	return nil
}

// JoinCookies strips attributes from each Set-Cookie value and joins the
// name=value pairs into one Cookie header.
func JoinCookies(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, sc := range setCookies {
		pair, _, _ := strings.Cut(sc, ";")
		if pair = strings.TrimSpace(pair); pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; ")
}
