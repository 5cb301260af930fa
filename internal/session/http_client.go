package session

import "net/http"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=session_test -destination=mock_http_client_test.go -source=http_client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CookieSource extracts the raw Set-Cookie header values from a landing-page
// response. Runtimes that fold repeated headers differently can plug in their
// own.
type CookieSource interface {
	SetCookies(resp *http.Response) []string
}

// CookieSourceFunc adapts a function to CookieSource.
type CookieSourceFunc func(resp *http.Response) []string

func (f CookieSourceFunc) SetCookies(resp *http.Response) []string { return f(resp) }

// HeaderCookies reads every Set-Cookie header as sent.
var HeaderCookies CookieSource = CookieSourceFunc(func(resp *http.Response) []string {
	return resp.Header.Values("Set-Cookie")
})
