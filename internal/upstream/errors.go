// Package upstream holds the failure taxonomy shared by every component that
// talks to a market-data provider.
package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxDetail bounds how much of an upstream error body is echoed back.
const maxDetail = 200

// HTTPError is returned when an upstream answered with a non-2xx status.
type HTTPError struct {
	Source string
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Source, e.Status)
}

// Auth reports whether the status rejects the credentials that were sent.
func (e *HTTPError) Auth() bool { return IsAuthStatus(e.Status) }

// NewHTTPError builds an HTTPError with a truncated copy of body.
func NewHTTPError(source string, status int, body []byte) *HTTPError {
	return &HTTPError{Source: source, Status: status, Detail: Truncate(string(body), maxDetail)}
}

// AuthAcquisitionError means a usable cookie/crumb pair could not be obtained.
type AuthAcquisitionError struct {
	Reason string
	Status int // upstream status when the failure was a non-2xx response
	Err    error
}

func (e *AuthAcquisitionError) Error() string {
	var b strings.Builder
	b.WriteString("acquire session: ")
	b.WriteString(e.Reason)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthAcquisitionError) Unwrap() error { return e.Err }

// TransportError covers network failures, timeouts and bodies that are not
// the JSON document the caller expected.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthStatus is true for statuses that mean "your session was rejected".
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsAuthFailure reports whether err carries an authentication-class upstream status.
func IsAuthFailure(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Auth()
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
