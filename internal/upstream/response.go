package upstream

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
)

// MaxBody caps how much of an upstream document is read. Full SPX chains run
// to a few tens of megabytes.
const MaxBody = 64 << 20

var errNotJSON = errors.New("response is not JSON")

// ReadJSON drains res and returns its body when the status is 2xx and the
// body is well-formed JSON. A non-2xx status yields *HTTPError carrying a
// truncated body; anything else yields *TransportError.
func ReadJSON(source string, res *http.Response) ([]byte, error) {
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, MaxBody))
	if err != nil {
		return nil, &TransportError{Op: "read " + source + " response", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, NewHTTPError(source, res.StatusCode, b)
	}
	if !json.Valid(b) {
		return nil, &TransportError{Op: "decode " + source + " response", Err: errNotJSON}
	}
	return b, nil
}

// Doer is the subset of *http.Client every upstream call needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Do sends req through c, mapping network failures to *TransportError. The
// request URL is not part of the error.
func Do(c Doer, source string, req *http.Request) (*http.Response, error) {
	res, err := c.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch " + source, Err: StripURL(err)}
	}
	return res, nil
}

// StripURL unwraps *url.Error so the request URL, and any credentials in
// its query, never reach an error message.
func StripURL(err error) error {
	var ue *url.Error
	for errors.As(err, &ue) {
		err = ue.Err
	}
	return err
}
