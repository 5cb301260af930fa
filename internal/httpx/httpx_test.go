package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_FillsMissingHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	c := New(time.Second)
	c.Headers = map[string]string{"Accept": "application/json"}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, BrowserUserAgent, gotUA)
	require.Equal(t, "application/json", gotAccept)
}

func TestDo_KeepsCallerHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1.0")
	resp, err := New(0).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "custom/1.0", gotUA)
}

func TestNew_DefaultTimeout(t *testing.T) {
	require.Equal(t, DefaultTimeout, New(0).HTTP.Timeout)
	require.Equal(t, 2*time.Second, New(2*time.Second).HTTP.Timeout)
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := New(20 * time.Millisecond).Do(req)
	require.Error(t, err)
}
