package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

const testAgent = "Mozilla/5.0 (test)"

func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	f := New(Config{UserAgent: testAgent, Timeout: time.Second}, nil)
	page, err := f.Fetch(context.Background(), server.URL+"/title/tt1/")
	require.NoError(t, err)

	assert.Equal(t, testAgent, <-seen)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, server.URL+"/title/tt1/", page.URL)
	assert.Contains(t, string(page.Body), "ok")
}

func TestFetchRevisitsSameURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("again"))
	}))
	defer server.Close()

	f := New(Config{UserAgent: testAgent}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}
}

func TestFetchPassesNon2xxThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>gone</html>"))
	}))
	defer server.Close()

	f := New(Config{UserAgent: testAgent, Timeout: time.Second}, nil)
	page, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Contains(t, string(page.Body), "gone")
}

func TestFetchFailOnStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(Config{UserAgent: testAgent, Timeout: time.Second, FailOnStatus: true}, nil)
	_, err := f.Fetch(context.Background(), server.URL)

	var fe *scraper.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, scraper.ReasonHTTPStatus, fe.Reason)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	f := New(Config{UserAgent: testAgent, Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), addr)

	var fe *scraper.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, scraper.ReasonNetwork, fe.Reason)
	assert.Equal(t, addr, fe.URL)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := New(Config{UserAgent: testAgent, Timeout: 50 * time.Millisecond}, nil)
	_, err := f.Fetch(context.Background(), server.URL)

	var fe *scraper.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, scraper.ReasonTimeout, fe.Reason)
}

func TestFetchContextCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	f := New(Config{UserAgent: testAgent, Timeout: 5 * time.Second}, nil)
	_, err := f.Fetch(ctx, server.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchCancellationAbortsInFlightRequest(t *testing.T) {
	t.Parallel()

	aborted := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(aborted)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(Config{UserAgent: testAgent, Timeout: 30 * time.Second}, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.Fetch(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("request still open after the fetch context was canceled")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: testAgent}, nil)
	var result scraper.RawPage
	var fetchErr *scraper.FetchError

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://example.com/a", &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	req := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(req)
	assert.Equal(t, testAgent, req.Headers.Get("User-Agent"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/a")},
	})
	assert.Equal(t, scraper.RawPage{URL: "https://example.com/a", StatusCode: http.StatusOK, Body: []byte("body")}, result)

	hooks.onError(&colly.Response{}, errors.New("boom"))
	require.NotNil(t, fetchErr)
	assert.Equal(t, scraper.ReasonNetwork, fetchErr.Reason)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, scraper.ReasonTimeout, classify("u", nil, context.DeadlineExceeded).Reason)
	assert.Equal(t, scraper.ReasonNetwork, classify("u", nil, context.Canceled).Reason)
	assert.Equal(t, scraper.ReasonHTTPStatus, classify("u", &colly.Response{StatusCode: 500}, errors.New("x")).Reason)
	assert.Error(t, classify("u", nil, nil).Err)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
