package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head>
  <title>Forecast</title>
  <script type="application/ld+json">{"temperature": 7, "humidity": 81}</script>
  <script>var tracking = {"temperature": 1000};</script>
  <style>.temp { color: red; }</style>
</head>
<body>
  <nav>Home | Maps | News</nav>
  <div class="now">
    <span class="temp">+7°</span>
    <span class="cond">Light rain</span>
  </div>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func newTestExtractor() *HTTPExtractor {
	return NewHTTPExtractor(Config{
		Client: &http.Client{Timeout: 2 * time.Second},
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
}

func TestExtractReturnsJSONVerbatim(t *testing.T) {
	body := `{"current": {"temp_c": 3.5}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	got, err := newTestExtractor().Extract(context.Background(), srv.URL, "ignored")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestExtractReducesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	got, err := newTestExtractor().Extract(context.Background(), srv.URL, "Extract the weather")
	require.NoError(t, err)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"temperature": 7, "humidity": 81}`, lines[0])
	assert.Equal(t, "Home | Maps | News +7° Light rain", lines[1])
	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "Enable JavaScript")
}

func TestExtractHonoursSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	got, err := newTestExtractor().Extract(context.Background(), srv.URL, "css: .now")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(got, "\n+7° Light rain"), got)
	assert.NotContains(t, got, "Maps")
}

func TestExtractRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	got, err := newTestExtractor().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExtractGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errServerError))
	assert.Equal(t, int32(3), calls.Load())
}

func TestExtractDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestExtractor().Extract(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnexpected))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtractOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPExtractor(Config{
		Backoff: BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond},
	})
	for i := 0; i < 5; i++ {
		_, err := e.Extract(context.Background(), srv.URL, "")
		require.Error(t, err)
	}

	_, err := e.Extract(context.Background(), srv.URL, "")
	assert.True(t, errors.Is(err, errCircuitOpen))
	assert.Equal(t, int32(5), calls.Load())
}

func TestExtractRejectsBadLocator(t *testing.T) {
	_, err := newTestExtractor().Extract(context.Background(), "not a url", "")
	assert.Error(t, err)
}

func TestExtractHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestExtractor().Extract(ctx, srv.URL, "")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoffDelay(t *testing.T) {
	b := BackoffConfig{MaxRetries: 5, InitialInterval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 300*time.Millisecond, b.delay(2))
	assert.Equal(t, 300*time.Millisecond, b.delay(10))
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(http.StatusOK))
	assert.NoError(t, statusError(http.StatusNoContent))
	assert.ErrorIs(t, statusError(http.StatusTooManyRequests), errRateLimited)
	assert.ErrorIs(t, statusError(http.StatusBadGateway), errServerError)
	assert.ErrorIs(t, statusError(http.StatusForbidden), errUnexpected)
	assert.ErrorIs(t, statusError(http.StatusMovedPermanently), errUnexpected)
}

func TestExtractRetriesWaitForLimiter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// One token per 100ms with no burst headroom: three attempts need at
	// least 200ms even though the backoff itself is negligible.
	e := NewHTTPExtractor(Config{
		RateLimit: 10,
		Burst:     1,
		Backoff:   BackoffConfig{MaxRetries: 2, InitialInterval: time.Microsecond},
	})

	start := time.Now()
	_, err := e.Extract(context.Background(), srv.URL, "")
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
