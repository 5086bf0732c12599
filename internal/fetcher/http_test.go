package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetcher.PerHostMinInterval = 0
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func mustTask(t *testing.T, rawURL string) *types.CrawlTask {
	t.Helper()
	task, err := types.NewCrawlTask(rawURL, 1, 1)
	if err != nil {
		t.Fatalf("NewCrawlTask(%q): %v", rawURL, err)
	}
	return task
}

func TestFetchOK(t *testing.T) {
	const body = "<html><head><title>Hello</title></head><body>world</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL+"/page"))

	if !outcome.OK() {
		t.Fatalf("status = %q (err %v), want ok", outcome.Status, outcome.Err)
	}
	if outcome.HTTPCode != 200 {
		t.Errorf("code = %d", outcome.HTTPCode)
	}
	if string(outcome.Body) != body {
		t.Errorf("body = %q", outcome.Body)
	}
	if outcome.ContentType != "text/html" {
		t.Errorf("content type = %q", outcome.ContentType)
	}
	if outcome.FinalURL != srv.URL+"/page" {
		t.Errorf("final url = %q", outcome.FinalURL)
	}
	if outcome.Elapsed <= 0 {
		t.Errorf("elapsed = %v, want > 0", outcome.Elapsed)
	}
}

func TestFetchDecompressesGzip(t *testing.T) {
	const body = "<html><body>compressed content here</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Error("gzip not advertised in Accept-Encoding")
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(body))
		zw.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

	if !outcome.OK() {
		t.Fatalf("status = %q (err %v)", outcome.Status, outcome.Err)
	}
	if string(outcome.Body) != body {
		t.Errorf("body = %q, want decompressed content", outcome.Body)
	}
}

func TestFetchDecompressesBrotli(t *testing.T) {
	const body = "<html><body>brotli compressed</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(body))
		bw.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

	if !outcome.OK() {
		t.Fatalf("status = %q (err %v)", outcome.Status, outcome.Err)
	}
	if string(outcome.Body) != body {
		t.Errorf("body = %q", outcome.Body)
	}
}

func TestFetchHTTPErrors(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		retryAfter    string
		wantKind      string
		wantRetryable bool
	}{
		{"not found", 404, "", types.KindHTTP4xx, false},
		{"rate limited retries after spacing", 429, "3", types.KindHTTP4xx, true},
		{"server error", 500, "", types.KindHTTP5xx, true},
		{"unavailable with retry-after", 503, "1", types.KindHTTP5xx, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.code)
				io.WriteString(w, "nope")
			}))
			defer srv.Close()

			f := newTestFetcher(t, testConfig())
			outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

			if outcome.Status != types.StatusHTTPError {
				t.Fatalf("status = %q, want http-error", outcome.Status)
			}
			if outcome.HTTPCode != tt.code {
				t.Errorf("code = %d, want %d", outcome.HTTPCode, tt.code)
			}
			if outcome.ErrorKind != tt.wantKind {
				t.Errorf("kind = %q, want %q", outcome.ErrorKind, tt.wantKind)
			}
			if outcome.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", outcome.Retryable, tt.wantRetryable)
			}

			var fetchErr *types.FetchError
			if !errors.As(outcome.Err, &fetchErr) {
				t.Fatalf("outcome.Err %T is not a *types.FetchError", outcome.Err)
			}
			if fetchErr.StatusCode != tt.code {
				t.Errorf("FetchError.StatusCode = %d", fetchErr.StatusCode)
			}
		})
	}
}

func TestFetchCarriesRetryAfter(t *testing.T) {
	for _, code := range []int{429, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(code)
		}))

		f := newTestFetcher(t, testConfig())
		outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))
		srv.Close()

		if outcome.RetryAfter != 2*time.Second {
			t.Errorf("HTTP %d: RetryAfter = %v, want 2s", code, outcome.RetryAfter)
		}
	}
}

func TestFetchUnsupportedContentType(t *testing.T) {
	tests := []struct {
		name string
		set  func(http.ResponseWriter)
	}{
		{"pdf", func(w http.ResponseWriter) { w.Header().Set("Content-Type", "application/pdf") }},
		{"json", func(w http.ResponseWriter) { w.Header().Set("Content-Type", "application/json") }},
		{"missing header", func(w http.ResponseWriter) { w.Header()["Content-Type"] = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.set(w)
				io.WriteString(w, "payload")
			}))
			defer srv.Close()

			f := newTestFetcher(t, testConfig())
			outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

			if outcome.Status != types.StatusUnsupportedType {
				t.Fatalf("status = %q, want unsupported-type", outcome.Status)
			}
			if outcome.ErrorKind != types.KindUnsupported {
				t.Errorf("kind = %q", outcome.ErrorKind)
			}
			if outcome.Retryable {
				t.Error("unsupported type must not be retryable")
			}
		})
	}
}

func TestFetchXHTMLAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xhtml+xml")
		io.WriteString(w, "<html><body>x</body></html>")
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	if outcome := f.Fetch(context.Background(), mustTask(t, srv.URL)); !outcome.OK() {
		t.Errorf("status = %q, want ok for xhtml", outcome.Status)
	}
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(bytes.Repeat([]byte("a"), 256))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.MaxBytesPerPage = 128
	f := newTestFetcher(t, cfg)
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

	if outcome.Status != types.StatusTooLarge {
		t.Fatalf("status = %q, want too-large", outcome.Status)
	}
	if outcome.Retryable {
		t.Error("too-large must not be retryable")
	}
}

func TestFetchTooLargeMeasuresDecompressedBytes(t *testing.T) {
	// 64 compressed bytes expand past the cap; the cap must win.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write(bytes.Repeat([]byte("a"), 4096))
		zw.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.MaxBytesPerPage = 1024
	f := newTestFetcher(t, cfg)
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

	if outcome.Status != types.StatusTooLarge {
		t.Fatalf("status = %q, want too-large", outcome.Status)
	}
}

func TestFetchRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.RequestTimeout = 50 * time.Millisecond
	f := newTestFetcher(t, cfg)
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL))

	if outcome.Status != types.StatusTimeout {
		t.Fatalf("status = %q (err %v), want timeout", outcome.Status, outcome.Err)
	}
	if !outcome.Retryable {
		t.Error("per-request timeout should be retryable")
	}
	if outcome.ErrorKind != types.KindTimeout {
		t.Errorf("kind = %q", outcome.ErrorKind)
	}
}

func TestFetchRunDeadlineDominates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(ctx, mustTask(t, srv.URL))

	if outcome.Status != types.StatusSkipped {
		t.Fatalf("status = %q, want skipped when the run deadline expires", outcome.Status)
	}
	if outcome.ErrorKind != types.KindDeadline {
		t.Errorf("kind = %q, want deadline", outcome.ErrorKind)
	}
	if outcome.Retryable {
		t.Error("deadline failures must not be retryable")
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(context.Background(), mustTask(t, target))

	if outcome.Status != types.StatusNetworkError {
		t.Fatalf("status = %q, want network-error", outcome.Status)
	}
	if !outcome.Retryable {
		t.Error("connection refused should be retryable")
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body>landed</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	outcome := f.Fetch(context.Background(), mustTask(t, srv.URL+"/a"))

	if !outcome.OK() {
		t.Fatalf("status = %q (err %v)", outcome.Status, outcome.Err)
	}
	if outcome.FinalURL != srv.URL+"/b" {
		t.Errorf("final url = %q, want redirect target", outcome.FinalURL)
	}
}

func TestFetchSendsConfiguredUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html></html>")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.UserAgent = "DeepStalk-test/1.0"
	f := newTestFetcher(t, cfg)
	f.Fetch(context.Background(), mustTask(t, srv.URL))

	if gotUA != "DeepStalk-test/1.0" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"10", 10 * time.Second},
		{"300", 120 * time.Second},
		{"garbage", 5 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}

	// HTTP-date in the near future
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > 30*time.Second {
		t.Errorf("parseRetryAfter(date) = %v, want (0, 30s]", got)
	}
	// HTTP-date in the past
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(past); got != time.Second {
		t.Errorf("parseRetryAfter(past date) = %v, want 1s", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"unexpected EOF", io.ErrUnexpectedEOF, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
