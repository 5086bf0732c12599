package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client  *http.Client
	cfg     *config.Fetcher
	limiter *hostLimiter
	logger  *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // We handle decompression ourselves (including brotli)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:  client,
		cfg:     &cfg.Fetcher,
		limiter: newHostLimiter(cfg.Fetcher.PerHostMinInterval),
		logger:  logger.With("component", "http_fetcher"),
	}, nil
}

// Fetch executes a single GET attempt and classifies the result. Retries
// are the scheduler's business; this method never re-issues a request.
func (f *HTTPFetcher) Fetch(ctx context.Context, task *types.CrawlTask) *types.FetchOutcome {
	urlStr := task.URLString()
	outcome := &types.FetchOutcome{URL: urlStr}

	release, err := f.limiter.acquire(ctx, task.Host())
	if err != nil {
		return f.fail(outcome, types.StatusSkipped, types.KindDeadline, 0, err, false)
	}
	defer release()

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", urlStr, nil)
	if err != nil {
		return f.fail(outcome, types.StatusNetworkError, types.KindNetwork, 0, err, false)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		outcome.Elapsed = time.Since(start)
		return f.classifyTransport(outcome, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.CopyN(io.Discard, resp.Body, 512)
		outcome.Elapsed = time.Since(start)
		kind := types.KindHTTP4xx
		retryable := false
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// 429 is a pacing signal, not a verdict on the URL: retry
			// after whatever spacing the server asks for.
			retryable = true
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				outcome.RetryAfter = parseRetryAfter(ra)
			}
		case resp.StatusCode >= 500:
			kind = types.KindHTTP5xx
			retryable = true
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				outcome.RetryAfter = parseRetryAfter(ra)
			}
		}
		return f.fail(outcome, types.StatusHTTPError, kind, resp.StatusCode,
			fmt.Errorf("HTTP %d", resp.StatusCode), retryable)
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, perr := mime.ParseMediaType(ct); perr == nil {
			mediaType = parsed
		}
	}
	if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		io.CopyN(io.Discard, resp.Body, 512)
		outcome.Elapsed = time.Since(start)
		outcome.ContentType = mediaType
		return f.fail(outcome, types.StatusUnsupportedType, types.KindUnsupported, resp.StatusCode,
			fmt.Errorf("unsupported content type %q", resp.Header.Get("Content-Type")), false)
	}

	// Decompress first, then cap: the budget applies to content bytes,
	// not wire bytes.
	reader, err := decompressReader(resp, resp.Body)
	if err != nil {
		outcome.Elapsed = time.Since(start)
		return f.fail(outcome, types.StatusNetworkError, types.KindNetwork, resp.StatusCode, err, false)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.cfg.MaxBytesPerPage+1))
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.HTTPCode = resp.StatusCode
		return f.classifyTransport(outcome, ctx, err)
	}
	if int64(len(body)) > f.cfg.MaxBytesPerPage {
		return f.fail(outcome, types.StatusTooLarge, types.KindTooLarge, resp.StatusCode,
			fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBytesPerPage), false)
	}

	outcome.Status = types.StatusOK
	outcome.HTTPCode = resp.StatusCode
	outcome.Body = body
	outcome.Headers = resp.Header
	outcome.ContentType = mediaType
	outcome.FinalURL = resp.Request.URL.String()

	f.logger.Debug("fetch complete",
		"url", urlStr,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", outcome.Elapsed,
	)

	return outcome
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// classifyTransport maps an error from Do or the body read onto the
// failure taxonomy. The run context expiring dominates everything else;
// a per-request timeout is a retryable timeout; the rest is network.
func (f *HTTPFetcher) classifyTransport(outcome *types.FetchOutcome, runCtx context.Context, err error) *types.FetchOutcome {
	switch {
	case runCtx.Err() != nil:
		return f.fail(outcome, types.StatusSkipped, types.KindDeadline, outcome.HTTPCode, err, false)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return f.fail(outcome, types.StatusTimeout, types.KindTimeout, outcome.HTTPCode, err, true)
	default:
		return f.fail(outcome, types.StatusNetworkError, types.KindNetwork, outcome.HTTPCode, err, isRetryableError(err))
	}
}

// fail finishes an outcome in a failure state, wrapping the cause in a
// typed FetchError for callers that want to inspect it.
func (f *HTTPFetcher) fail(outcome *types.FetchOutcome, status types.FetchStatus, kind string, code int, err error, retryable bool) *types.FetchOutcome {
	outcome.Status = status
	outcome.ErrorKind = kind
	outcome.HTTPCode = code
	outcome.Retryable = retryable
	outcome.Err = &types.FetchError{
		URL:        outcome.URL,
		StatusCode: code,
		Kind:       kind,
		Err:        err,
		Retryable:  retryable,
		RetryAfter: outcome.RetryAfter,
	}
	f.logger.Debug("fetch failed",
		"url", outcome.URL,
		"status", string(status),
		"kind", kind,
		"retryable", retryable,
		"error", err,
	)
	return outcome
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRetryableError checks if a network error warrants a retry.
// Covers connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is NOT retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Unexpected EOF mid-stream — retryable
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return true
		}
	}
	// Connection reset by peer, connection refused
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	// Try seconds integer
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	// Try HTTP-date
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
