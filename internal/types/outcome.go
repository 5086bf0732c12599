package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchStatus classifies the terminal result of a fetch attempt.
type FetchStatus string

const (
	StatusOK              FetchStatus = "ok"
	StatusHTTPError       FetchStatus = "http-error"
	StatusTimeout         FetchStatus = "timeout"
	StatusNetworkError    FetchStatus = "network-error"
	StatusTooLarge        FetchStatus = "too-large"
	StatusUnsupportedType FetchStatus = "unsupported-type"
	StatusSkipped         FetchStatus = "skipped"
	StatusExtract         FetchStatus = "extract"
)

// Error kinds recorded in the failures list of a ResearchResult.
const (
	KindTimeout     = "timeout"
	KindNetwork     = "network"
	KindHTTP4xx     = "http-4xx"
	KindHTTP5xx     = "http-5xx"
	KindUnsupported = "unsupported-type"
	KindTooLarge    = "too-large"
	KindExtract     = "extract"
	KindDeadline    = "deadline"
)

// FetchOutcome is the result of attempting one fetch. Every attempt produces
// exactly one outcome; failures are data here, not errors that propagate.
type FetchOutcome struct {
	// URL is the task URL that was fetched.
	URL string

	// Status classifies the outcome.
	Status FetchStatus

	// HTTPCode is the response status code, when a response was received.
	HTTPCode int

	// Body is the (possibly decompressed) response body. Populated only for
	// Status == StatusOK.
	Body []byte

	// Headers are the response headers, when a response was received.
	Headers http.Header

	// ContentType is the response Content-Type media type.
	ContentType string

	// FinalURL is the URL after redirects; outlinks resolve against it.
	FinalURL string

	// Elapsed is the wall time of the attempt that produced this outcome.
	Elapsed time.Duration

	// ErrorKind tags the failure for the result's failures list.
	ErrorKind string

	// Err is the underlying error, if any. Diagnostic only.
	Err error

	// Retryable marks transient failures worth re-queuing.
	Retryable bool

	// RetryAfter carries a server-requested delay (Retry-After on 503).
	RetryAfter time.Duration

	doc *goquery.Document
}

// OK reports whether the fetch succeeded.
func (o *FetchOutcome) OK() bool {
	return o.Status == StatusOK
}

// Document parses the body as HTML, lazily caching the result.
func (o *FetchOutcome) Document() (*goquery.Document, error) {
	if o.doc != nil {
		return o.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(o.Body))
	if err != nil {
		return nil, err
	}
	o.doc = doc
	return doc, nil
}
