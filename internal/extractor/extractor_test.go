package extractor

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTask(t *testing.T, rawURL string) *types.CrawlTask {
	t.Helper()
	task, err := types.NewCrawlTask(rawURL, 1, 1)
	if err != nil {
		t.Fatalf("NewCrawlTask: %v", err)
	}
	return task
}

func okOutcome(url string, body string) *types.FetchOutcome {
	return &types.FetchOutcome{
		URL:      url,
		Status:   types.StatusOK,
		HTTPCode: 200,
		Body:     []byte(body),
		FinalURL: url,
		Elapsed:  42 * time.Millisecond,
	}
}

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
  <title>
    Climate   Research
    Overview
  </title>
  <style>.hidden { display: none; }</style>
  <script>var tracking = "SCRIPTJUNK";</script>
</head>
<body>
  <nav>NAVJUNK <a href="/nav-link">Navigation</a></nav>
  <header>HEADERJUNK</header>
  <!-- COMMENTJUNK -->
  <main>
    <h1>Climate change findings</h1>
    <p>Global   temperatures rose significantly over the last decade.</p>
    <a href="/reports/2024">Annual report</a>
    <a href="https://Example.ORG/data#section">External data</a>
    <a href="/reports/2024">Duplicate report link</a>
    <a href="mailto:team@example.com">Mail us</a>
    <a href="javascript:void(0)">Click</a>
    <a href="#top">Back to top</a>
    <a href="ftp://example.com/archive">Old archive</a>
  </main>
  <footer>FOOTERJUNK</footer>
  <aside>ASIDEJUNK</aside>
</body>
</html>`

func TestExtractTitleAndText(t *testing.T) {
	e := New(testLogger())
	task := mustTask(t, "https://example.com/page")
	page, err := e.Extract(task, okOutcome("https://example.com/page", fixtureHTML))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if page.Title != "Climate Research Overview" {
		t.Errorf("title = %q, want collapsed whitespace", page.Title)
	}
	if !strings.Contains(page.Text, "Global temperatures rose significantly") {
		t.Errorf("text missing content: %q", page.Text)
	}
	for _, junk := range []string{"SCRIPTJUNK", "NAVJUNK", "HEADERJUNK", "FOOTERJUNK", "ASIDEJUNK", "COMMENTJUNK"} {
		if strings.Contains(page.Text, junk) {
			t.Errorf("text contains boilerplate %q", junk)
		}
	}
	if strings.Contains(page.Text, "  ") {
		t.Error("text contains uncollapsed whitespace")
	}
}

func TestExtractOutlinks(t *testing.T) {
	e := New(testLogger())
	task := mustTask(t, "https://example.com/page")
	page, err := e.Extract(task, okOutcome("https://example.com/page", fixtureHTML))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []types.Outlink{
		{URL: "https://example.com/nav-link", Anchor: "Navigation"},
		{URL: "https://example.com/reports/2024", Anchor: "Annual report"},
		{URL: "https://example.org/data", Anchor: "External data"},
	}
	if len(page.Outlinks) != len(want) {
		t.Fatalf("got %d outlinks %+v, want %d", len(page.Outlinks), page.Outlinks, len(want))
	}
	for i, w := range want {
		if page.Outlinks[i] != w {
			t.Errorf("outlink %d = %+v, want %+v", i, page.Outlinks[i], w)
		}
	}
}

func TestExtractResolvesAgainstFinalURL(t *testing.T) {
	e := New(testLogger())
	task := mustTask(t, "https://example.com/old")
	outcome := okOutcome("https://example.com/old",
		`<html><body><a href="detail">Detail</a></body></html>`)
	outcome.FinalURL = "https://moved.example.net/docs/index"

	page, err := e.Extract(task, outcome)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.URL != "https://example.com/old" {
		t.Errorf("page URL = %q, must stay the task URL", page.URL)
	}
	if len(page.Outlinks) != 1 || page.Outlinks[0].URL != "https://moved.example.net/docs/detail" {
		t.Errorf("outlinks = %+v, want resolution against the final URL", page.Outlinks)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	e := New(testLogger())
	task := mustTask(t, "https://example.com/empty")
	_, err := e.Extract(task, okOutcome("https://example.com/empty", ""))
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
	var extractErr *types.ExtractError
	if !errors.As(err, &extractErr) {
		t.Errorf("err %T is not a *types.ExtractError", err)
	}
}

func TestExtractMissingTitle(t *testing.T) {
	e := New(testLogger())
	task := mustTask(t, "https://example.com/untitled")
	page, err := e.Extract(task, okOutcome("https://example.com/untitled",
		`<html><body><p>No title here.</p></body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Title != "" {
		t.Errorf("title = %q, want empty", page.Title)
	}
	if page.Text != "No title here." {
		t.Errorf("text = %q", page.Text)
	}
}

func TestExtractCarriesTaskFields(t *testing.T) {
	e := New(testLogger())
	task, err := types.NewCrawlTask("https://example.com/deep", 2, 7)
	if err != nil {
		t.Fatal(err)
	}
	task.ParentURL = "https://example.com/parent"
	task.Snippet = "a search snippet"

	page, err := e.Extract(task, okOutcome("https://example.com/deep",
		`<html><head><title>Deep</title></head><body>content</body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Level != 2 || page.Rank != 7 {
		t.Errorf("level/rank = %d/%d", page.Level, page.Rank)
	}
	if page.ParentURL != "https://example.com/parent" {
		t.Errorf("parent = %q", page.ParentURL)
	}
	if page.Snippet != "a search snippet" {
		t.Errorf("snippet = %q", page.Snippet)
	}
	if page.FetchElapsed != 42*time.Millisecond {
		t.Errorf("fetch elapsed = %v", page.FetchElapsed)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncateUTF8(s, 7)
	if len(got) != 6 {
		t.Errorf("len = %d, want 6 (no split rune)", len(got))
	}
	if !strings.HasSuffix(got, "é") {
		t.Errorf("truncated string ends mid-rune: %q", got)
	}
}
