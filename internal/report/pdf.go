// Package report renders a finished research result as a paginated PDF:
// title page, executive summary, run statistics, key findings, and the
// top sources with short excerpts.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// source is one entry in the detailed-sources section, drawn from either
// page level.
type source struct {
	URL       string
	Title     string
	Excerpt   string
	Relevance float64
	Level     int
}

// PDFGenerator writes research reports. Safe for reuse across runs.
type PDFGenerator struct {
	topSources int
	logger     *slog.Logger
}

// NewPDFGenerator creates a generator honoring the report configuration.
func NewPDFGenerator(cfg config.Report, logger *slog.Logger) *PDFGenerator {
	top := cfg.TopSources
	if top <= 0 {
		top = 20
	}
	return &PDFGenerator{
		topSources: top,
		logger:     logger.With("component", "pdf_report"),
	}
}

// Generate writes the report for result to outputPath, creating parent
// directories as needed.
func (g *PDFGenerator) Generate(result *types.ResearchResult, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	g.titlePage(pdf, tr, result)
	g.summaryPage(pdf, tr, result)
	g.statisticsPage(pdf, result)
	g.findingsPage(pdf, tr, result)
	g.sourcesSection(pdf, tr, result)

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	g.logger.Info("pdf report written", "path", outputPath)
	return nil
}

func (g *PDFGenerator) titlePage(pdf *fpdf.Fpdf, tr func(string) string, result *types.ResearchResult) {
	pdf.AddPage()
	pdf.SetY(60)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "Deep Research Report", "", 1, "C", false, 0, "")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, tr(fmt.Sprintf("Query: %s", result.Query)), "", "C", false)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, "Generated: "+result.FinishedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) summaryPage(pdf *fpdf.Fpdf, tr func(string) string, result *types.ResearchResult) {
	pdf.AddPage()
	g.heading(pdf, "Executive Summary")

	summary := result.Summary
	if summary == "" {
		summary = "No summary could be produced for this run."
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(summary), "", "L", false)
}

func (g *PDFGenerator) statisticsPage(pdf *fpdf.Fpdf, result *types.ResearchResult) {
	pdf.AddPage()
	g.heading(pdf, "Research Statistics")

	rows := [][2]string{
		{"Initial search results", fmt.Sprintf("%d", len(result.InitialHits))},
		{"Level 1 pages crawled", fmt.Sprintf("%d", len(result.Level1Pages))},
		{"Level 2 pages crawled", fmt.Sprintf("%d", len(result.Level2Pages))},
		{"Total pages crawled", fmt.Sprintf("%d", result.TotalPagesCrawled)},
		{"Total links discovered", fmt.Sprintf("%d", result.TotalLinksDiscovered)},
		{"Failed fetches", fmt.Sprintf("%d", len(result.Failures))},
		{"Research time", fmt.Sprintf("%.1f seconds", result.ElapsedSeconds)},
	}

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(70, 8, row[0], "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, row[1], "B", 1, "L", false, 0, "")
	}
}

func (g *PDFGenerator) findingsPage(pdf *fpdf.Fpdf, tr func(string) string, result *types.ResearchResult) {
	if len(result.KeyFindings) == 0 {
		return
	}
	pdf.AddPage()
	g.heading(pdf, "Key Findings")

	pdf.SetFont("Helvetica", "", 11)
	for i, finding := range result.KeyFindings {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, finding)), "", "L", false)
		pdf.Ln(3)
	}
}

func (g *PDFGenerator) sourcesSection(pdf *fpdf.Fpdf, tr func(string) string, result *types.ResearchResult) {
	sources := collectSources(result)
	if len(sources) == 0 {
		return
	}
	if len(sources) > g.topSources {
		sources = sources[:g.topSources]
	}

	pdf.AddPage()
	g.heading(pdf, "Detailed Sources")

	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, tr(fmt.Sprintf("Source %d: %s", i+1, title)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(src.URL), "", "L", false)
		pdf.CellFormat(0, 5, fmt.Sprintf("Relevance: %.2f  (level %d)", src.Relevance, src.Level), "", 1, "L", false, 0, "")
		if src.Excerpt != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, tr(src.Excerpt), "", "L", false)
		}
		pdf.Ln(5)
	}
}

func (g *PDFGenerator) heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

// collectSources merges both page levels and orders them by relevance,
// best first; ties keep level 1 ahead of level 2.
func collectSources(result *types.ResearchResult) []source {
	sources := make([]source, 0, len(result.Level1Pages)+len(result.Level2Pages))
	for _, p := range result.Level1Pages {
		sources = append(sources, source{URL: p.URL, Title: p.Title, Excerpt: p.TextExcerpt, Relevance: p.Relevance, Level: 1})
	}
	for _, p := range result.Level2Pages {
		sources = append(sources, source{URL: p.URL, Title: p.Title, Excerpt: p.TextExcerpt, Relevance: p.Relevance, Level: 2})
	}
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Relevance != sources[j].Relevance {
			return sources[i].Relevance > sources[j].Relevance
		}
		return sources[i].Level < sources[j].Level
	})
	return sources
}
