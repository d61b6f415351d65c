// Package report renders a committed analysis into a Markdown report and
// optionally into a simple PDF. Rendering is a pure function of the result,
// so the same analysis always produces the same report.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/goproof/internal/analysis"
)

// Options control report framing. Zero values are usable: an untitled report
// with no date line.
type Options struct {
	// Title heads the report; empty falls back to "Analysis Report".
	Title string
	// GeneratedAt is printed as a date line when non-zero.
	GeneratedAt time.Time
}

// RenderMarkdown builds the full Markdown report: scores, summary, subtopics,
// the annotated segment list and numbered citations.
func RenderMarkdown(res *analysis.Result, opts Options) string {
	if res == nil {
		return ""
	}
	var b strings.Builder

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Analysis Report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated on %s\n\n", opts.GeneratedAt.UTC().Format("2006-01-02"))
	}

	writeScores(&b, res)
	writeSummary(&b, res)
	writeSubtopics(&b, res)
	writeSegments(&b, res)
	writeCitations(&b, res)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeScores(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Scores\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(b, "| Plagiarism | %d%% |\n", res.PlagiarismPercentage)
	fmt.Fprintf(b, "| Grammar | %d/100 |\n", res.GrammarScore)
	if res.AILikelihood != nil {
		fmt.Fprintf(b, "| AI likelihood | %d%% |\n", *res.AILikelihood)
	}
	if tone := strings.TrimSpace(res.WritingTone); tone != "" {
		fmt.Fprintf(b, "| Writing tone | %s |\n", tone)
	}
	b.WriteString("\n")
}

func writeSummary(b *strings.Builder, res *analysis.Result) {
	summary := strings.TrimSpace(res.OverallSummary)
	if summary == "" {
		return
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(summary)
	b.WriteString("\n\n")
}

func writeSubtopics(b *strings.Builder, res *analysis.Result) {
	if len(res.Subtopics) == 0 {
		return
	}
	b.WriteString("## Subtopics\n\n")
	for _, st := range res.Subtopics {
		fmt.Fprintf(b, "- %s (from segment %d)\n", st.Title, st.SegmentIndex+1)
	}
	b.WriteString("\n")
}

func writeSegments(b *strings.Builder, res *analysis.Result) {
	if len(res.Segments) == 0 {
		return
	}
	flagged := 0
	for _, seg := range res.Segments {
		if seg.Flagged() {
			flagged++
		}
	}
	b.WriteString("## Segments\n\n")
	fmt.Fprintf(b, "%d of %d segments flagged.\n\n", flagged, len(res.Segments))

	for i, seg := range res.Segments {
		fmt.Fprintf(b, "%d. [%s] %s\n", i+1, seg.Kind, strings.TrimSpace(seg.Text))
		if seg.SourceURL != "" {
			fmt.Fprintf(b, "   - Source: [%s](%s)\n", seg.SourceURL, seg.SourceURL)
		}
		if expl := strings.TrimSpace(seg.Explanation); expl != "" {
			fmt.Fprintf(b, "   - Why: %s\n", expl)
		}
		if cite := strings.TrimSpace(seg.Citation); cite != "" {
			fmt.Fprintf(b, "   - Citation: %s\n", cite)
		}
		for _, sug := range seg.Suggestions {
			fmt.Fprintf(b, "   - Suggestion: %s\n", sug)
		}
	}
	b.WriteString("\n")
}

func writeCitations(b *strings.Builder, res *analysis.Result) {
	if len(res.Citations) == 0 {
		return
	}
	b.WriteString("## Citations\n\n")
	for i, uri := range res.Citations {
		fmt.Fprintf(b, "%d. [%s](%s)\n", i+1, uri, uri)
	}
	b.WriteString("\n")
}

var mdLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// PDF renders the Markdown report into PDF bytes. Headings get a larger bold
// face, table rows collapse to labeled lines and Markdown links become
// clickable. This is not a full Markdown engine.
func PDF(markdown string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			pdf.Ln(5)
		case strings.HasPrefix(line, "#"):
			writePDFHeading(pdf, line)
		case strings.HasPrefix(line, "|"):
			writePDFTableRow(pdf, line)
		default:
			writePDFLine(pdf, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan report markdown: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePDF renders the Markdown report into a PDF file at outPath.
func WritePDF(markdown string, outPath string) error {
	raw, err := PDF(markdown)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, raw, 0o644)
}

func writePDFHeading(pdf *gofpdf.Fpdf, line string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	text := strings.TrimSpace(line[level:])
	if text == "" {
		return
	}
	size := 14.0
	if level >= 2 {
		size = 12.0
	}
	pdf.SetFont("Helvetica", "B", size)
	pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

// writePDFTableRow flattens a Markdown table row into "cell: cell" text.
// Separator rows made of dashes are dropped.
func writePDFTableRow(pdf *gofpdf.Fpdf, line string) {
	cells := make([]string, 0, 4)
	for _, cell := range strings.Split(strings.Trim(line, "|"), "|") {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if strings.Trim(cell, "-: ") == "" {
			return
		}
		cells = append(cells, cell)
	}
	if len(cells) == 0 {
		return
	}
	pdf.MultiCell(0, 5, strings.Join(cells, ": "), "", "L", false)
}

// writePDFLine writes one wrapped text line, turning [text](url) spans into
// clickable links.
func writePDFLine(pdf *gofpdf.Fpdf, line string) {
	matches := mdLinkRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		pdf.MultiCell(0, 5, line, "", "L", false)
		return
	}
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			pdf.Write(5, line[pos:m[0]])
		}
		text := line[m[2]:m[3]]
		url := line[m[4]:m[5]]
		if strings.HasPrefix(url, "#") {
			pdf.Write(5, text)
		} else {
			pdf.WriteLinkString(5, text, url)
		}
		pos = m[1]
	}
	if pos < len(line) {
		pdf.Write(5, line[pos:])
	}
	pdf.Ln(6)
}
