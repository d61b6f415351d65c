package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFromFile_PlainTextNormalizesEndings(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("First line.\r\nSecond line.\rThird line.\n")...)
	path := writeFile(t, "essay.txt", raw)

	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.Text != "First line.\nSecond line.\nThird line.\n" {
		t.Fatalf("unexpected text: %q", doc.Text)
	}
	if doc.Title != "essay" {
		t.Fatalf("expected title from file name, got %q", doc.Title)
	}
}

func TestFromFile_MarkdownHeadingBecomesTitle(t *testing.T) {
	path := writeFile(t, "notes.md", []byte("# Climate Notes\n\nThe sky is blue.\n"))

	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.Title != "Climate Notes" {
		t.Fatalf("expected heading title, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "The sky is blue.") {
		t.Fatalf("expected body text, got %q", doc.Text)
	}
}

func TestFromFile_MarkdownWithoutHeadingFallsBackToName(t *testing.T) {
	path := writeFile(t, "draft.md", []byte("Just prose, no heading.\n"))

	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.Title != "draft" {
		t.Fatalf("expected file name title, got %q", doc.Title)
	}
}

func TestFromFile_HTML(t *testing.T) {
	page := `<!doctype html>
	<html>
	  <head><title>Saved Essay</title></head>
	  <body>
	    <nav>Skip this navigation</nav>
	    <main>
	      <h1>Introduction</h1>
	      <p>Water is wet.</p>
	    </main>
	    <footer>Footer chrome</footer>
	  </body>
	</html>`
	path := writeFile(t, "essay.html", []byte(page))

	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.Title != "Saved Essay" {
		t.Fatalf("expected title from <title>, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Introduction") || !strings.Contains(doc.Text, "Water is wet.") {
		t.Fatalf("expected main content, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Skip this navigation") || strings.Contains(doc.Text, "Footer chrome") {
		t.Fatalf("boilerplate leaked into text: %q", doc.Text)
	}
}

func TestFromFile_EmptyHTMLIsAnError(t *testing.T) {
	path := writeFile(t, "blank.html", []byte("<html><body><script>alert(1)</script></body></html>"))

	_, err := FromFile(path)
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if exErr.Path != path {
		t.Fatalf("error path = %q, want %q", exErr.Path, path)
	}
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	_, err := FromFile("scan.pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "scan.pdf") {
		t.Fatalf("message should name the file: %q", err.Error())
	}
}

func TestFromFile_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.txt")
	_, err := FromFile(path)
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "absent.txt") {
		t.Fatalf("message should name the file: %q", err.Error())
	}
}

func TestFromHTML_PrefersMainOverBody(t *testing.T) {
	page := `<!doctype html>
	<html>
	  <head><title>Test Page</title></head>
	  <body>
	    <p>Outside the main element.</p>
	    <main><p>Inside the main element.</p></main>
	  </body>
	</html>`

	doc := FromHTML([]byte(page))
	if !strings.Contains(doc.Text, "Inside the main element.") {
		t.Fatalf("expected main content, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Outside the main element.") {
		t.Fatalf("body content outside <main> should be dropped, got %q", doc.Text)
	}
}

func TestFromHTML_KeepsListsAndCode(t *testing.T) {
	page := `<html><body><article>
	  <ul><li>First point</li><li>Second point</li></ul>
	  <pre><code>x := 1</code></pre>
	</article></body></html>`

	doc := FromHTML([]byte(page))
	for _, want := range []string{"First point", "Second point", "x := 1"} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("expected %q in text, got %q", want, doc.Text)
		}
	}
}
