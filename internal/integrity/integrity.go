// Package integrity guards the contract between the analysis service and the
// rest of the pipeline: segments must be an exact, gap-free partition of the
// analyzed document.
package integrity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/goproof/internal/analysis"
)

// ErrReconstruction reports that the returned segments do not reassemble into
// the analyzed document.
var ErrReconstruction = errors.New("segments do not reconstruct the document")

// VerifyReconstruction checks that concatenating the segment texts in order
// reproduces the analyzed document exactly. A mismatch fails the whole
// analysis; per-segment findings only mean anything against the exact text
// that was sent.
func VerifyReconstruction(document string, segments []analysis.Segment) error {
	var b strings.Builder
	b.Grow(len(document))
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	got := b.String()
	if got == document {
		return nil
	}
	return fmt.Errorf("%w: diverges at byte %d (document %d bytes, segments %d bytes)",
		ErrReconstruction, divergeAt(document, got), len(document), len(got))
}

// divergeAt returns the byte offset of the first difference.
func divergeAt(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
