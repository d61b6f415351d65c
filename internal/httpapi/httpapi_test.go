package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/compose"
	"github.com/hyperifyio/goproof/internal/service"
	"github.com/hyperifyio/goproof/internal/session"
)

type stubAnalyzer struct {
	release chan struct{} // Analyze blocks until closed when set
	fail    bool
}

func (a *stubAnalyzer) Analyze(_ context.Context, req compose.Request) (service.Response, error) {
	if a.release != nil {
		<-a.release
	}
	if a.fail {
		return service.Response{}, errors.New("boom")
	}
	res := analysis.Result{
		PlagiarismPercentage: 50,
		GrammarScore:         80,
		Segments: []analysis.Segment{
			{Text: req.Document[:20], Kind: analysis.KindPlagiarism, Suggestions: []string{"calm original phrasing"}},
			{Text: req.Document[20:], Kind: analysis.KindOriginal},
		},
		Citations: []string{},
	}
	b, err := json.Marshal(res)
	if err != nil {
		return service.Response{}, err
	}
	return service.Response{RawText: string(b)}, nil
}

func testDoc() string {
	return strings.Repeat("p", 20) + strings.Repeat("o", 30)
}

func newTestServer(t *testing.T, an service.Analyzer) *httptest.Server {
	t.Helper()
	srv := New(Config{}, func() *session.Session {
		return session.New(an, compose.Options{})
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON sends body (nil for an empty request) and returns the response with
// its bytes read and the body closed.
func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", resp.StatusCode, raw)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ID == "" || snap.Status != session.StatusIdle {
		t.Fatalf("unexpected new session snapshot: %+v", snap)
	}
	return snap.ID
}

func getSnapshot(t *testing.T, ts *httptest.Server, id string) session.Snapshot {
	t.Helper()
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d, body %s", resp.StatusCode, raw)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func waitStatus(t *testing.T, ts *httptest.Server, id string, want session.Status) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := getSnapshot(t, ts, id)
		if snap.Status == want {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never reached %q, stuck at %q", want, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, body %s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", raw)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	resp, raw := doJSON(t, http.MethodPost, base+"/analyze", analyzeRequest{Text: testDoc()})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("analyze: status %d, body %s", resp.StatusCode, raw)
	}

	snap := waitStatus(t, ts, id, session.StatusSuccess)
	if snap.Result == nil || snap.Result.PlagiarismPercentage != 50 {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/select", selectRequest{Index: 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select: status %d, body %s", resp.StatusCode, raw)
	}
	if snap := getSnapshot(t, ts, id); snap.SelectedIndex != 1 {
		t.Fatalf("selected = %d, want 1", snap.SelectedIndex)
	}

	// Empty body accepts the first suggestion.
	resp, raw = doJSON(t, http.MethodPost, base+"/segments/0/apply", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply: status %d, body %s", resp.StatusCode, raw)
	}
	var applied session.Snapshot
	if err := json.Unmarshal(raw, &applied); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if applied.Result.Segments[0].Text != "calm original phrasing" {
		t.Fatalf("segment text = %q, want the suggestion", applied.Result.Segments[0].Text)
	}
	if applied.Result.PlagiarismPercentage != 0 {
		t.Fatalf("plagiarism = %d, want 0 after resolving the only flagged segment", applied.Result.PlagiarismPercentage)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/apply-all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply-all: status %d, body %s", resp.StatusCode, raw)
	}
	var all applyAllResponse
	if err := json.Unmarshal(raw, &all); err != nil {
		t.Fatalf("decode apply-all: %v", err)
	}
	if all.Applied != 0 {
		t.Fatalf("applied = %d, want 0 once everything is resolved", all.Applied)
	}
	if all.Session.Result.GrammarScore != 100 {
		t.Fatalf("grammar = %d, want 100 after apply-all", all.Session.Result.GrammarScore)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d, body %s", resp.StatusCode, raw)
	}
	if snap := getSnapshot(t, ts, id); snap.Status != session.StatusIdle || snap.Result != nil {
		t.Fatalf("snapshot after reset: %+v", snap)
	}

	resp, _ = doJSON(t, http.MethodDelete, base, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", resp.StatusCode)
	}
}

func TestAnalyzeRejections(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{})}
	ts := newTestServer(t, an)
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	resp, raw := doJSON(t, http.MethodPost, base+"/analyze", analyzeRequest{Text: "too short"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("short input: status %d, body %s", resp.StatusCode, raw)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/analyze", analyzeRequest{Text: testDoc()})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first analyze: status %d", resp.StatusCode)
	}
	resp, raw = doJSON(t, http.MethodPost, base+"/analyze", analyzeRequest{Text: testDoc()})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second analyze: status %d, body %s", resp.StatusCode, raw)
	}

	close(an.release)
	waitStatus(t, ts, id, session.StatusSuccess)
}

func TestAnalyzeErrorSurfacesInSnapshot(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{fail: true})
	id := createSession(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/analyze", analyzeRequest{Text: testDoc()})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("analyze: status %d", resp.StatusCode)
	}
	snap := waitStatus(t, ts, id, session.StatusError)
	if snap.Error == nil || snap.Error.Kind != session.KindTransport {
		t.Fatalf("error info = %+v, want a transport classification", snap.Error)
	}
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	for _, probe := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/sessions/does-not-exist", nil},
		{http.MethodPost, "/api/sessions/does-not-exist/analyze", analyzeRequest{Text: testDoc()}},
		{http.MethodDelete, "/api/sessions/does-not-exist", nil},
	} {
		resp, raw := doJSON(t, probe.method, ts.URL+probe.path, probe.body)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s: status %d, body %s", probe.method, probe.path, resp.StatusCode, raw)
		}
	}
}

func TestMutationsWithoutResultConflict(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	for _, probe := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/segments/0/apply", applyRequest{Choice: 0}},
		{http.MethodPost, "/apply-all", nil},
		{http.MethodPost, "/select", selectRequest{Index: 0}},
		{http.MethodPost, "/clear-selection", nil},
		{http.MethodGet, "/report", nil},
	} {
		resp, raw := doJSON(t, probe.method, base+probe.path, probe.body)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("%s %s: status %d, body %s", probe.method, probe.path, resp.StatusCode, raw)
		}
	}
}

func TestBadRequestBodies(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	resp, err := http.Post(base+"/analyze", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed analyze body: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/select", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("select without body: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/segments/first/apply", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-numeric segment index: status %d", resp.StatusCode)
	}
}

func TestReportEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubAnalyzer{})
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	if resp, _ := doJSON(t, http.MethodPost, base+"/analyze", analyzeRequest{Text: testDoc()}); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("analyze: status %d", resp.StatusCode)
	}
	waitStatus(t, ts, id, session.StatusSuccess)

	resp, raw := doJSON(t, http.MethodGet, base+"/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: status %d, body %s", resp.StatusCode, raw)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(string(raw), "## Scores") {
		t.Fatalf("report body missing scores section:\n%s", raw)
	}

	resp, raw = doJSON(t, http.MethodGet, base+"/report?format=pdf", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pdf report: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("pdf body does not start with magic, got %q", raw[:min(len(raw), 8)])
	}

	resp, _ = doJSON(t, http.MethodGet, base+"/report?format=docx", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown format: status %d", resp.StatusCode)
	}
}
