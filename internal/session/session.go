// Package session holds the analysis session state machine. A session owns
// one document's analysis lifecycle: it drives the external call through
// validation, integrity checking and source attribution, commits the result,
// and serializes every later user-driven mutation against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/compose"
	"github.com/hyperifyio/goproof/internal/integrity"
	"github.com/hyperifyio/goproof/internal/parse"
	"github.com/hyperifyio/goproof/internal/reconcile"
	"github.com/hyperifyio/goproof/internal/score"
	"github.com/hyperifyio/goproof/internal/service"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// ErrorKind classifies failed analyses for rendering and exit codes.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindEmptyResponse ErrorKind = "empty_response"
	KindMalformed     ErrorKind = "malformed_response"
	KindIntegrity     ErrorKind = "integrity"
	KindTransport     ErrorKind = "transport"
)

// ErrorInfo is the user-facing error state of a failed analysis.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// MinDocumentRunes is the smallest input worth analyzing. Anything shorter
// produces one-segment noise and wastes a model call.
const MinDocumentRunes = 40

var (
	ErrAnalysisInFlight = errors.New("an analysis is already running")
	ErrInputTooShort    = errors.New("document too short for analysis")
	ErrNoResult         = errors.New("no analysis result in this state")
	ErrSessionReset     = errors.New("session was reset during the analysis")
)

const genericFailureMessage = "analysis failed; please try again"

// Session is safe for concurrent use. The external call is the only
// suspension point; the lock is dropped around it and the generation counter
// decides afterwards whether the outcome still belongs to this session.
type Session struct {
	ID string

	analyzer    service.Analyzer
	composeOpts compose.Options

	mu        sync.Mutex
	gen       uint64
	status    Status
	inputText string
	result    *analysis.Result
	selected  int // -1 when nothing is selected
	errInfo   *ErrorInfo
}

// New creates an idle session bound to an analyzer.
func New(an service.Analyzer, opts compose.Options) *Session {
	return &Session{
		ID:          uuid.NewString(),
		analyzer:    an,
		composeOpts: opts,
		status:      StatusIdle,
		selected:    -1,
	}
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	ID        string           `json:"id"`
	Status    Status           `json:"status"`
	InputText string           `json:"inputText,omitempty"`
	Result    *analysis.Result `json:"result,omitempty"`
	// SelectedIndex is the selected segment, -1 for none.
	SelectedIndex int        `json:"selectedIndex"`
	Error         *ErrorInfo `json:"error,omitempty"`
}

// Snapshot returns a deep copy, so callers can render it without racing
// later mutations.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:            s.ID,
		Status:        s.status,
		InputText:     s.inputText,
		Result:        s.result.Clone(),
		SelectedIndex: s.selected,
	}
	if s.errInfo != nil {
		e := *s.errInfo
		snap.Error = &e
	}
	return snap
}

// StartAnalysis runs one full analysis of text. It is rejected, not queued,
// while another analysis is in flight. On success the session enters
// StatusSuccess with a committed result; on failure it enters StatusError
// with a classified error and no partial result. The returned error mirrors
// what the error state records.
func (s *Session) StartAnalysis(ctx context.Context, text string) error {
	gen, req, err := s.begin(text)
	if err != nil {
		return err
	}
	result, perr := s.runPipeline(ctx, req)
	return s.complete(gen, result, perr)
}

// StartAnalysisAsync begins an analysis and returns once the session has
// entered StatusAnalyzing; the pipeline runs in the background and its
// outcome lands in the session state, observable through Snapshot.
// Rejections (analysis in flight, input too short) come back synchronously.
func (s *Session) StartAnalysisAsync(ctx context.Context, text string) error {
	gen, req, err := s.begin(text)
	if err != nil {
		return err
	}
	go func() {
		result, perr := s.runPipeline(ctx, req)
		// The outcome is recorded in the session state; background callers
		// observe it through Snapshot.
		_ = s.complete(gen, result, perr)
	}()
	return nil
}

// begin validates the input, moves the session into StatusAnalyzing and
// composes the outbound request. The returned generation ties the eventual
// outcome back to this particular start.
func (s *Session) begin(text string) (uint64, compose.Request, error) {
	s.mu.Lock()
	if s.status == StatusAnalyzing {
		s.mu.Unlock()
		return 0, compose.Request{}, ErrAnalysisInFlight
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < MinDocumentRunes {
		s.mu.Unlock()
		return 0, compose.Request{}, fmt.Errorf("%w: need at least %d characters, got %d", ErrInputTooShort, MinDocumentRunes, n)
	}
	s.gen++
	gen := s.gen
	s.status = StatusAnalyzing
	s.inputText = text
	s.result = nil
	s.selected = -1
	s.errInfo = nil
	s.mu.Unlock()

	req := compose.Compose(text, s.composeOpts)
	if req.Truncated {
		log.Warn().Str("session", s.ID).Int("droppedRunes", req.DroppedRunes).Msg("document truncated to the analysis cap")
	}
	log.Debug().Str("session", s.ID).Int("estPromptTokens", req.EstimatedPromptTokens).Bool("grounded", req.GroundingEnabled).Msg("analysis started")
	return gen, req, nil
}

// complete commits or classifies a finished pipeline run, unless the session
// moved on while the run was in flight.
func (s *Session) complete(gen uint64, result *analysis.Result, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Reset (or reset plus a fresh start) happened while the call was
		// in flight; this outcome no longer belongs to the session.
		return ErrSessionReset
	}
	if err != nil {
		info := classify(err)
		s.errInfo = &info
		s.status = StatusError
		log.Error().Str("session", s.ID).Str("kind", string(info.Kind)).Err(err).Msg("analysis failed")
		return err
	}
	s.result = result
	s.status = StatusSuccess
	log.Info().
		Str("session", s.ID).
		Int("segments", len(result.Segments)).
		Int("plagiarism", result.PlagiarismPercentage).
		Int("grammar", result.GrammarScore).
		Msg("analysis committed")
	return nil
}

// runPipeline performs the external call and the synchronous steps after it:
// parse, reconstruction check, source attribution.
func (s *Session) runPipeline(ctx context.Context, req compose.Request) (*analysis.Result, error) {
	resp, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := parse.ParseAnalysis(resp.RawText)
	if err != nil {
		return nil, err
	}
	if err := integrity.VerifyReconstruction(req.Document, result.Segments); err != nil {
		return nil, err
	}
	if attributed := reconcile.AttributeSources(result, resp.References); attributed > 0 {
		log.Debug().Str("session", s.ID).Int("attributed", attributed).Msg("backfilled source attributions")
	}
	return result, nil
}

// ApplySuggestion accepts one suggestion on one segment. Valid only with a
// committed result.
func (s *Session) ApplySuggestion(segment, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireResult(); err != nil {
		return err
	}
	if err := score.ApplySuggestion(s.result, segment, choice); err != nil {
		return err
	}
	log.Debug().Str("session", s.ID).Int("segment", segment).Int("plagiarism", s.result.PlagiarismPercentage).Msg("suggestion applied")
	return nil
}

// ApplyAllSuggestions accepts the first suggestion of every flagged segment
// and returns how many were rewritten.
func (s *Session) ApplyAllSuggestions() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireResult(); err != nil {
		return 0, err
	}
	applied := score.ApplyAllSuggestions(s.result)
	log.Debug().Str("session", s.ID).Int("applied", applied).Msg("all suggestions applied")
	return applied, nil
}

// SelectSegment marks a segment as selected for rendering. Valid only with a
// committed result.
func (s *Session) SelectSegment(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireResult(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.result.Segments) {
		return fmt.Errorf("%w: %d", score.ErrSegmentOutOfRange, index)
	}
	s.selected = index
	return nil
}

// ClearSelection drops the selection. Valid only with a committed result.
func (s *Session) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireResult(); err != nil {
		return err
	}
	s.selected = -1
	return nil
}

// Reset returns the session to idle from any state, discarding result,
// selection, error and input. An analysis still in flight is abandoned when
// it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.status = StatusIdle
	s.inputText = ""
	s.result = nil
	s.selected = -1
	s.errInfo = nil
	log.Debug().Str("session", s.ID).Msg("session reset")
}

// requireResult guards mutations that only make sense on a committed result.
// Callers must hold the lock.
func (s *Session) requireResult() error {
	if s.status != StatusSuccess || s.result == nil {
		return fmt.Errorf("%w: status is %s", ErrNoResult, s.status)
	}
	return nil
}

// classify maps a pipeline error onto the user-facing taxonomy.
// Configuration problems surface verbatim so the operator can fix them;
// everything else gets a generic message because a raw transport or model
// error helps nobody reading a report.
func classify(err error) ErrorInfo {
	switch {
	case errors.Is(err, service.ErrNotConfigured):
		return ErrorInfo{Kind: KindConfiguration, Message: err.Error()}
	case errors.Is(err, parse.ErrEmptyResponse):
		return ErrorInfo{Kind: KindEmptyResponse, Message: genericFailureMessage}
	case errors.Is(err, parse.ErrMalformedResponse):
		return ErrorInfo{Kind: KindMalformed, Message: genericFailureMessage}
	case errors.Is(err, integrity.ErrReconstruction):
		return ErrorInfo{Kind: KindIntegrity, Message: genericFailureMessage}
	default:
		return ErrorInfo{Kind: KindTransport, Message: "analysis service unavailable; check the connection and try again"}
	}
}
