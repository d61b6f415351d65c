// Package app wires configuration, the analysis service, sessions and report
// output into the two run modes of the goproof binary: one-shot document
// analysis and the HTTP API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goproof/internal/cache"
	"github.com/hyperifyio/goproof/internal/compose"
	"github.com/hyperifyio/goproof/internal/extract"
	"github.com/hyperifyio/goproof/internal/httpapi"
	"github.com/hyperifyio/goproof/internal/report"
	"github.com/hyperifyio/goproof/internal/search"
	"github.com/hyperifyio/goproof/internal/service"
	"github.com/hyperifyio/goproof/internal/session"
)

type App struct {
	cfg    Config
	client *service.Client
}

// New validates cfg, performs cache maintenance and builds the analysis
// client. Nothing talks to the network here beyond a best-effort model
// preflight; the first analysis call surfaces real connectivity errors.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var responses *cache.ResponseCache
	if dir := strings.TrimSpace(cfg.CacheDir); dir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(dir); err != nil {
				return nil, fmt.Errorf("clear cache: %w", err)
			}
			log.Info().Str("dir", dir).Msg("response cache cleared")
		}
		if cfg.CacheMaxAge > 0 || cfg.CacheMaxEntries > 0 {
			removed, err := cache.EnforceLimits(dir, cfg.CacheMaxAge, cfg.CacheMaxEntries)
			if err != nil {
				// Maintenance failures must not block startup.
				log.Warn().Err(err).Msg("cache limit enforcement failed")
			} else if removed > 0 {
				log.Info().Int("removed", removed).Str("dir", dir).Msg("cache entries purged")
			}
		}
		responses = &cache.ResponseCache{Dir: dir, StrictPerms: cfg.CacheStrictPerms}
	}

	a := &App{cfg: cfg}
	a.client = &service.Client{
		Vendor:         cfg.Vendor,
		BaseURL:        cfg.LLMBaseURL,
		APIKey:         cfg.LLMAPIKey,
		Model:          cfg.LLMModel,
		Search:         searchProvider(cfg),
		Cache:          responses,
		CacheOnly:      cfg.CacheOnly,
		MaxToolCalls:   cfg.MaxToolCalls,
		PerToolTimeout: cfg.PerToolTimeout,
		MaxWallClock:   cfg.MaxWallClock,
		MaxReferences:  cfg.MaxReferences,
		PerDomainRefs:  cfg.PerDomainRefs,
	}

	if !cfg.CacheOnly {
		preflightCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.client.Preflight(preflightCtx); err != nil {
			// Best effort: the session classifies configuration errors with
			// a stable message, so do not fail hard here.
			log.Warn().Err(err).Msg("service preflight failed; continuing")
		}
	}
	return a, nil
}

func (a *App) Close() {
	// nothing to release yet
}

// searchProvider picks the grounding search backend. The offline file
// provider wins over SearxNG when both are configured, matching its use for
// deterministic replays.
func searchProvider(cfg Config) search.Provider {
	if p := strings.TrimSpace(cfg.FileSearchPath); p != "" {
		return &search.FileProvider{Path: p}
	}
	if u := strings.TrimSpace(cfg.SearxURL); u != "" {
		return &search.SearxNG{BaseURL: u, APIKey: cfg.SearxKey}
	}
	return nil
}

// NewSession mints an analysis session bound to the configured service.
func (a *App) NewSession() *session.Session {
	return session.New(a.client, compose.Options{
		MaxDocumentRunes: a.cfg.MaxDocumentRunes,
		Grounding:        a.cfg.Grounding,
	})
}

// Run performs one analysis of the configured input document and writes the
// markdown report, plus a PDF rendition when requested. Callers map the
// returned errors onto exit codes.
func (a *App) Run(ctx context.Context) error {
	if strings.TrimSpace(a.cfg.InputPath) == "" {
		return errors.New("input path is required")
	}

	doc, err := extract.FromFile(a.cfg.InputPath)
	if err != nil {
		return err
	}
	log.Info().Str("input", a.cfg.InputPath).Str("title", doc.Title).Int("chars", len(doc.Text)).Msg("document loaded")

	sess := a.NewSession()
	if err := sess.StartAnalysis(ctx, doc.Text); err != nil {
		return err
	}
	if a.cfg.ApplyAll {
		applied, err := sess.ApplyAllSuggestions()
		if err != nil {
			return fmt.Errorf("apply all suggestions: %w", err)
		}
		log.Info().Int("applied", applied).Msg("suggestions applied before reporting")
	}
	snap := sess.Snapshot()

	md := report.RenderMarkdown(snap.Result, report.Options{
		Title:       doc.Title,
		GeneratedAt: time.Now().UTC(),
	})
	out := a.cfg.OutputPath
	if strings.TrimSpace(out) == "" {
		out = DefaultOutputPath
	}
	if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().
		Str("output", out).
		Int("plagiarism", snap.Result.PlagiarismPercentage).
		Int("grammar", snap.Result.GrammarScore).
		Int("segments", len(snap.Result.Segments)).
		Msg("report written")

	if pdf := strings.TrimSpace(a.cfg.OutputPDFPath); pdf != "" {
		if err := report.WritePDF(md, pdf); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("output", pdf).Msg("pdf written")
	}
	return nil
}

// Serve runs the HTTP API until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ListenAddr)
	if addr == "" {
		addr = DefaultListenAddr
	}
	srv := httpapi.New(httpapi.Config{Addr: addr, CORSOrigins: a.cfg.CORSOrigins}, a.NewSession)
	return srv.ListenAndServe(ctx)
}
