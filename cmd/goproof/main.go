package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goproof/internal/app"
	"github.com/hyperifyio/goproof/internal/service"
)

func main() {
	// A .env file fills gaps; the real environment wins.
	_ = godotenv.Load()

	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath string
		inputPath  string
		outputPath string
		outputPDF  string
		applyAll   bool

		vendor     string
		llmBaseURL string
		llmModel   string
		llmKey     string

		grounding      bool
		searxURL       string
		searxKey       string
		fileSearchPath string
		maxToolCalls   int
		perToolTimeout time.Duration
		maxWallClock   time.Duration
		maxReferences  int
		perDomainRefs  int

		maxDocRunes int

		cacheDir     string
		cacheMaxAge  time.Duration
		cacheEntries int
		cacheClear   bool
		cacheOnly    bool
		cacheStrict  bool

		serve      bool
		listenAddr string
		corsList   string

		verbose     bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("GOPROOF_CONFIG"), "Path to YAML or JSON config file; flags take precedence")
	flag.StringVar(&inputPath, "input", "", "Path to the document to analyze (.txt, .md or .html)")
	flag.StringVar(&outputPath, "output", app.DefaultOutputPath, "Path to write the Markdown report")
	flag.StringVar(&outputPDF, "output.pdf", "", "Optional path to also write a PDF rendition")
	flag.BoolVar(&applyAll, "apply-all", false, "Accept the first suggestion of every flagged segment before reporting")
	flag.StringVar(&vendor, "service.vendor", os.Getenv("SERVICE_VENDOR"), "Analysis service vendor: openai or anthropic")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the analysis service")
	flag.BoolVar(&grounding, "grounding", true, "Offer the web_search grounding tool to the model")
	flag.StringVar(&searxURL, "searx.url", os.Getenv("SEARX_URL"), "SearxNG base URL for grounding searches")
	flag.StringVar(&searxKey, "searx.key", os.Getenv("SEARX_KEY"), "SearxNG API key (optional)")
	flag.StringVar(&fileSearchPath, "search.file", os.Getenv("SEARCH_FILE"), "Path to JSON fixtures for the offline search provider")
	flag.IntVar(&maxToolCalls, "grounding.maxCalls", 0, "Maximum grounding searches per analysis (0 uses the built-in default)")
	flag.DurationVar(&perToolTimeout, "grounding.perToolTimeout", 0, "Timeout per grounding search (0 uses the built-in default)")
	flag.DurationVar(&maxWallClock, "grounding.maxWallClock", 0, "Wall-clock budget for one grounded analysis (0 disables)")
	flag.IntVar(&maxReferences, "grounding.maxReferences", 0, "Maximum references kept per analysis (0 uses the built-in default)")
	flag.IntVar(&perDomainRefs, "grounding.perDomain", 0, "Maximum references per domain (0 uses the built-in default)")
	flag.IntVar(&maxDocRunes, "doc.maxRunes", 0, "Maximum document runes sent for analysis (0 uses the built-in default)")
	flag.StringVar(&cacheDir, "cache.dir", app.DefaultCacheDir, "Response cache directory")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age before cached responses are purged (0 disables)")
	flag.IntVar(&cacheEntries, "cache.maxEntries", 0, "Max cached responses kept, oldest evicted first (0 disables)")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear the response cache before starting")
	flag.BoolVar(&cacheOnly, "cache.only", false, "Serve analyses from cache only; fail on a miss")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of a one-shot analysis")
	flag.StringVar(&listenAddr, "addr", app.DefaultListenAddr, "HTTP API listen address for -serve")
	flag.StringVar(&corsList, "cors", os.Getenv("CORS_ORIGINS"), "Comma-separated allowed CORS origins for -serve")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(app.VersionString())
		return
	}

	cfg := app.Config{
		InputPath:        inputPath,
		OutputPath:       outputPath,
		OutputPDFPath:    outputPDF,
		ApplyAll:         applyAll,
		Vendor:           vendor,
		LLMBaseURL:       llmBaseURL,
		LLMModel:         llmModel,
		LLMAPIKey:        llmKey,
		Grounding:        grounding,
		SearxURL:         searxURL,
		SearxKey:         searxKey,
		FileSearchPath:   fileSearchPath,
		MaxToolCalls:     maxToolCalls,
		PerToolTimeout:   perToolTimeout,
		MaxWallClock:     maxWallClock,
		MaxReferences:    maxReferences,
		PerDomainRefs:    perDomainRefs,
		MaxDocumentRunes: maxDocRunes,
		CacheDir:         cacheDir,
		CacheMaxAge:      cacheMaxAge,
		CacheMaxEntries:  cacheEntries,
		CacheClear:       cacheClear,
		CacheOnly:        cacheOnly,
		CacheStrictPerms: cacheStrict,
		ListenAddr:       listenAddr,
		Verbose:          verbose,
	}
	if s := strings.TrimSpace(corsList); s != "" {
		parts := strings.Split(s, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if v := strings.TrimSpace(p); v != "" {
				list = append(list, v)
			}
		}
		cfg.CORSOrigins = list
	}

	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file unusable")
			os.Exit(2)
		}
		app.ApplyFileConfig(&cfg, fc)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := run(cfg, serve); err != nil {
		log.Error().Err(err).Msg("run failed")
		// Exit code policy: 2 flags a configuration problem the operator
		// can fix, everything else fails with 1.
		if errors.Is(err, app.ErrInvalidConfig) || errors.Is(err, service.ErrNotConfigured) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfg app.Config, serve bool) error {
	ctx := context.Background()
	if serve {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if serve {
		return a.Serve(ctx)
	}
	return a.Run(ctx)
}
