package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/goproof/internal/service"
)

// Config holds runtime configuration for the application.
type Config struct {
	// One-shot mode input and outputs.
	InputPath     string
	OutputPath    string
	OutputPDFPath string
	// ApplyAll accepts the first suggestion of every flagged segment before
	// the report is rendered.
	ApplyAll bool

	// Analysis service
	Vendor     string
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Grounding
	Grounding      bool
	SearxURL       string
	SearxKey       string
	FileSearchPath string
	MaxToolCalls   int
	PerToolTimeout time.Duration
	MaxWallClock   time.Duration
	MaxReferences  int
	PerDomainRefs  int

	// Document handling
	MaxDocumentRunes int

	// Response cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxEntries  int
	CacheClear       bool
	CacheOnly        bool
	CacheStrictPerms bool

	// Serve mode
	ListenAddr  string
	CORSOrigins []string

	// Behavior
	Verbose bool
}

// Defaults shared between the flag declarations and the config file overlay
// so both sides can tell "left at default" apart from "set explicitly".
const (
	DefaultOutputPath = "report.md"
	DefaultCacheDir   = ".goproof-cache"
	DefaultListenAddr = ":8080"
)

// ErrInvalidConfig tags configuration that fails schema validation, so the
// CLI can map it onto its configuration exit code.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs minimal schema validation. Service credentials are
// deliberately not required here: cache-only replay needs none, and the
// service itself reports missing configuration with a stable message.
func ValidateConfig(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Vendor)) {
	case "", service.VendorOpenAI, service.VendorAnthropic:
	default:
		return fmt.Errorf("%w: unknown service vendor %q", ErrInvalidConfig, cfg.Vendor)
	}
	if cfg.MaxToolCalls < 0 || cfg.MaxReferences < 0 || cfg.PerDomainRefs < 0 || cfg.MaxDocumentRunes < 0 {
		return fmt.Errorf("%w: negative limits are not allowed", ErrInvalidConfig)
	}
	if cfg.CacheOnly && strings.TrimSpace(cfg.CacheDir) == "" {
		return fmt.Errorf("%w: cache.only requires cache.dir", ErrInvalidConfig)
	}
	return nil
}
