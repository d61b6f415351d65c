package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Nested sections map
// naturally onto the dotted flag names.
type FileConfig struct {
	Input     string `yaml:"input" json:"input"`
	Output    string `yaml:"output" json:"output"`
	OutputPDF string `yaml:"outputPDF" json:"outputPDF"`
	ApplyAll  bool   `yaml:"applyAll" json:"applyAll"`

	Service struct {
		Vendor  string `yaml:"vendor" json:"vendor"`
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
	} `yaml:"service" json:"service"`

	Grounding struct {
		Enable         *bool         `yaml:"enable" json:"enable"`
		MaxToolCalls   int           `yaml:"maxToolCalls" json:"maxToolCalls"`
		PerToolTimeout time.Duration `yaml:"perToolTimeout" json:"perToolTimeout"`
		MaxWallClock   time.Duration `yaml:"maxWallClock" json:"maxWallClock"`
		MaxReferences  int           `yaml:"maxReferences" json:"maxReferences"`
		PerDomain      int           `yaml:"perDomain" json:"perDomain"`
	} `yaml:"grounding" json:"grounding"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	Search struct {
		File string `yaml:"file" json:"file"`
	} `yaml:"search" json:"search"`

	Document struct {
		MaxRunes int `yaml:"maxRunes" json:"maxRunes"`
	} `yaml:"document" json:"document"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
		Clear       bool          `yaml:"clear" json:"clear"`
		Only        bool          `yaml:"only" json:"only"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Serve struct {
		Addr        string   `yaml:"addr" json:"addr"`
		CORSOrigins []string `yaml:"corsOrigins" json:"corsOrigins"`
	} `yaml:"serve" json:"serve"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto cfg for fields still at their
// flag defaults. Flags should already have been parsed; the file supplies
// what the command line left unset. Boolean toggles merge or-wise, and
// grounding.enable, when present, decides that toggle either way.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if cfg.InputPath == "" && fc.Input != "" { cfg.InputPath = fc.Input }
	if (cfg.OutputPath == "" || cfg.OutputPath == DefaultOutputPath) && fc.Output != "" { cfg.OutputPath = fc.Output }
	if cfg.OutputPDFPath == "" && fc.OutputPDF != "" { cfg.OutputPDFPath = fc.OutputPDF }
	if !cfg.ApplyAll && fc.ApplyAll { cfg.ApplyAll = true }

	if cfg.Vendor == "" && fc.Service.Vendor != "" { cfg.Vendor = fc.Service.Vendor }
	if cfg.LLMBaseURL == "" && fc.Service.BaseURL != "" { cfg.LLMBaseURL = fc.Service.BaseURL }
	if cfg.LLMModel == "" && fc.Service.Model != "" { cfg.LLMModel = fc.Service.Model }
	if cfg.LLMAPIKey == "" && fc.Service.APIKey != "" { cfg.LLMAPIKey = fc.Service.APIKey }

	if fc.Grounding.Enable != nil { cfg.Grounding = *fc.Grounding.Enable }
	if cfg.MaxToolCalls == 0 && fc.Grounding.MaxToolCalls > 0 { cfg.MaxToolCalls = fc.Grounding.MaxToolCalls }
	if cfg.PerToolTimeout == 0 && fc.Grounding.PerToolTimeout > 0 { cfg.PerToolTimeout = fc.Grounding.PerToolTimeout }
	if cfg.MaxWallClock == 0 && fc.Grounding.MaxWallClock > 0 { cfg.MaxWallClock = fc.Grounding.MaxWallClock }
	if cfg.MaxReferences == 0 && fc.Grounding.MaxReferences > 0 { cfg.MaxReferences = fc.Grounding.MaxReferences }
	if cfg.PerDomainRefs == 0 && fc.Grounding.PerDomain > 0 { cfg.PerDomainRefs = fc.Grounding.PerDomain }

	if cfg.SearxURL == "" && fc.Searx.URL != "" { cfg.SearxURL = fc.Searx.URL }
	if cfg.SearxKey == "" && fc.Searx.Key != "" { cfg.SearxKey = fc.Searx.Key }
	if cfg.FileSearchPath == "" && fc.Search.File != "" { cfg.FileSearchPath = fc.Search.File }

	if cfg.MaxDocumentRunes == 0 && fc.Document.MaxRunes > 0 { cfg.MaxDocumentRunes = fc.Document.MaxRunes }

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" { cfg.CacheDir = fc.Cache.Dir }
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 { cfg.CacheMaxAge = fc.Cache.MaxAge }
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 { cfg.CacheMaxEntries = fc.Cache.MaxEntries }
	if !cfg.CacheClear && fc.Cache.Clear { cfg.CacheClear = true }
	if !cfg.CacheOnly && fc.Cache.Only { cfg.CacheOnly = true }
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }

	if (cfg.ListenAddr == "" || cfg.ListenAddr == DefaultListenAddr) && fc.Serve.Addr != "" { cfg.ListenAddr = fc.Serve.Addr }
	if len(cfg.CORSOrigins) == 0 && len(fc.Serve.CORSOrigins) > 0 { cfg.CORSOrigins = append([]string{}, fc.Serve.CORSOrigins...) }

	if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}
