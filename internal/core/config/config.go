package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"svorder/internal/core/errors"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "svorder.toml"

type Config struct {
	Version       int           `toml:"version"`
	IncludePaths  []string      `toml:"include_paths"`
	Defines       []string      `toml:"defines"`
	Jobs          int           `toml:"jobs"`
	Absolute      bool          `toml:"absolute"`
	Frontend      Frontend      `toml:"frontend"`
	Sources       Sources       `toml:"sources"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Frontend struct {
	Name       string     `toml:"name"`
	TreeSitter TreeSitter `toml:"tree_sitter"`
}

type TreeSitter struct {
	GrammarPath  string            `toml:"grammar_path"`
	Manifest     string            `toml:"manifest"`
	Language     string            `toml:"language"`
	NodeKinds    map[string]string `toml:"node_kinds"`
	IdentKinds   []string          `toml:"ident_kinds"`
	EscapedKind  string            `toml:"escaped_kind"`
}

type Sources struct {
	Extensions   []string `toml:"extensions"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
}

type Output struct {
	Format      string `toml:"format"`
	GraphFormat string `toml:"graph_format"`
	GraphPath   string `toml:"graph_path"`
	Database    string `toml:"database"`
}

type Watch struct {
	Debounce             time.Duration `toml:"debounce"`
	MaxRebuildsPerSecond float64       `toml:"max_rebuilds_per_second"`
	CacheEntries         int           `toml:"cache_entries"`
}

type Observability struct {
	MetricsFile  string `toml:"metrics_file"`
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

const (
	FormatSpace = "space"
	FormatLines = "lines"
	FormatJSON  = "json"

	GraphDOT     = "dot"
	GraphTSV     = "tsv"
	GraphMermaid = "mermaid"
)

// DefaultConfig is the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, defaults and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it is set. Otherwise it loads DefaultFile from
// dir if present and falls back to DefaultConfig.
func LoadOrDefault(path, dir string) (*Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}
	candidate := ResolveRelative(dir, DefaultFile)
	if _, err := os.Stat(candidate); err != nil {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(candidate)
	return cfg, candidate, err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	if strings.TrimSpace(cfg.Frontend.Name) == "" {
		cfg.Frontend.Name = "native"
	}
	ts := &cfg.Frontend.TreeSitter
	if strings.TrimSpace(ts.Language) == "" {
		ts.Language = "verilog"
	}
	if len(cfg.Sources.Extensions) == 0 {
		cfg.Sources.Extensions = []string{".sv", ".v"}
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatSpace
	}
	if strings.TrimSpace(cfg.Output.GraphFormat) == "" {
		cfg.Output.GraphFormat = GraphDOT
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerSecond == 0 {
		cfg.Watch.MaxRebuildsPerSecond = 2
	}
	if cfg.Watch.CacheEntries == 0 {
		cfg.Watch.CacheEntries = 4096
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "svorder"
	}
}

// Validate checks a defaulted config. CLI overrides are validated again by
// the caller through this function.
func Validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateVersion,
		validateFrontend,
		validateSources,
		validateOutput,
		validateWatch,
		validateDefines,
	} {
		if err := check(cfg); err != nil {
			return errors.Wrap(err, errors.CodeValidationError, "invalid config")
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	if cfg.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", cfg.Jobs)
	}
	return nil
}

func validateFrontend(cfg *Config) error {
	switch cfg.Frontend.Name {
	case "native":
		return nil
	case "tree-sitter":
	default:
		return fmt.Errorf("frontend.name must be one of: native, tree-sitter")
	}
	ts := cfg.Frontend.TreeSitter
	if strings.TrimSpace(ts.GrammarPath) == "" && strings.TrimSpace(ts.Manifest) == "" {
		return fmt.Errorf("frontend.tree_sitter needs grammar_path or manifest")
	}
	for cst, kind := range ts.NodeKinds {
		if strings.TrimSpace(cst) == "" || strings.TrimSpace(kind) == "" {
			return fmt.Errorf("frontend.tree_sitter.node_kinds entries must not be empty")
		}
	}
	return nil
}

func validateSources(cfg *Config) error {
	for i, ext := range cfg.Sources.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" || ext == "." {
			return fmt.Errorf("sources.extensions[%d] must not be empty", i)
		}
	}
	for _, pattern := range append(append([]string(nil), cfg.Sources.ExcludeDirs...), cfg.Sources.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatSpace, FormatLines, FormatJSON:
	default:
		return fmt.Errorf("output.format must be one of: space, lines, json")
	}
	switch cfg.Output.GraphFormat {
	case GraphDOT, GraphTSV, GraphMermaid:
	default:
		return fmt.Errorf("output.graph_format must be one of: dot, tsv, mermaid")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRebuildsPerSecond < 0 {
		return fmt.Errorf("watch.max_rebuilds_per_second must not be negative")
	}
	if cfg.Watch.CacheEntries < 0 {
		return fmt.Errorf("watch.cache_entries must not be negative")
	}
	return nil
}

func validateDefines(cfg *Config) error {
	for _, d := range cfg.Defines {
		name, _, _ := strings.Cut(strings.TrimSpace(d), "=")
		if !isMacroName(strings.TrimSpace(name)) {
			return fmt.Errorf("defines entry %q is not NAME or NAME=VALUE", d)
		}
	}
	return nil
}

func isMacroName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '$'):
		default:
			return false
		}
	}
	return true
}
