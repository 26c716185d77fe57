package app

import (
	"log/slog"
	"maps"
	"sync"

	"svorder/internal/core/config"
	"svorder/internal/core/errors"
	"svorder/internal/core/ports"
	"svorder/internal/engine/parser"
)

// Update is what watch mode hands to its subscriber after every rerun.
type Update struct {
	Result *Result
	Err    error
}

// App owns the long-lived pieces of a svorder process: the configured parser,
// the predefined macros and, in watch mode, the parse cache and the last
// result.
type App struct {
	Config  *config.Config
	Parser  ports.CodeParser
	defines parser.Defines
	cache   *parseCache

	updateMu sync.RWMutex
	onUpdate func(Update)

	lastMu  sync.RWMutex
	last    *Result
	lastErr error
}

// New builds the frontend named by cfg and validates the predefined macros.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	defines, bad, ok := parser.DefinesFrom(cfg.Defines)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "invalid define %q, expected NAME or NAME=VALUE", bad)
	}

	fe, err := parser.NewFrontend(cfg.Frontend.Name, treeSitterConfig(cfg.Frontend.TreeSitter))
	if err != nil {
		return nil, err
	}
	slog.Debug("frontend ready", "frontend", fe.Name())

	return &App{
		Config:  cfg,
		Parser:  parser.NewParser(fe, cfg.Sources.Extensions),
		defines: defines,
	}, nil
}

// NewWithParser is New with a caller-supplied parser.
func NewWithParser(cfg *config.Config, p ports.CodeParser) (*App, error) {
	defines, bad, ok := parser.DefinesFrom(cfg.Defines)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "invalid define %q, expected NAME or NAME=VALUE", bad)
	}
	return &App{Config: cfg, Parser: p, defines: defines}, nil
}

// treeSitterConfig layers the configured overrides on top of the defaults for
// tree-sitter-verilog.
func treeSitterConfig(c config.TreeSitter) parser.TreeSitterConfig {
	ts := parser.DefaultTreeSitterConfig()
	ts.GrammarPath = c.GrammarPath
	ts.Manifest = c.Manifest
	if c.Language != "" {
		ts.Language = c.Language
	}
	if len(c.NodeKinds) > 0 {
		ts.NodeKinds = maps.Clone(c.NodeKinds)
	}
	if len(c.IdentKinds) > 0 {
		ts.IdentKinds = append([]string(nil), c.IdentKinds...)
	}
	if c.EscapedKind != "" {
		ts.EscapedKind = c.EscapedKind
	}
	return ts
}

// EnableCache turns on reuse of parse results keyed by file content. Only
// watch mode needs it.
func (a *App) EnableCache(size int) error {
	c, err := newParseCache(size)
	if err != nil {
		return err
	}
	a.cache = c
	return nil
}

func (a *App) SetUpdateHandler(fn func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = fn
}

func (a *App) record(res *Result, err error) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if err == nil {
		a.last = res
	}
	a.lastErr = err
}

func (a *App) emitUpdate(u Update) {
	a.record(u.Result, u.Err)

	a.updateMu.RLock()
	fn := a.onUpdate
	a.updateMu.RUnlock()
	if fn != nil {
		fn(u)
	}
}

// Last returns the most recent successful result and the error of the most
// recent run, if it failed.
func (a *App) Last() (*Result, error) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last, a.lastErr
}
