package config

import (
	"path/filepath"
	"strings"
)

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// ResolvePaths rewrites every file-system path in cfg that is relative so
// that it is relative to base, the directory holding the config file. Empty
// optional paths stay empty.
func ResolvePaths(cfg *Config, base string) {
	for i, dir := range cfg.IncludePaths {
		cfg.IncludePaths[i] = ResolveRelative(base, dir)
	}
	for _, p := range []*string{
		&cfg.Frontend.TreeSitter.GrammarPath,
		&cfg.Frontend.TreeSitter.Manifest,
		&cfg.Output.GraphPath,
		&cfg.Output.Database,
		&cfg.Observability.MetricsFile,
	} {
		if strings.TrimSpace(*p) != "" {
			*p = ResolveRelative(base, *p)
		}
	}
}
