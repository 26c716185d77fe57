package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: SVORDER_[SECTION]_[KEY] (e.g., SVORDER_OUTPUT_FORMAT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Jobs, "SVORDER_JOBS")
	setEnvBool(&cfg.Absolute, "SVORDER_ABSOLUTE")
	setEnvList(&cfg.IncludePaths, "SVORDER_INCLUDE_PATHS")
	setEnvList(&cfg.Defines, "SVORDER_DEFINES")

	setEnvString(&cfg.Frontend.Name, "SVORDER_FRONTEND_NAME")
	setEnvString(&cfg.Frontend.TreeSitter.GrammarPath, "SVORDER_FRONTEND_GRAMMAR_PATH")

	setEnvString(&cfg.Output.Format, "SVORDER_OUTPUT_FORMAT")
	setEnvString(&cfg.Output.GraphFormat, "SVORDER_OUTPUT_GRAPH_FORMAT")
	setEnvString(&cfg.Output.GraphPath, "SVORDER_OUTPUT_GRAPH_PATH")
	setEnvString(&cfg.Output.Database, "SVORDER_OUTPUT_DATABASE")

	setEnvDuration(&cfg.Watch.Debounce, "SVORDER_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsFile, "SVORDER_OBSERVABILITY_METRICS_FILE")
	setEnvString(&cfg.Observability.MetricsAddr, "SVORDER_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "SVORDER_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits on the OS path list separator, like PATH.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		var out []string
		for _, part := range strings.Split(val, string(os.PathListSeparator)) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
