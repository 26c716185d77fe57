package app

import (
	"context"
	"log/slog"
	"os"

	"svorder/internal/core/watcher"
	"svorder/internal/engine/parser"
	"svorder/internal/shared/observability"
	"svorder/internal/shared/util"
)

// Watch runs the pipeline once, then again every time a source or header
// under the inputs or include paths changes. Every outcome goes to the update
// handler. It blocks until ctx is done.
func (a *App) Watch(ctx context.Context, inputs []string) error {
	if a.cache == nil {
		if err := a.EnableCache(a.Config.Watch.CacheEntries); err != nil {
			return err
		}
	}

	a.rebuild(ctx, inputs, nil)

	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Sources.ExcludeDirs, a.Config.Sources.ExcludeFiles,
		func(changed []string) { a.rebuild(ctx, inputs, changed) })
	if err != nil {
		return err
	}
	defer w.Close()

	w.SetExtensions(append(a.Parser.SupportedExtensions(), parser.HeaderExtensions...))
	w.SetLimiter(util.NewRebuildLimiter(a.Config.Watch.MaxRebuildsPerSecond))
	if err := w.Watch(a.watchRoots(inputs)); err != nil {
		return err
	}
	slog.Info("watching for changes", "inputs", len(inputs), "include_paths", len(a.Config.IncludePaths))

	<-ctx.Done()
	return nil
}

// watchRoots lists the inputs and include directories that exist.
func (a *App) watchRoots(inputs []string) []string {
	var roots []string
	for _, p := range append(append([]string(nil), inputs...), a.Config.IncludePaths...) {
		if _, err := os.Stat(p); err != nil {
			slog.Warn("not watching missing path", "path", p)
			continue
		}
		roots = append(roots, p)
	}
	return util.UniqueStrings(roots)
}

func (a *App) rebuild(ctx context.Context, inputs, changed []string) {
	if ctx.Err() != nil {
		return
	}
	for _, p := range changed {
		if !a.Parser.IsSupportedPath(p) {
			// Headers are not part of any cache key.
			slog.Debug("header changed, dropping parse cache", "path", p)
			a.cache.purge()
			break
		}
	}
	if len(changed) > 0 {
		slog.Info("detected changes", "count", len(changed))
	}

	res, err := a.Run(ctx, inputs)
	if err == nil {
		if werr := a.WriteArtifacts(res); werr != nil {
			slog.Error("failed to write outputs", "error", werr)
		}
		observability.RebuildsTotal.WithLabelValues("ok").Inc()
	} else {
		slog.Error("run failed", "error", err)
		observability.RebuildsTotal.WithLabelValues("error").Inc()
	}
	a.emitUpdate(Update{Result: res, Err: err})
}
