package app

import (
	"log/slog"
	"strings"

	"svorder/internal/core/errors"
	"svorder/internal/core/ports"
	"svorder/internal/data/export"
	"svorder/internal/output"
	"svorder/internal/shared/util"
)

// openStore is swapped in tests.
var openStore = func(path string) (ports.RunStore, error) {
	return export.Open(path)
}

// WriteArtifacts writes every configured side output of res: the graph
// export, the SQLite run record. Metrics are written separately at exit.
func (a *App) WriteArtifacts(res *Result) error {
	out := a.Config.Output
	if strings.TrimSpace(out.GraphPath) != "" {
		if err := a.writeGraph(res, out.GraphFormat, out.GraphPath); err != nil {
			return err
		}
	}
	if strings.TrimSpace(out.Database) != "" {
		if err := a.writeDatabase(res, out.Database); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) writeGraph(res *Result, format, path string) error {
	view, err := output.NewView(res.Graph, res.Labels, res.Ordering)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build graph view")
	}
	text, err := output.RenderGraph(format, view)
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "render graph")
	}
	if err := util.WriteStringWithDirs(path, text, 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write graph"), errors.CtxPath, path)
	}
	slog.Debug("graph written", "path", path, "format", format)
	return nil
}

func (a *App) writeDatabase(res *Result, path string) error {
	store, err := openStore(path)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	defer store.Close()
	err = store.SaveRun(export.Run{
		ID:        res.RunID,
		StartedAt: res.StartedAt,
		Graph:     res.Graph,
		Ordering:  res.Ordering,
	})
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "export run"), errors.CtxPath, path)
	}
	slog.Debug("run exported", "path", path, "run_id", res.RunID)
	return nil
}
