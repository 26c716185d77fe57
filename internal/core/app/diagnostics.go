package app

import (
	"context"
	"log/slog"

	"svorder/internal/engine/graph"
)

// logDiagnostics reports how the order came about. It only runs at debug
// level; none of it feeds back into the result.
func logDiagnostics(logger *slog.Logger, res *Result) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	label := func(id graph.FileID) string { return res.Labels[id] }

	for _, s := range res.Tables.Shadowed {
		logger.Debug("definition shadowed",
			"namespace", string(s.Namespace), "name", s.Name,
			"previous", label(s.Previous), "winner", label(s.Winner))
	}
	for _, e := range res.Graph.Edges() {
		logger.Debug("dependency",
			"file", label(e.From), "uses", string(e.Kind), "name", e.Name, "from", label(e.To))
	}
	for _, s := range res.Graph.Suppressed() {
		logger.Debug("suppressed module edge",
			"file", label(s.From), "module", s.Name, "defined_in", label(s.To), "package", s.Via)
	}

	if len(res.Ordering.Omitted) == 0 {
		return
	}
	member := make(map[graph.FileID][]FileCycle)
	for _, comp := range res.Graph.StronglyConnected() {
		c := FileCycle{Files: pick(res.Labels, res.Graph.CyclePath(comp))}
		for _, id := range comp {
			member[id] = append(member[id], c)
		}
	}
	for _, id := range res.Ordering.Omitted {
		attrs := []any{"file", label(id)}
		if cycles := member[id]; len(cycles) > 0 {
			attrs = append(attrs, "cycle", cycles[0].Files)
		} else {
			attrs = append(attrs, "reason", "depended on only by omitted files")
		}
		logger.Warn("file omitted from order", attrs...)
	}
}

// FileCycle is a dependency cycle in display paths, starting and ending at
// the same file.
type FileCycle struct {
	Files []string
}

// Cycles returns the dependency cycles of r, first input file first.
func (r *Result) Cycles() []FileCycle {
	var out []FileCycle
	for _, comp := range r.Graph.StronglyConnected() {
		out = append(out, FileCycle{Files: pick(r.Labels, r.Graph.CyclePath(comp))})
	}
	return out
}
