package app

import (
	"context"
	"log/slog"
	"time"

	"svorder/internal/core/errors"
	"svorder/internal/engine/graph"
	"svorder/internal/engine/symbols"
	"svorder/internal/shared/observability"
	"svorder/internal/shared/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Result is one complete run: the records in input order, the resolved graph
// and the traversal, plus the paths to print.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Files     []string
	Graph     *graph.Graph
	Tables    graph.Tables
	Ordering  graph.Ordering

	// Labels holds the display path of every file, indexed by FileID.
	Labels  []string
	Order   []string
	Omitted []string
}

// Run parses every input, resolves dependencies and orders the files. The
// first parse failure aborts the run.
func (a *App) Run(ctx context.Context, inputs []string) (*Result, error) {
	runID := uuid.NewString()
	logger := slog.Default().With("run_id", runID)
	ctx, span := observability.Tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("run_id", runID), attribute.Int("inputs", len(inputs))))
	defer span.End()

	res, err := a.run(ctx, logger, runID, inputs)
	a.record(res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (a *App) run(ctx context.Context, logger *slog.Logger, runID string, inputs []string) (*Result, error) {
	res := &Result{RunID: runID, StartedAt: time.Now().UTC()}

	files, err := a.ExpandInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New(errors.CodeValidationError, "no source files to order")
	}
	res.Files = files

	syms, err := a.parseAll(ctx, logger, files)
	if err != nil {
		return nil, err
	}

	recs := graph.NewRecords(len(files))
	for i, path := range files {
		if _, err := recs.Add(path, syms[i]); err != nil {
			return nil, err
		}
	}

	logger.Debug("resolving dependencies", "files", recs.Len())
	_, resolveSpan := observability.Tracer.Start(ctx, "pipeline.resolve")
	start := time.Now()
	res.Tables = graph.BuildTables(recs)
	res.Graph = graph.Resolve(recs, res.Tables)
	observability.AnalysisDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	resolveSpan.SetAttributes(attribute.Int("edges", len(res.Graph.Edges())))
	resolveSpan.End()

	_, orderSpan := observability.Tracer.Start(ctx, "pipeline.order")
	start = time.Now()
	res.Ordering = res.Graph.Order()
	observability.AnalysisDuration.WithLabelValues("order").Observe(time.Since(start).Seconds())
	orderSpan.SetAttributes(attribute.Int("omitted", len(res.Ordering.Omitted)))
	orderSpan.End()

	if err := a.label(res, recs); err != nil {
		return nil, err
	}

	observability.GraphNodes.Set(float64(recs.Len()))
	observability.GraphEdges.Set(float64(len(res.Graph.Edges())))
	observability.SuppressedEdgesTotal.Add(float64(len(res.Graph.Suppressed())))
	observability.OmittedFiles.Set(float64(len(res.Ordering.Omitted)))

	logDiagnostics(logger, res)
	res.Duration = time.Since(res.StartedAt)
	logger.Debug("run complete", "files", recs.Len(), "ordered", len(res.Order), "omitted", len(res.Omitted), "duration", res.Duration)
	return res, nil
}

// parseAll extracts symbols from files with at most Config.Jobs parsers in
// flight. Results keep input positions.
func (a *App) parseAll(ctx context.Context, logger *slog.Logger, files []string) ([]symbols.Symbols, error) {
	ctx, span := observability.Tracer.Start(ctx, "pipeline.parse", trace.WithAttributes(attribute.Int("files", len(files))))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())
	}()

	out := make([]symbols.Symbols, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Config.Jobs, 1))
	for i, path := range files {
		g.Go(func() error {
			s, err := a.parseOne(gctx, logger, path)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) parseOne(ctx context.Context, logger *slog.Logger, path string) (symbols.Symbols, error) {
	if err := ctx.Err(); err != nil {
		return symbols.Symbols{}, err
	}

	var key cacheKey
	hasKey := false
	if a.cache != nil {
		if key, hasKey = a.cache.key(path); hasKey {
			if s, ok := a.cache.get(key); ok {
				observability.ParseCacheHitsTotal.Inc()
				logger.Debug("parse cache hit", "file", path)
				return s, nil
			}
		}
	}

	logger.Debug("parsing", "file", path)
	start := time.Now()
	tree, _, err := a.Parser.ParseFile(ctx, path, a.defines, a.Config.IncludePaths)
	observability.ParsingDuration.WithLabelValues(a.Parser.Frontend().Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			observability.ParseFailuresTotal.Inc()
		}
		return symbols.Symbols{}, err
	}
	observability.FilesParsedTotal.Inc()

	s, err := symbols.Extract(tree)
	if err != nil {
		return symbols.Symbols{}, errors.AddContext(err, errors.CtxSource, path)
	}
	if hasKey {
		a.cache.add(key, s)
	}
	return s, nil
}

// label fills the display paths: as given, or canonical when Absolute is set.
func (a *App) label(res *Result, recs *graph.Records) error {
	res.Labels = make([]string, recs.Len())
	for f := range recs.All() {
		res.Labels[f.ID] = f.Path
		if !a.Config.Absolute {
			continue
		}
		p, err := util.CanonicalPath(f.Path)
		if err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "resolve absolute path"), errors.CtxPath, f.Path)
		}
		res.Labels[f.ID] = p
	}
	res.Order = pick(res.Labels, res.Ordering.Order)
	res.Omitted = pick(res.Labels, res.Ordering.Omitted)
	return nil
}

func pick(labels []string, ids []graph.FileID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = labels[id]
	}
	return out
}
