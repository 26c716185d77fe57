package ports

import (
	"context"

	"svorder/internal/data/export"
	"svorder/internal/engine/parser"
)

// CodeParser abstracts source parsing and source-file support checks.
type CodeParser interface {
	ParseFile(ctx context.Context, path string, defines parser.Defines, includeDirs []string) (*parser.Tree, parser.Defines, error)
	Frontend() parser.Frontend
	IsSupportedPath(path string) bool
	IsWatchedPath(path string) bool
	SupportedExtensions() []string
}

// RunStore persists finished runs. The pipeline never reads them back.
type RunStore interface {
	SaveRun(run export.Run) error
	Close() error
}
