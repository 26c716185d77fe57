package parser

import (
	"context"
	"path/filepath"
	"strings"

	"svorder/internal/core/errors"
	"svorder/internal/shared/util"
)

const (
	FrontendNative     = "native"
	FrontendTreeSitter = "tree-sitter"
)

var (
	DefaultExtensions = []string{".sv", ".v"}
	HeaderExtensions  = []string{".svh", ".vh", ".svi"}
)

// Parser is the entry point used by the pipeline: it owns the frontend and
// knows which paths are compilation units and which are headers.
type Parser struct {
	frontend   Frontend
	extensions map[string]bool
	headers    map[string]bool
}

func NewParser(frontend Frontend, extensions []string) *Parser {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	p := &Parser{
		frontend:   frontend,
		extensions: make(map[string]bool, len(extensions)),
		headers:    make(map[string]bool, len(HeaderExtensions)),
	}
	for _, ext := range extensions {
		p.extensions[normalizeExt(ext)] = true
	}
	for _, ext := range HeaderExtensions {
		p.headers[ext] = true
	}
	return p
}

// NewFrontend builds the frontend named by name.
func NewFrontend(name string, ts TreeSitterConfig) (Frontend, error) {
	switch name {
	case "", FrontendNative:
		return NewNativeFrontend(), nil
	case FrontendTreeSitter:
		return NewTreeSitterFrontend(ts)
	default:
		return nil, errors.Newf(errors.CodeValidationError, "unknown frontend %q", name)
	}
}

func (p *Parser) Frontend() Frontend { return p.frontend }

// ParseFile parses path and tags any failure with the input file, which can
// differ from the file the error occurred in when includes are involved.
func (p *Parser) ParseFile(ctx context.Context, path string, defines Defines, includeDirs []string) (*Tree, Defines, error) {
	tree, out, err := p.frontend.Parse(ctx, path, defines, includeDirs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, err
		}
		err = errors.AddContext(err, errors.CtxSource, path)
		return nil, nil, errors.AddContext(err, errors.CtxFrontend, p.frontend.Name())
	}
	return tree, out, nil
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.extensions[normalizeExt(filepath.Ext(path))]
}

// IsWatchedPath reports whether a change to path can affect the order.
func (p *Parser) IsWatchedPath(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	return p.extensions[ext] || p.headers[ext]
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
