package parser

import (
	"context"
	"os"

	"svorder/internal/core/errors"
)

// Frontend turns one source file into a Tree. Implementations must be safe for
// concurrent use; the defines table passed in is never modified.
type Frontend interface {
	Name() string
	Parse(ctx context.Context, path string, defines Defines, includeDirs []string) (*Tree, Defines, error)
}

// NativeFrontend runs the built-in preprocessor and structural parser.
type NativeFrontend struct {
	readFile func(string) ([]byte, error)
}

func NewNativeFrontend() *NativeFrontend {
	return &NativeFrontend{readFile: os.ReadFile}
}

func (f *NativeFrontend) Name() string { return FrontendNative }

func (f *NativeFrontend) Parse(ctx context.Context, path string, defines Defines, includeDirs []string) (*Tree, Defines, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	src, err := f.readFile(path)
	if err != nil {
		return nil, nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}

	pp := NewPreprocessor(path, src, defines.Clone(), includeDirs)
	pp.readFile = f.readFile
	tree := NewTree(path)
	if err := newStructParser(pp, tree).run(); err != nil {
		return nil, nil, err
	}
	return tree, pp.Defines(), nil
}
