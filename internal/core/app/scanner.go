package app

import (
	"io/fs"
	"os"
	"path/filepath"

	"svorder/internal/core/errors"
	"svorder/internal/shared/util"

	"github.com/gobwas/glob"
)

// ExpandInputs turns the positional arguments into the list of files to
// parse. Files are kept as given, even with an unknown extension; directories
// are walked in lexical order for supported extensions, skipping excluded
// directory and file names. A path listed twice is parsed once, at its first
// position.
func (a *App) ExpandInputs(inputs []string) ([]string, error) {
	dirGlobs, err := compileGlobs(a.Config.Sources.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(a.Config.Sources.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil || !info.IsDir() {
			// Unreadable inputs fail later with the parser's error.
			files = append(files, filepath.Clean(input))
			continue
		}
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := d.Name()
			if d.IsDir() {
				if path != input && matchAny(dirGlobs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.Parser.IsSupportedPath(path) || matchAny(fileGlobs, base) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "scan directory"), errors.CtxPath, input)
		}
	}
	return util.UniqueStrings(files), nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "invalid "+label+" pattern "+p)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
