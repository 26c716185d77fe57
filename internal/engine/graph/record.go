package graph

import (
	"iter"

	"svorder/internal/core/errors"
	"svorder/internal/engine/symbols"

	"fortio.org/safecast"
)

// FileID indexes a FileRecord in its Records arena. IDs follow input order.
type FileID uint32

// FileRecord is one parsed input file. Two records are the same file iff
// their paths are equal; the arena enforces that.
type FileRecord struct {
	ID   FileID
	Path string
	symbols.Symbols
}

// Records is the arena of file records, in input order.
type Records struct {
	files  []*FileRecord
	byPath map[string]FileID
}

func NewRecords(capacity int) *Records {
	return &Records{
		files:  make([]*FileRecord, 0, capacity),
		byPath: make(map[string]FileID, capacity),
	}
}

// Add appends a record for path. Adding the same path twice is an error.
func (r *Records) Add(path string, syms symbols.Symbols) (FileID, error) {
	if _, dup := r.byPath[path]; dup {
		return 0, errors.Newf(errors.CodeValidationError, "file %s added twice", path).
			WithContext(errors.CtxPath, path)
	}
	n, err := safecast.Conv[uint32](len(r.files))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "too many input files")
	}
	id := FileID(n)
	r.files = append(r.files, &FileRecord{ID: id, Path: path, Symbols: syms})
	r.byPath[path] = id
	return id, nil
}

func (r *Records) Get(id FileID) *FileRecord {
	if int(id) >= len(r.files) {
		return nil
	}
	return r.files[id]
}

func (r *Records) Lookup(path string) (*FileRecord, bool) {
	id, ok := r.byPath[path]
	if !ok {
		return nil, false
	}
	return r.files[id], true
}

func (r *Records) Len() int { return len(r.files) }

// All yields records in input order.
func (r *Records) All() iter.Seq[*FileRecord] {
	return func(yield func(*FileRecord) bool) {
		for _, f := range r.files {
			if !yield(f) {
				return
			}
		}
	}
}

// Paths maps ids to paths, preserving order.
func (r *Records) Paths(ids []FileID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.files[id].Path
	}
	return out
}
