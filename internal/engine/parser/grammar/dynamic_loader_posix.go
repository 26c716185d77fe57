//go:build !windows

package grammar

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

static void* svorder_open_language(const char* path, const char* symbol, const char** err) {
    void* handle = dlopen(path, RTLD_NOW | RTLD_LOCAL);
    if (!handle) {
        *err = dlerror();
        return NULL;
    }
    void* (*fn)(void) = (void* (*)(void))dlsym(handle, symbol);
    if (!fn) {
        *err = dlerror();
        dlclose(handle);
        return NULL;
    }
    return fn();
}
*/
import "C"
import (
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// LoadDynamic opens a grammar shared object and returns the language exported
// under SymbolName(language). The library stays loaded for the life of the
// process.
func LoadDynamic(path, language string) (*sitter.Language, error) {
	symbol := SymbolName(language)
	cPath := C.CString(path)
	cSymbol := C.CString(symbol)
	defer C.free(unsafe.Pointer(cPath))
	defer C.free(unsafe.Pointer(cSymbol))

	var cErr *C.char
	ptr := C.svorder_open_language(cPath, cSymbol, &cErr)
	if ptr == nil {
		reason := "unknown dlopen failure"
		if cErr != nil {
			reason = C.GoString(cErr)
		}
		return nil, &LoadError{Path: path, Symbol: symbol, Reason: reason}
	}
	return sitter.NewLanguage(unsafe.Pointer(ptr)), nil
}
