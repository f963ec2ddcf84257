package hostabi

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

// dladdr is a GNU extension; the feature macro must precede every include.
#ifdef __linux__
#define _GNU_SOURCE
#endif

#include <stdlib.h>

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>

static char* core_module_path(void) {
    HMODULE mod = NULL;
    DWORD flags = GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT;
    if (!GetModuleHandleExA(flags, (LPCSTR)core_module_path, &mod)) {
        return NULL;
    }
    for (DWORD size = MAX_PATH; size <= 32768; size *= 2) {
        char* buf = (char*)malloc(size);
        if (buf == NULL) {
            return NULL;
        }
        DWORD n = GetModuleFileNameA(mod, buf, size);
        if (n > 0 && n < size) {
            return buf;
        }
        free(buf);
        if (n == 0) {
            return NULL;
        }
    }
    return NULL;
}

#elif defined(__linux__)
#include <dlfcn.h>
#include <string.h>

static char* core_module_path(void) {
    Dl_info info;
    if (dladdr((void*)core_module_path, &info) == 0 || info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(info.dli_fname);
}

#else
static char* core_module_path(void) { return NULL; }
#endif
*/
import "C"

import (
	"errors"
	"unsafe"
)

// ErrModulePath is returned when the loader cannot name the shared library.
var ErrModulePath = errors.New("cannot resolve module path")

// ModulePath returns the absolute path of the shared library the core was
// loaded from.
func ModulePath() (string, error) {
	p := C.core_module_path()
	if p == nil {
		return "", ErrModulePath
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p), nil
}
