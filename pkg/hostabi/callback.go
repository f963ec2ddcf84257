package hostabi

/*
#include <stdlib.h>

typedef int (*hostCallback)(char const *name, char const *function, char const *data);

static inline int runHostCallback(hostCallback fnc, char const *name, char const *function, char const *data)
{
	return fnc(name, function, data);
}
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"
)

// ErrNoCallback is returned by WriteCallback before the host registered one.
var ErrNoCallback = errors.New("host callback not registered")

var (
	callbackMu  sync.Mutex
	callbackFnc C.hostCallback
)

// called by the host once after load with the function used for async replies
//
//export CoreRegisterCallback
func CoreRegisterCallback(fnc C.hostCallback) {
	callbackMu.Lock()
	callbackFnc = fnc
	callbackMu.Unlock()
}

// WriteCallback delivers an asynchronous result to the host. The host may
// reject the call when its callback queue is full.
func WriteCallback(name, function, data string) error {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	if callbackFnc == nil {
		return ErrNoCallback
	}

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	cFunction := C.CString(function)
	defer C.free(unsafe.Pointer(cFunction))
	cData := C.CString(data)
	defer C.free(unsafe.Pointer(cData))

	if C.runHostCallback(callbackFnc, cName, cFunction, cData) < 0 {
		return errors.New("host callback queue full")
	}
	return nil
}
