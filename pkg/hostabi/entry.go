// Package hostabi exports the C entry points the game host calls and routes
// every call through the command dispatcher.
package hostabi

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"strconv"
	"time"
	"unsafe"

	"github.com/RogersSierra/extension/internal/dispatcher"
)

// called by the host once after load
//
//export CoreVersion
func CoreVersion(output *C.char, outputsize C.size_t) {
	replyToHost(Version(), output, outputsize)
}

// called by the host with a single string: "COMMAND" or "COMMAND|arg1|arg2"
//
//export CoreCall
func CoreCall(output *C.char, outputsize C.size_t, input *C.char) {
	raw := C.GoString(input)
	if raw == ":TIMESTAMP:" {
		replyToHost(getTimestamp(), output, outputsize)
		return
	}
	command, args := splitCommand(raw)
	replyToHost(dispatch(command, args), output, outputsize)
}

// called by the host with a command and an argument array
//
//export CoreCallArgs
func CoreCallArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	command := C.GoString(input)
	args := parseArgsFromC(argv, argc)
	replyToHost(dispatch(command, args), output, outputsize)
}

func dispatch(command string, args []string) string {
	d := GetDispatcher()
	if d == nil || !d.HasHandler(command) {
		return formatDispatchResponse(nil, fmt.Errorf("no handler registered for %s", command))
	}
	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return formatDispatchResponse(result, err)
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	var offset = unsafe.Sizeof(uintptr(0))
	data := make([]string, 0, int(argc))
	for index := C.int(0); index < argc; index++ {
		data = append(data, C.GoString(*argv))
		argv = (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(argv)) + offset))
	}
	return data
}

// replyToHost copies the response into the host's buffer, truncating to fit
func replyToHost(response string, output *C.char, outputsize C.size_t) {
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	var size = C.strlen(result) + 1
	if size > outputsize {
		size = outputsize
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
}

func getTimestamp() string {
	return strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
}
