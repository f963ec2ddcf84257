package hostabi

import (
	"sync/atomic"

	"github.com/RogersSierra/extension/internal/dispatcher"
)

const unsetVersion = "No version set"

// The core sets both during init while the host may already be calling in.
var (
	version       atomic.Value
	commandRouter atomic.Pointer[dispatcher.Dispatcher]
)

func init() {
	version.Store(unsetVersion)
}

// SetVersion sets the string CoreVersion reports.
func SetVersion(v string) {
	version.Store(v)
}

// Version returns the string CoreVersion reports.
func Version() string {
	return version.Load().(string)
}

// SetDispatcher routes every later CoreCall through d. Nil detaches.
func SetDispatcher(d *dispatcher.Dispatcher) {
	commandRouter.Store(d)
}

// GetDispatcher returns the active dispatcher, or nil before setup.
func GetDispatcher() *dispatcher.Dispatcher {
	return commandRouter.Load()
}
