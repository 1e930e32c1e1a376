package listener

import (
	"net/http"
	"time"

	"github.com/anandb/mockrelay/internal/dispatch"
	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/tunnel"
)

// Instance is the runtime ListenerInstance from spec §3: a
// ListenerConfig plus its bound server handle, expectation registry, TLS
// material handles and supervised tunnel subprocesses.
type Instance struct {
	Config     model.ListenerConfig
	Registry   *ExpectationRegistry
	Dispatcher *dispatch.Dispatcher
	Server     *http.Server

	// Tunnels is keyed "namespace:podPrefix", per spec §3.
	Tunnels map[string]*tunnel.Handle

	CreatedAt time.Time

	serveErrCh chan error
}

// Snapshot is the read-only view returned to callers that only need to
// observe listener state (e.g. a future management API), never mutate it.
type Snapshot struct {
	ListenerID  string
	Port        int
	Description string
	CreatedAt   time.Time
}

func (inst *Instance) snapshot() Snapshot {
	return Snapshot{
		ListenerID:  inst.Config.ListenerID,
		Port:        inst.Config.Port,
		Description: inst.Config.Description,
		CreatedAt:   inst.CreatedAt,
	}
}
