package application

import (
	"encoding/json"

	"github.com/kanweiwei/speekium/internal/domain"
)

// WorkerClient is the serialized handle on the worker process. One request is
// in flight at a time; streaming holds the handle for the whole operation.
type WorkerClient interface {
	Start(progress func(domain.WorkerProgress)) error
	EnsureRunning() error
	Ready() bool
	Streaming() bool
	Call(command string, args any) (json.RawMessage, error)
	CallWithCancel(command string, args any, cancel func() bool) (json.RawMessage, error)
	CallNoWait(command string, args any) error
	Stream(command string, args any, sink func(domain.StreamChunk)) error
	Shutdown()
}
