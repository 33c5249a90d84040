// Package transport abstracts the link between controller and bridge behind
// an ordered byte-stream contract. Adapters own connection lifecycle, MTU
// chunking and the outbound write discipline; framing above them is the
// protocol scanner's job, so a transport never needs to understand packets.
package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Send when no session is active.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives transport events. Calls are made from the adapter's
// delivery goroutine in arrival order; the bridge session serializes them
// into its own single-consumer queue.
//
// Exactly one session is active at a time. When a new connection supersedes
// an existing one, the adapter calls HandleDisconnect for the old peer before
// HandleConnect for the new one.
type Handler interface {
	HandleConnect(peer string)
	HandleData(data []byte)
	HandleDisconnect()
}

// Transport is a bidirectional byte stream to the controller.
type Transport interface {
	// Run attaches the handler and serves the link until ctx is cancelled or
	// the transport fails fatally. Session-level errors (a peer dropping) are
	// reported through the handler, not returned.
	Run(ctx context.Context, h Handler) error

	// Send queues raw bytes for ordered transmission. Writes are drained one
	// at a time; Send returns once this item's write completed or failed.
	// Chunking at the link MTU happens inside the adapter.
	Send(ctx context.Context, data []byte) error
}

// Chunk splits data into MTU-sized pieces. A zero or negative MTU means the
// link takes arbitrarily large writes and data is returned as one piece.
func Chunk(data []byte, mtu int) [][]byte {
	if mtu <= 0 || len(data) <= mtu {
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > mtu {
		chunks = append(chunks, data[:mtu])
		data = data[mtu:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}
