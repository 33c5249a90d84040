package bridge

import (
	"context"
	"log/slog"

	"github.com/relaykvm/bridge/protocol"
)

// HandlerFunc processes one validated command payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

type route struct {
	minLen int
	fn     HandlerFunc
}

// Dispatcher routes decoded packets by command code and enforces per-command
// minimum payload lengths. It is deliberately forgiving: unknown commands and
// short payloads are logged and dropped, handler errors are logged and the
// stream continues. A single malformed command must never take down an
// otherwise healthy session.
type Dispatcher struct {
	routes map[uint8]route
	logger *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		routes: make(map[uint8]route),
		logger: logger,
	}
}

// Register installs fn for the given command code. Payloads shorter than
// minLen are rejected before fn runs.
func (d *Dispatcher) Register(command uint8, minLen int, fn HandlerFunc) {
	d.routes[command] = route{minLen: minLen, fn: fn}
}

// Dispatch routes one packet. It never returns an error; all failure modes
// are drop-and-continue by design.
func (d *Dispatcher) Dispatch(ctx context.Context, pkt *protocol.Packet) {
	r, ok := d.routes[pkt.Command]
	if !ok {
		d.logger.Warn("unknown command, dropping",
			"command", commandLabel(pkt.Command),
			"payload_len", len(pkt.Payload))
		return
	}
	if len(pkt.Payload) < r.minLen {
		d.logger.Warn("payload too short, dropping",
			"command", commandLabel(pkt.Command),
			"payload_len", len(pkt.Payload),
			"min_len", r.minLen)
		return
	}
	if err := r.fn(ctx, pkt.Payload); err != nil {
		d.logger.Error("command handler failed",
			"command", commandLabel(pkt.Command),
			"error", err)
	}
}

func commandLabel(command uint8) string {
	if name, ok := protocol.CommandName[command]; ok {
		return name
	}
	return "0x" + hexByte(command)
}

func hexByte(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}
