package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw wire traffic, one line per transport chunk, with a
// direction marker and hex dump. Used to debug framing and resync issues
// without attaching a BLE sniffer.
type RawLogger interface {
	Log(inbound bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil writer yields a no-op
// logger so call sites never need to branch.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log emits a single line with timestamp, direction and hex dump.
// inbound=true is controller->bridge, false is bridge->controller.
func (r *rawLogger) Log(inbound bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}

	dir := "B->C"
	if inbound {
		dir = "C->B"
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	line := fmt.Sprintf("%s %s %d bytes: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		dir,
		len(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
