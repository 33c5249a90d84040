package bridge

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/relaykvm/bridge/device"
	"github.com/relaykvm/bridge/device/keyboard"
	"github.com/relaykvm/bridge/device/mouse"
	"github.com/relaykvm/bridge/internal/log"
	"github.com/relaykvm/bridge/protocol"
)

// ProtocolVersion is reported in the get-info notification.
const ProtocolVersion = 0x01

// Sender is the outbound half of the transport, satisfied by any
// transport.Transport. Notifications share the transport's single FIFO write
// queue, so they stay ordered with all other outbound traffic.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Config tunes the session.
type Config struct {
	// QueueSize bounds the inbound packet queue between the transport's
	// delivery goroutine and the run loop. When full, input packets are
	// dropped (and counted) rather than blocking the transport stack.
	QueueSize int

	// ConsumerReleaseDelay is how long a nonzero consumer usage stays
	// asserted before the automatic zero-usage release.
	ConsumerReleaseDelay time.Duration

	// PowerTick is the display-timeout polling interval.
	PowerTick time.Duration
}

func (c *Config) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.ConsumerReleaseDelay <= 0 {
		c.ConsumerReleaseDelay = 50 * time.Millisecond
	}
	if c.PowerTick <= 0 {
		c.PowerTick = time.Second
	}
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evPacket
)

type event struct {
	kind eventKind
	peer string
	pkt  *protocol.Packet
}

// Session owns everything stateful for the one active connection: the frame
// scanner, the keyboard and mouse state machines, the display power machine
// and the consumer auto-release timer.
//
// All mutation happens on the Run goroutine. Transport callbacks only feed
// the bounded event queue, which converts whatever goroutine the transport
// stack delivers on into the strict single-consumer ordering the diffing
// state machines require.
type Session struct {
	cfg      Config
	sink     device.Sink
	sender   Sender
	display  Display
	resetter Resetter
	led      StatusLED
	logger   *slog.Logger
	raw      log.RawLogger

	disp    *Dispatcher
	scanner protocol.Scanner // touched only by the transport delivery goroutine
	events  chan event

	// Run-goroutine state.
	kb             keyboard.State
	ms             mouse.State
	power          *displayPower
	connected      bool
	peer           string
	consumerTimer  *time.Timer
	consumerActive bool
	sinkHealthy    bool
	droppedPackets uint64
}

// Option configures optional session collaborators.
type Option func(*Session)

// WithDisplay attaches a local display for the brightness/timeout commands.
func WithDisplay(d Display) Option { return func(s *Session) { s.display = d } }

// WithResetter attaches the device-reset hook.
func WithResetter(r Resetter) Option { return func(s *Session) { s.resetter = r } }

// WithStatusLED attaches a connection indicator.
func WithStatusLED(l StatusLED) Option { return func(s *Session) { s.led = l } }

// NewSession wires a session to its sink and outbound sender.
func NewSession(cfg Config, sink device.Sink, sender Sender, logger *slog.Logger, raw log.RawLogger, opts ...Option) *Session {
	cfg.defaults()
	s := &Session{
		cfg:         cfg,
		sink:        sink,
		sender:      sender,
		logger:      logger,
		raw:         raw,
		events:      make(chan event, cfg.QueueSize),
		sinkHealthy: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	d := NewDispatcher(logger)
	d.Register(protocol.CmdGetInfo, 0, s.handleGetInfo)
	d.Register(protocol.CmdKeyboard, keyboard.WireSize, s.handleKeyboard)
	d.Register(protocol.CmdConsumer, 2, s.handleConsumer)
	d.Register(protocol.CmdMouseRelative, mouse.RelativeWireSize, s.handleMouse)
	d.Register(protocol.CmdMouseAbsolute, mouse.AbsoluteWireSize, s.handleMouse)
	d.Register(protocol.CmdDisplayBrightness, 1, s.handleBrightness)
	d.Register(protocol.CmdDisplayTimeout, 1, s.handleTimeout)
	d.Register(protocol.CmdUSBWake, 0, s.handleWake)
	d.Register(protocol.CmdUSBRecovery, 0, s.handleRecovery)
	d.Register(protocol.CmdDeviceReset, 0, s.handleReset)
	s.disp = d

	return s
}

// HandleConnect implements transport.Handler.
func (s *Session) HandleConnect(peer string) {
	s.events <- event{kind: evConnect, peer: peer}
}

// HandleDisconnect implements transport.Handler. The scanner is reset here,
// on the delivery goroutine, so a reconnect never starts mid-frame.
func (s *Session) HandleDisconnect() {
	s.scanner.Reset()
	s.events <- event{kind: evDisconnect}
}

// HandleData implements transport.Handler. Complete frames are queued for
// the run loop; when the queue is full, input is dropped rather than
// blocking the transport stack (stale input is worse than lost input).
func (s *Session) HandleData(data []byte) {
	s.raw.Log(true, data)
	for _, pkt := range s.scanner.Feed(data) {
		select {
		case s.events <- event{kind: evPacket, pkt: pkt}:
		default:
			s.droppedPackets++
			s.logger.Warn("inbound queue full, dropping packet",
				"command", commandLabel(pkt.Command),
				"dropped_total", s.droppedPackets)
		}
	}
}

// Run processes events until ctx is cancelled. On exit every held key and
// button is explicitly released.
func (s *Session) Run(ctx context.Context) error {
	s.power = newDisplayPower(s.display, s.logger, time.Now())

	s.consumerTimer = time.NewTimer(time.Hour)
	if !s.consumerTimer.Stop() {
		<-s.consumerTimer.C
	}

	ticker := time.NewTicker(s.cfg.PowerTick)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case <-s.consumerTimer.C:
			// Stop may lose the race against an already-expired timer; a
			// stale fire after an explicit release must not re-send.
			if s.consumerActive {
				s.releaseConsumer()
			}
		case <-ticker.C:
			s.power.tick(time.Now())
		case <-ctx.Done():
			s.releaseAll()
			return nil
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnect:
		if s.connected {
			// Supersede: transports deliver the old session's disconnect
			// first, but guard against adapters that don't.
			s.logger.Warn("connect while connected, resetting state", "old_peer", s.peer)
			s.releaseAll()
		}
		s.connected = true
		s.peer = ev.peer
		if s.led != nil {
			s.led.Set(true)
		}
		s.logger.Info("controller connected", "peer", ev.peer)

	case evDisconnect:
		if !s.connected {
			return
		}
		s.logger.Info("controller disconnected", "peer", s.peer)
		s.connected = false
		s.peer = ""
		s.releaseAll()
		if s.led != nil {
			s.led.Set(false)
		}

	case evPacket:
		s.power.activity(time.Now())
		s.disp.Dispatch(ctx, ev.pkt)
	}
}

// releaseAll emits explicit releases for everything currently asserted.
// Forgetting state without releasing leaves phantom held keys on the host
// until the next report arrives.
func (s *Session) releaseAll() {
	if len(s.kb.Reset()) > 0 {
		s.sendKeyboard()
	}
	if len(s.ms.Reset()) > 0 {
		s.sinkCall("mouse", s.sink.SendMouseReport(0, 0, 0, 0))
	}
	if s.consumerActive {
		s.consumerTimer.Stop()
		s.releaseConsumer()
	}
}

func (s *Session) handleKeyboard(ctx context.Context, payload []byte) error {
	var snap keyboard.Snapshot
	if err := snap.UnmarshalBinary(payload); err != nil {
		return err
	}

	events := s.kb.Apply(snap)
	if len(events) == 0 {
		return nil
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		for _, ev := range events {
			s.logger.Debug("key transition", "key", keyLabel(ev), "press", ev.Press)
		}
	}
	s.sendKeyboard()
	return nil
}

func (s *Session) handleConsumer(ctx context.Context, payload []byte) error {
	usage := binary.LittleEndian.Uint16(payload)
	s.sinkCall("consumer", s.sink.SendConsumerReport(usage))
	if usage == 0 {
		// An explicit release from the controller disarms the pending
		// auto-release so it cannot fire a duplicate zero report later.
		s.consumerTimer.Stop()
		s.consumerActive = false
		return nil
	}
	// Controllers send only the press; the release is ours.
	s.consumerActive = true
	s.consumerTimer.Reset(s.cfg.ConsumerReleaseDelay)
	return nil
}

func (s *Session) releaseConsumer() {
	s.consumerActive = false
	s.sinkCall("consumer", s.sink.SendConsumerReport(0))
}

func (s *Session) handleMouse(ctx context.Context, payload []byte) error {
	u, err := mouse.DecodeUpdate(payload)
	if err != nil {
		return err
	}

	buttonEvents := s.ms.ApplyButtons(u.Buttons())
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		for _, ev := range buttonEvents {
			s.logger.Debug("button transition", "button", mouse.ButtonName[ev.Button], "press", ev.Press)
		}
	}

	switch u := u.(type) {
	case mouse.Relative:
		// Buttons first, motion second, as separate reports: sinks that
		// split buttons and motion into distinct report types rely on this
		// ordering for click-then-drag correctness.
		if len(buttonEvents) > 0 {
			s.sinkCall("mouse", s.sink.SendMouseReport(s.ms.Buttons(), 0, 0, 0))
		}
		if u.Motion() {
			s.sinkCall("mouse", s.sink.SendMouseReport(s.ms.Buttons(), u.DX, u.DY, u.Scroll))
		}
		// No button change and no motion is a legal no-op frame.

	case mouse.Absolute:
		// Absolute reports are self-contained; buttons and position always
		// travel together, the sink forwards scroll as a wheel fallback.
		s.sinkCall("abs-mouse", s.sink.SendAbsMouseReport(s.ms.Buttons(), u.X, u.Y, u.Scroll))
	}
	return nil
}

func (s *Session) handleBrightness(ctx context.Context, payload []byte) error {
	level := decodeBrightness(payload[0])
	s.logger.Info("display brightness", "level", level)
	s.power.setBrightness(level, time.Now())
	return nil
}

func (s *Session) handleTimeout(ctx context.Context, payload []byte) error {
	s.power.setTimeout(decodeTimeout(payload), time.Now())
	return nil
}

// handleWake fires a benign HID event to trigger the target's USB
// remote-wakeup path. There is no feedback channel from the target OS: a nil
// return means the wake was requested, never that the host actually woke.
func (s *Session) handleWake(ctx context.Context, payload []byte) error {
	s.logger.Info("usb wake requested (best-effort, unconfirmable)")
	return s.jitter()
}

// handleRecovery re-emits HID activity to unstick a suspended or corrupted
// USB stack, falling back to the sink's Recover hook when it stays dead.
// Recover may reset the whole bridge; that is an accepted outcome. When the
// bridge survives, the outcome is notified back to the controller.
func (s *Session) handleRecovery(ctx context.Context, payload []byte) error {
	s.logger.Warn("usb soft-recovery requested")

	probeErr := s.jitter()
	if probeErr == nil {
		probeErr = s.sink.SendKeyboardReport(s.kb.Modifiers(), s.kb.Keys())
	}
	if probeErr != nil {
		if rec, ok := s.sink.(device.Recoverer); ok {
			s.logger.Warn("sink unresponsive, rebuilding HID channel", "error", probeErr)
			if err := rec.Recover(); err != nil {
				s.logger.Error("sink recovery failed", "error", err)
			}
			probeErr = s.sink.SendKeyboardReport(s.kb.Modifiers(), s.kb.Keys())
		}
	}

	status := byte(0x00)
	if probeErr == nil {
		status = 0x01
		s.sinkHealthy = true
	} else {
		s.sinkHealthy = false
	}
	return s.notify(ctx, protocol.CmdUSBRecovery, []byte{status})
}

func (s *Session) handleReset(ctx context.Context, payload []byte) error {
	if s.resetter == nil {
		s.logger.Warn("device reset requested but no resetter configured")
		return nil
	}
	s.logger.Warn("device reset requested, restarting")
	return s.resetter.Reset()
}

// handleGetInfo answers with protocol version and sink status, and re-sends
// the full current state so a reconnecting controller and the host agree
// even after a run of failed sink calls.
func (s *Session) handleGetInfo(ctx context.Context, payload []byte) error {
	s.Resync()
	status := byte(0x00)
	if s.sinkHealthy {
		status = 0x01
	}
	return s.notify(ctx, protocol.CmdGetInfo, []byte{ProtocolVersion, status})
}

// Resync unconditionally re-asserts the full keyboard and mouse state to the
// sink. The state machines advance their model even when sends fail, so this
// is the escape hatch from a model/host desync.
func (s *Session) Resync() {
	s.sendKeyboard()
	s.sinkCall("mouse", s.sink.SendMouseReport(s.ms.Buttons(), 0, 0, 0))
}

// NotifyReleaseCapture tells the controller to release input capture. It is
// driven by a local physical event (a button on the bridge), not by inbound
// traffic, but travels through the same codec and write queue as everything
// else so ordering with other outbound frames holds.
func (s *Session) NotifyReleaseCapture(ctx context.Context) error {
	s.logger.Info("release-capture requested")
	return s.notify(ctx, protocol.CmdReleaseCapture, nil)
}

func (s *Session) notify(ctx context.Context, command uint8, payload []byte) error {
	frame, err := protocol.Encode(command, payload)
	if err != nil {
		return err
	}
	s.raw.Log(false, frame)
	if err := s.sender.Send(ctx, frame); err != nil {
		s.logger.Warn("notification send failed", "command", commandLabel(command), "error", err)
		return err
	}
	return nil
}

// jitter moves the pointer one pixel out and back, the canonical harmless
// activity burst.
func (s *Session) jitter() error {
	if err := s.sink.SendMouseReport(s.ms.Buttons(), 1, 0, 0); err != nil {
		return err
	}
	return s.sink.SendMouseReport(s.ms.Buttons(), -1, 0, 0)
}

func (s *Session) sendKeyboard() {
	s.sinkCall("keyboard", s.sink.SendKeyboardReport(s.kb.Modifiers(), s.kb.Keys()))
}

// sinkCall logs a failed send. The state machines have already advanced to
// the intended state; retrying a stale report risks duplicate key events, so
// failures are logged and left to Resync.
func (s *Session) sinkCall(report string, err error) {
	if err != nil {
		s.sinkHealthy = false
		s.logger.Warn("HID report failed", "report", report, "error", err)
		return
	}
	s.sinkHealthy = true
}

func keyLabel(ev keyboard.Event) string {
	if ev.Modifier {
		return keyboard.ModifierName[ev.Key-keyboard.ModifierUsageBase]
	}
	return "0x" + hexByte(ev.Key)
}
