package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykvm/bridge/device/keyboard"
	"github.com/relaykvm/bridge/device/mouse"
	"github.com/relaykvm/bridge/internal/log"
	"github.com/relaykvm/bridge/protocol"
)

type sinkCall struct {
	kind      string
	modifiers uint8
	keys      [6]uint8
	buttons   uint8
	dx, dy    int8
	scroll    int8
	x, y      uint16
	usage     uint16
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (f *fakeSink) record(c sinkCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeSink) SendKeyboardReport(modifiers uint8, keys [6]uint8) error {
	return f.record(sinkCall{kind: "keyboard", modifiers: modifiers, keys: keys})
}

func (f *fakeSink) SendMouseReport(buttons uint8, dx, dy, scroll int8) error {
	return f.record(sinkCall{kind: "mouse", buttons: buttons, dx: dx, dy: dy, scroll: scroll})
}

func (f *fakeSink) SendAbsMouseReport(buttons uint8, x, y uint16, scroll int8) error {
	return f.record(sinkCall{kind: "abs-mouse", buttons: buttons, x: x, y: y, scroll: scroll})
}

func (f *fakeSink) SendConsumerReport(usage uint16) error {
	return f.record(sinkCall{kind: "consumer", usage: usage})
}

func (f *fakeSink) snapshot() []sinkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkCall(nil), f.calls...)
}

func (f *fakeSink) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *fakeSender) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	return f.err
}

func (f *fakeSender) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession builds a session with run-loop state pre-initialized so
// handlers can be driven directly, without the Run goroutine.
func newTestSession(t *testing.T, sink *fakeSink, opts ...Option) (*Session, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	s := NewSession(Config{}, sink, sender, testLogger(), log.NewRaw(nil), opts...)
	s.power = newDisplayPower(s.display, s.logger, time.Now())
	s.consumerTimer = time.NewTimer(time.Hour)
	if !s.consumerTimer.Stop() {
		<-s.consumerTimer.C
	}
	return s, sender
}

func feed(t *testing.T, s *Session, command uint8, payload []byte) {
	t.Helper()
	frame, err := protocol.Encode(command, payload)
	require.NoError(t, err)
	s.HandleData(frame)
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(context.Background(), ev)
		default:
			return
		}
	}
}

func TestKeyboardSnapshotFlow(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	snap := []byte{keyboard.ModLeftShift, 0x00, keyboard.KeyA, 0, 0, 0, 0, 0}
	feed(t, s, protocol.CmdKeyboard, snap)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "keyboard", calls[0].kind)
	assert.Equal(t, uint8(keyboard.ModLeftShift), calls[0].modifiers)
	assert.Equal(t, [6]uint8{keyboard.KeyA}, calls[0].keys)

	// The identical snapshot is a no-op: no new report.
	feed(t, s, protocol.CmdKeyboard, snap)
	assert.Len(t, sink.snapshot(), 1)

	// Releasing everything sends the all-zero report.
	feed(t, s, protocol.CmdKeyboard, make([]byte, keyboard.WireSize))
	calls = sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, uint8(0), calls[1].modifiers)
	assert.Equal(t, [6]uint8{}, calls[1].keys)
}

func TestCorruptFrameMutatesNothing(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	frame, err := protocol.Encode(protocol.CmdKeyboard,
		[]byte{keyboard.ModLeftShift, 0x00, keyboard.KeyA, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF
	s.HandleData(frame)

	assert.Empty(t, s.events)
	assert.Empty(t, sink.snapshot())
}

func TestDisconnectReleasesEverything(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	ctx := context.Background()
	s.handleEvent(ctx, event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdKeyboard, []byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	feed(t, s, protocol.CmdMouseRelative, []byte{mouse.ModeRelative, mouse.ButtonLeft, 0, 0, 0})
	sink.reset()

	s.handleEvent(ctx, event{kind: evDisconnect})

	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "keyboard", calls[0].kind)
	assert.Equal(t, [6]uint8{}, calls[0].keys)
	assert.Equal(t, "mouse", calls[1].kind)
	assert.Equal(t, uint8(0), calls[1].buttons)

	// Nothing held, nothing to release: a second disconnect-equivalent reset
	// sends nothing.
	sink.reset()
	s.releaseAll()
	assert.Empty(t, sink.snapshot())
}

func TestRelativeMouseButtonMotionIndependence(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	// Button press with no motion: one report, new buttons, zero deltas.
	feed(t, s, protocol.CmdMouseRelative, []byte{mouse.ModeRelative, mouse.ButtonLeft, 0, 0, 0})
	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, sinkCall{kind: "mouse", buttons: mouse.ButtonLeft}, calls[0])

	// Motion while held: one report carrying current buttons plus deltas.
	sink.reset()
	feed(t, s, protocol.CmdMouseRelative, []byte{mouse.ModeRelative, mouse.ButtonLeft, 0x0A, 0xF6, 0x01})
	calls = sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, sinkCall{kind: "mouse", buttons: mouse.ButtonLeft, dx: 10, dy: -10, scroll: 1}, calls[0])

	// Release plus motion in one frame: button report first, then motion.
	sink.reset()
	feed(t, s, protocol.CmdMouseRelative, []byte{mouse.ModeRelative, 0x00, 0x05, 0x00, 0x00})
	calls = sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, sinkCall{kind: "mouse"}, calls[0])
	assert.Equal(t, sinkCall{kind: "mouse", dx: 5}, calls[1])

	// No change at all: zero sink calls.
	sink.reset()
	feed(t, s, protocol.CmdMouseRelative, []byte{mouse.ModeRelative, 0x00, 0x00, 0x00, 0x00})
	assert.Empty(t, sink.snapshot())
}

func TestAbsoluteMouseSelfContained(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdMouseAbsolute,
		[]byte{mouse.ModeAbsolute, mouse.ButtonRight, 0x00, 0x40, 0xFF, 0x7F, 0x00})
	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, sinkCall{kind: "abs-mouse", buttons: mouse.ButtonRight, x: 0x4000, y: 0x7FFF}, calls[0])

	// Same position with the same buttons still emits: absolute frames are
	// self-contained, not diffed.
	feed(t, s, protocol.CmdMouseAbsolute,
		[]byte{mouse.ModeAbsolute, mouse.ButtonRight, 0x00, 0x40, 0xFF, 0x7F, 0x00})
	assert.Len(t, sink.snapshot(), 2)
}

func TestConsumerPressArmsAutoRelease(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdConsumer, []byte{0xE9, 0x00}) // volume up
	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, sinkCall{kind: "consumer", usage: 0x00E9}, calls[0])
	assert.True(t, s.consumerActive)

	s.releaseConsumer()
	calls = sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, uint16(0), calls[1].usage)
	assert.False(t, s.consumerActive)

	// An explicit zero usage does not arm the timer.
	feed(t, s, protocol.CmdConsumer, []byte{0x00, 0x00})
	assert.False(t, s.consumerActive)
}

// An explicit release from the controller disarms the pending auto-release:
// no duplicate zero report fires later.
func TestExplicitConsumerReleaseDisarmsAutoRelease(t *testing.T) {
	sink := &fakeSink{}
	sender := &fakeSender{}
	s := NewSession(Config{ConsumerReleaseDelay: 20 * time.Millisecond},
		sink, sender, testLogger(), log.NewRaw(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	s.HandleConnect("test")
	press, err := protocol.Encode(protocol.CmdConsumer, []byte{0xE9, 0x00})
	require.NoError(t, err)
	release, err := protocol.Encode(protocol.CmdConsumer, []byte{0x00, 0x00})
	require.NoError(t, err)
	s.HandleData(press)
	s.HandleData(release)

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 },
		time.Second, time.Millisecond)

	// Let the auto-release deadline pass; the explicit release must have
	// disarmed it, so no third consumer report appears.
	time.Sleep(100 * time.Millisecond)
	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, uint16(0x00E9), calls[0].usage)
	assert.Equal(t, uint16(0), calls[1].usage)

	cancel()
	<-done
}

func TestConsumerAutoReleaseThroughRunLoop(t *testing.T) {
	sink := &fakeSink{}
	sender := &fakeSender{}
	s := NewSession(Config{ConsumerReleaseDelay: 10 * time.Millisecond},
		sink, sender, testLogger(), log.NewRaw(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	s.HandleConnect("test")
	frame, err := protocol.Encode(protocol.CmdConsumer, []byte{0xE9, 0x00})
	require.NoError(t, err)
	s.HandleData(frame)

	assert.Eventually(t, func() bool {
		calls := sink.snapshot()
		return len(calls) == 2 && calls[1].usage == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestGetInfoResyncsAndReplies(t *testing.T) {
	sink := &fakeSink{}
	s, sender := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdKeyboard, []byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	sink.reset()

	feed(t, s, protocol.CmdGetInfo, nil)

	// Resync re-asserts the live keyboard state and a motionless mouse report.
	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "keyboard", calls[0].kind)
	assert.Equal(t, [6]uint8{keyboard.KeyA}, calls[0].keys)
	assert.Equal(t, "mouse", calls[1].kind)

	frames := sender.snapshot()
	require.Len(t, frames, 1)
	pkt, err := protocol.Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, uint8(protocol.CmdGetInfo), pkt.Command)
	require.Len(t, pkt.Payload, 2)
	assert.Equal(t, uint8(ProtocolVersion), pkt.Payload[0])
	assert.Equal(t, uint8(0x01), pkt.Payload[1], "healthy sink")
}

func TestRecoveryNotifiesOutcome(t *testing.T) {
	sink := &fakeSink{}
	s, sender := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdUSBRecovery, nil)

	frames := sender.snapshot()
	require.Len(t, frames, 1)
	pkt, err := protocol.Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, uint8(protocol.CmdUSBRecovery), pkt.Command)
	require.Len(t, pkt.Payload, 1)
	assert.Equal(t, uint8(0x01), pkt.Payload[0])

	// A dead sink yields a failure status.
	sink.err = errors.New("pipe broken")
	feed(t, s, protocol.CmdUSBRecovery, nil)
	frames = sender.snapshot()
	require.Len(t, frames, 2)
	pkt, err = protocol.Decode(frames[1])
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), pkt.Payload[0])
}

func TestWakeJitters(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdUSBWake, nil)
	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, sinkCall{kind: "mouse", dx: 1}, calls[0])
	assert.Equal(t, sinkCall{kind: "mouse", dx: -1}, calls[1])
}

func TestSinkErrorAdvancesModel(t *testing.T) {
	sink := &fakeSink{err: errors.New("gadget gone")}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	feed(t, s, protocol.CmdKeyboard, []byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	require.Len(t, sink.snapshot(), 1)

	// The model advanced despite the failed send, so repeating the snapshot
	// produces no retry.
	feed(t, s, protocol.CmdKeyboard, []byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	assert.Len(t, sink.snapshot(), 1)

	// Resync is the explicit recovery path once the sink is back.
	sink.err = nil
	sink.reset()
	s.Resync()
	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, [6]uint8{keyboard.KeyA}, calls[0].keys)
}

func TestSupersedeResetsState(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	ctx := context.Background()
	s.handleEvent(ctx, event{kind: evConnect, peer: "first"})
	feed(t, s, protocol.CmdKeyboard, []byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	sink.reset()

	// A connect without an intervening disconnect still releases the old
	// session's held state before the new one starts.
	s.handleEvent(ctx, event{kind: evConnect, peer: "second"})
	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, [6]uint8{}, calls[0].keys)
	assert.Equal(t, "second", s.peer)
}

func TestNotifyReleaseCapture(t *testing.T) {
	sink := &fakeSink{}
	s, sender := newTestSession(t, sink)

	require.NoError(t, s.NotifyReleaseCapture(context.Background()))
	frames := sender.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x57, 0xAB, 0x00, 0x80, 0x00, 0x82}, frames[0])
}

func TestResetRequiresResetter(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	s.handleEvent(context.Background(), event{kind: evConnect, peer: "test"})

	// No resetter configured: logged and dropped, session keeps running.
	feed(t, s, protocol.CmdDeviceReset, nil)

	fired := false
	s.resetter = resetterFunc(func() error { fired = true; return nil })
	feed(t, s, protocol.CmdDeviceReset, nil)
	assert.True(t, fired)
}

type resetterFunc func() error

func (f resetterFunc) Reset() error { return f() }

func TestFragmentedDelivery(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newTestSession(t, sink)
	ctx := context.Background()
	s.handleEvent(ctx, event{kind: evConnect, peer: "test"})

	frame, err := protocol.Encode(protocol.CmdKeyboard,
		[]byte{0, 0, keyboard.KeyA, 0, 0, 0, 0, 0})
	require.NoError(t, err)

	// BLE-sized chunks: the frame arrives split, one sink call results.
	s.HandleData(frame[:3])
	s.HandleData(frame[3:9])
	s.HandleData(frame[9:])
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		default:
			require.Len(t, sink.snapshot(), 1)
			return
		}
	}
}
