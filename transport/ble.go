package transport

import (
	"context"
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// Nordic UART Service UUIDs. The controller writes protocol bytes to RX and
// subscribes to TX for notifications back.
const (
	nusServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	nusRXUUID      = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	nusTXUUID      = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// BLEConfig configures the BLE NUS adapter.
type BLEConfig struct {
	Name  string `help:"BLE advertised device name" default:"RelayKVM" env:"RELAYKVM_BLE_NAME"`
	Chunk int    `help:"Max bytes per notification (ATT_MTU-3)" default:"20" env:"RELAYKVM_BLE_CHUNK"`
}

// BLE exposes the protocol as a Nordic UART Service peripheral. GATT write
// callbacks fire on the stack's delivery goroutine; they are forwarded as-is
// because the session serializes everything into its own queue. Outbound
// notifications are chunked at the configured MTU and drained one at a time,
// since concurrent writes to one characteristic fail with
// "operation already in progress" on most stacks.
type BLE struct {
	cfg    BLEConfig
	queue  *Queue
	logger *slog.Logger

	tx bluetooth.Characteristic
}

// NewBLE creates a BLE transport.
func NewBLE(cfg BLEConfig, logger *slog.Logger) *BLE {
	return &BLE{
		cfg:    cfg,
		queue:  NewQueue(DefaultQueueSize),
		logger: logger,
	}
}

// Run enables the adapter, registers the NUS service and advertises until
// ctx is cancelled.
func (b *BLE) Run(ctx context.Context, h Handler) error {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return err
	}

	serviceUUID, err := bluetooth.ParseUUID(nusServiceUUID)
	if err != nil {
		return err
	}
	rxUUID, err := bluetooth.ParseUUID(nusRXUUID)
	if err != nil {
		return err
	}
	txUUID, err := bluetooth.ParseUUID(nusTXUUID)
	if err != nil {
		return err
	}

	adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			b.logger.Info("central connected", "peer", dev.Address.String())
			h.HandleConnect(dev.Address.String())
		} else {
			b.logger.Info("central disconnected", "peer", dev.Address.String())
			h.HandleDisconnect()
		}
	})

	err = adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  rxUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					data := make([]byte, len(value))
					copy(data, value)
					h.HandleData(data)
				},
			},
			{
				Handle: &b.tx,
				UUID:   txUUID,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	})
	if err != nil {
		return err
	}

	adv := adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    b.cfg.Name,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}); err != nil {
		return err
	}
	if err := adv.Start(); err != nil {
		return err
	}
	b.logger.Info("advertising", "name", b.cfg.Name)
	defer func() { _ = adv.Stop() }()

	b.queue.Drain(ctx, b.write)
	return nil
}

func (b *BLE) write(data []byte) error {
	for _, chunk := range Chunk(data, b.cfg.Chunk) {
		if _, err := b.tx.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Send queues data for notification to the subscribed central.
func (b *BLE) Send(ctx context.Context, data []byte) error {
	return b.queue.Send(ctx, data)
}
