package sensor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paypal/gatt"
	"github.com/paypal/gatt/examples/option"

	"vitalwave.dev/core/internal/config"
)

// central and peripheralConn abstract github.com/paypal/gatt's central
// role so client.go, and everything that tests it, depend on an interface
// rather than a concrete radio stack.
type central interface {
	// Scan runs a bounded discovery for a device whose advertised name
	// contains nameSubstring (case-insensitive).
	Scan(ctx context.Context, timeout time.Duration, nameSubstring string) (peripheralHandle, error)
	// Connect establishes the GATT connection for a previously discovered
	// handle.
	Connect(ctx context.Context, h peripheralHandle) (peripheralConn, error)
}

type peripheralHandle interface {
	Name() string
	Address() string
}

type peripheralConn interface {
	ReadBattery() (int, error)
	SubscribeHR(func([]byte)) error
	SubscribeVendorControl(func([]byte)) error
	SubscribeVendorData(func([]byte)) error
	WriteVendorControl([]byte) error
	Unsubscribe() error
	Disconnect() error
	// OnDisconnect registers the callback fired when the transport drops
	// the link without Disconnect having been called locally.
	OnDisconnect(func())
}

// gattCentral adapts github.com/paypal/gatt to the central interface.
type gattCentral struct {
	cfg config.BLEConfig
}

func newGattCentral(cfg config.BLEConfig) *gattCentral {
	return &gattCentral{cfg: cfg}
}

type gattHandle struct {
	dev gatt.Device
	p   gatt.Peripheral
}

func (h *gattHandle) Name() string    { return h.p.Name() }
func (h *gattHandle) Address() string { return h.p.ID() }

func (g *gattCentral) Scan(ctx context.Context, timeout time.Duration, nameSubstring string) (peripheralHandle, error) {
	dev, err := gatt.NewDevice(option.DefaultClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("sensor: open BLE device: %w", err)
	}

	found := make(chan gatt.Peripheral, 1)
	dev.Handle(gatt.PeripheralDiscovered(func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
		if !strings.Contains(strings.ToLower(p.Name()), strings.ToLower(nameSubstring)) {
			return
		}
		p.Device().StopScanning()
		select {
		case found <- p:
		default:
		}
	}))

	if err := dev.Init(func(d gatt.Device, s gatt.State) {
		if s == gatt.StatePoweredOn {
			d.Scan(nil, false)
		} else {
			d.StopScanning()
		}
	}); err != nil {
		return nil, fmt.Errorf("sensor: init BLE device: %w", err)
	}

	select {
	case p := <-found:
		return &gattHandle{dev: dev, p: p}, nil
	case <-time.After(timeout):
		dev.StopScanning()
		dev.Stop()
		return nil, ErrDeviceNotFound
	case <-ctx.Done():
		dev.StopScanning()
		dev.Stop()
		return nil, ctx.Err()
	}
}

func (g *gattCentral) Connect(ctx context.Context, h peripheralHandle) (peripheralConn, error) {
	gh, ok := h.(*gattHandle)
	if !ok {
		return nil, fmt.Errorf("sensor: unexpected peripheral handle type %T", h)
	}

	connected := make(chan error, 1)
	disconnected := make(chan error, 1)
	gh.dev.Handle(
		gatt.PeripheralConnected(func(p gatt.Peripheral, err error) {
			select {
			case connected <- err:
			default:
			}
		}),
		gatt.PeripheralDisconnected(func(p gatt.Peripheral, err error) {
			select {
			case disconnected <- err:
			default:
			}
		}),
	)

	gh.dev.Connect(gh.p)
	select {
	case err := <-connected:
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &gattPeripheralConn{
		cfg:          g.cfg,
		p:            gh.p,
		disconnected: disconnected,
	}, nil
}

// gattPeripheralConn adapts a single connected gatt.Peripheral to the
// peripheralConn interface, resolving the four UUIDs in BLEConfig to
// characteristics on first use.
type gattPeripheralConn struct {
	cfg          config.BLEConfig
	p            gatt.Peripheral
	disconnected chan error

	hrChar      *gatt.Characteristic
	batteryChar *gatt.Characteristic
	ctrlChar    *gatt.Characteristic
	dataChar    *gatt.Characteristic
}

func (c *gattPeripheralConn) resolve() error {
	services, err := c.p.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("%w: discover services: %v", ErrProtocol, err)
	}
	for _, svc := range services {
		chars, err := c.p.DiscoverCharacteristics(nil, svc)
		if err != nil {
			continue
		}
		for _, ch := range chars {
			switch ch.UUID().String() {
			case c.cfg.HRUUID:
				c.hrChar = ch
			case c.cfg.BatteryUUID:
				c.batteryChar = ch
			case c.cfg.VendorControlUUID:
				c.ctrlChar = ch
			case c.cfg.VendorDataUUID:
				c.dataChar = ch
			}
		}
	}
	return nil
}

func (c *gattPeripheralConn) ReadBattery() (int, error) {
	if c.batteryChar == nil {
		if err := c.resolve(); err != nil {
			return -1, err
		}
	}
	if c.batteryChar == nil {
		return -1, fmt.Errorf("%w: battery characteristic not found", ErrProtocol)
	}
	b, err := c.p.ReadCharacteristic(c.batteryChar)
	if err != nil || len(b) == 0 {
		return -1, fmt.Errorf("%w: read battery: %v", ErrProtocol, err)
	}
	return int(b[0]), nil
}

func (c *gattPeripheralConn) SubscribeHR(f func([]byte)) error {
	if c.hrChar == nil {
		if err := c.resolve(); err != nil {
			return err
		}
	}
	if c.hrChar == nil {
		return fmt.Errorf("%w: HR characteristic not found", ErrProtocol)
	}
	return c.p.SetNotifyValue(c.hrChar, func(_ *gatt.Characteristic, b []byte, err error) {
		if err == nil {
			f(b)
		}
	})
}

func (c *gattPeripheralConn) SubscribeVendorControl(f func([]byte)) error {
	if c.ctrlChar == nil {
		if err := c.resolve(); err != nil {
			return err
		}
	}
	if c.ctrlChar == nil {
		return fmt.Errorf("%w: vendor control characteristic not found", ErrProtocol)
	}
	return c.p.SetIndicateValue(c.ctrlChar, func(_ *gatt.Characteristic, b []byte, err error) {
		if err == nil {
			f(b)
		}
	})
}

func (c *gattPeripheralConn) SubscribeVendorData(f func([]byte)) error {
	if c.dataChar == nil {
		if err := c.resolve(); err != nil {
			return err
		}
	}
	if c.dataChar == nil {
		return fmt.Errorf("%w: vendor data characteristic not found", ErrProtocol)
	}
	return c.p.SetNotifyValue(c.dataChar, func(_ *gatt.Characteristic, b []byte, err error) {
		if err == nil {
			f(b)
		}
	})
}

func (c *gattPeripheralConn) WriteVendorControl(b []byte) error {
	if c.ctrlChar == nil {
		if err := c.resolve(); err != nil {
			return err
		}
	}
	return c.p.WriteCharacteristic(c.ctrlChar, b, false)
}

func (c *gattPeripheralConn) Unsubscribe() error {
	var firstErr error
	if c.hrChar != nil {
		if err := c.p.SetNotifyValue(c.hrChar, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.ctrlChar != nil {
		if err := c.p.SetIndicateValue(c.ctrlChar, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.dataChar != nil {
		if err := c.p.SetNotifyValue(c.dataChar, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *gattPeripheralConn) Disconnect() error {
	c.p.Device().CancelConnection(c.p)
	return nil
}

func (c *gattPeripheralConn) OnDisconnect(f func()) {
	go func() {
		if _, ok := <-c.disconnected; ok {
			f()
		}
	}()
}
