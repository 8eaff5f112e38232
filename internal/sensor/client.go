// Package sensor implements the wireless sensor client: the connection
// state machine and the vendor binary protocol that turns GATT
// notifications into model.Sample values.
package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/logging"
	"vitalwave.dev/core/internal/model"
)

// commandTimeout bounds how long a control-channel write waits for its
// matching 0xF0 response before the command is considered failed.
const commandTimeout = 5 * time.Second

// qualityWindowSize is the rolling skin-contact sample count: a rolling
// window of the last 50 skin-contact bits.
const qualityWindowSize = 50

// Client drives a single wireless sensor across its connection state
// machine. It owns DeviceInfo exclusively; callers read it through
// Snapshot.
type Client struct {
	cfg     config.BLEConfig
	central central
	log     *logrus.Entry

	mu    sync.Mutex
	info  model.DeviceInfo
	phase model.ConnectionPhase

	quality *qualityWindow

	conn peripheralConn

	onSample               func(model.Sample)
	onUnexpectedDisconnect func()

	pendingCommand chan commandResponse

	// reconnectSignal decouples the caller-registered disconnect callback
	// from Run's own auto-reconnect loop: both fire off the same
	// unsolicited-disconnect event without either depending on the other
	// being registered.
	reconnectSignal chan struct{}
}

// New returns a client that talks to the real radio via github.com/paypal/gatt.
func New(cfg config.BLEConfig) *Client {
	return newWithCentral(cfg, newGattCentral(cfg))
}

func newWithCentral(cfg config.BLEConfig, c central) *Client {
	return &Client{
		cfg:             cfg,
		central:         c,
		log:             logging.For("sensor"),
		quality:         newQualityWindow(qualityWindowSize),
		phase:           model.Disconnected,
		reconnectSignal: make(chan struct{}, 1),
	}
}

// OnSample registers the callback invoked for every decoded HR or PPI
// sample. It runs in the notification-delivery context and must not
// block.
func (c *Client) OnSample(f func(model.Sample)) { c.onSample = f }

// OnUnexpectedDisconnect registers the callback fired when the transport
// drops mid-stream while Streaming was active.
func (c *Client) OnUnexpectedDisconnect(f func()) { c.onUnexpectedDisconnect = f }

// Snapshot returns a copy of the client's DeviceInfo. Safe to call from any
// goroutine.
func (c *Client) Snapshot() model.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.info
	info.Phase = c.phase
	info.SignalQuality = c.quality.mean()
	return info
}

func (c *Client) setPhase(p model.ConnectionPhase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Client) Phase() model.ConnectionPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Connect runs discovery then the retry-with-delay connect sequence. On
// success the client is left Connected with battery read.
func (c *Client) Connect(ctx context.Context) error {
	c.setPhase(model.Scanning)
	handle, err := c.central.Scan(ctx, c.cfg.ScanTimeout, c.cfg.DeviceName)
	if err != nil {
		c.setPhase(model.Disconnected)
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}

	c.setPhase(model.Connecting)
	var lastErr error
	for attempt := 0; attempt < c.cfg.ReconnectAttempts; attempt++ {
		conn, err := c.central.Connect(ctx, handle)
		if err == nil {
			c.conn = conn
			break
		}
		lastErr = err
		c.log.WithError(err).WithField("attempt", attempt+1).Warn("connect attempt failed")
		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			c.setPhase(model.ErrorState)
			return ctx.Err()
		}
	}
	if c.conn == nil {
		c.setPhase(model.ErrorState)
		return fmt.Errorf("%w: %v", ErrConnectFailed, lastErr)
	}

	c.mu.Lock()
	c.info.Name = handle.Name()
	c.info.Address = handle.Address()
	c.mu.Unlock()

	battery, err := c.conn.ReadBattery()
	if err != nil {
		c.log.WithError(err).Warn("battery read failed")
		battery = -1
	}
	c.mu.Lock()
	c.info.BatteryPercent = battery
	c.mu.Unlock()

	c.conn.OnDisconnect(c.handleUnsolicitedDisconnect)
	c.setPhase(model.Connected)
	return nil
}

// StartStreaming subscribes the standard HR service and the two vendor
// channels, then writes the START command and waits for its acknowledgement.
func (c *Client) StartStreaming(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", ErrProtocol)
	}

	if err := c.conn.SubscribeHR(c.handleHRFrame); err != nil {
		return fmt.Errorf("%w: subscribe HR: %v", ErrProtocol, err)
	}
	c.pendingCommand = make(chan commandResponse, 1)
	if err := c.conn.SubscribeVendorControl(c.handleControlResponse); err != nil {
		return fmt.Errorf("%w: subscribe vendor control: %v", ErrProtocol, err)
	}
	if err := c.conn.SubscribeVendorData(c.handleVendorDataFrame); err != nil {
		return fmt.Errorf("%w: subscribe vendor data: %v", ErrProtocol, err)
	}

	if err := c.sendCommand(opStart, measurementPPI); err != nil {
		return err
	}
	select {
	case resp := <-c.pendingCommand:
		if resp.status != 0 {
			c.setPhase(model.ErrorState)
			c.log.WithField("status", resp.status).Error("START PPI rejected by device")
			return fmt.Errorf("%w: START PPI status=%d", ErrProtocol, resp.status)
		}
	case <-time.After(commandTimeout):
		c.setPhase(model.ErrorState)
		c.log.Error("START PPI: no response")
		return fmt.Errorf("%w: START PPI: no response", ErrProtocol)
	case <-ctx.Done():
		return ctx.Err()
	}

	c.setPhase(model.Streaming)
	return nil
}

func (c *Client) sendCommand(op, measurementType byte, params ...byte) error {
	if err := c.conn.WriteVendorControl(encodeCommand(op, measurementType, params...)); err != nil {
		return fmt.Errorf("%w: write command: %v", ErrProtocol, err)
	}
	return nil
}

// Stop tears the session down: STOP PPI (best-effort), unsubscribe
// (best-effort), disconnect (best-effort). Every step's failure is logged
// and ignored; local state always ends Disconnected.
func (c *Client) Stop() {
	if c.conn == nil {
		c.setPhase(model.Disconnected)
		return
	}
	if err := c.sendCommand(opStop, measurementPPI); err != nil {
		c.log.WithError(err).Warn("STOP command failed")
	}
	if err := c.conn.Unsubscribe(); err != nil {
		c.log.WithError(err).Warn("unsubscribe failed")
	}
	if err := c.conn.Disconnect(); err != nil {
		c.log.WithError(err).Warn("disconnect failed")
	}
	c.conn = nil
	c.setPhase(model.Disconnected)
}

func (c *Client) handleUnsolicitedDisconnect() {
	wasStreaming := c.Phase() == model.Streaming
	c.conn = nil
	c.setPhase(model.Disconnected)
	if wasStreaming && c.onUnexpectedDisconnect != nil {
		c.onUnexpectedDisconnect()
	}
	select {
	case c.reconnectSignal <- struct{}{}:
	default:
	}
}

// Run is the persistent driver task: it owns the client across repeated
// connect/stream cycles and outlives individual Connect/Stop calls,
// auto-reconnecting after an unexpected disconnect using the same bounded
// retry budget as the initial connect. It returns when ctx is cancelled or
// when a connect/stream attempt exhausts its retries.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		if err := c.StartStreaming(ctx); err != nil {
			c.Stop()
			return err
		}
		select {
		case <-ctx.Done():
			c.Stop()
			return ctx.Err()
		case <-c.reconnectSignal:
			c.log.Info("unexpected disconnect, reconnecting")
		}
	}
}

func (c *Client) handleHRFrame(b []byte) {
	s, ok := decodeHRFrame(b, time.Now())
	if !ok {
		c.log.Warn("dropped malformed HR frame")
		return
	}
	if c.onSample != nil {
		c.onSample(s)
	}
}

func (c *Client) handleVendorDataFrame(b []byte) {
	s, ok := decodePPIFrame(b, time.Now())
	if !ok {
		c.log.Debug("dropped frame: wrong type or too short")
		return
	}
	for _, contact := range s.SkinContact {
		c.quality.add(contact)
	}
	if c.onSample != nil {
		c.onSample(s)
	}
}

func (c *Client) handleControlResponse(b []byte) {
	resp, err := decodeCommandResponse(b)
	if err != nil {
		c.log.WithError(err).Warn("dropped malformed command response")
		return
	}
	if c.pendingCommand != nil {
		select {
		case c.pendingCommand <- resp:
		default:
		}
	}
}
