package sensor

import (
	"context"
	"math/rand"
	"time"
)

// fakeWaveform is the fake central's cheezy cardiac signal generator,
// producing a drifting RR interval. It is not a physiological model, only
// enough signal shape to exercise the pipeline without a live sensor.
type fakeWaveform struct {
	rand    *rand.Rand
	meanRR  float64
	drift   float64
	contact bool
}

func makeFakeWaveform() *fakeWaveform {
	return &fakeWaveform{rand: rand.New(rand.NewSource(1)), meanRR: 800, contact: true}
}

func (w *fakeWaveform) next() (ppiMS int, hr int, errEstimate int, contact bool) {
	w.drift += w.rand.NormFloat64() * 5
	if w.drift > 100 {
		w.drift = 100
	}
	if w.drift < -100 {
		w.drift = -100
	}
	rr := w.meanRR + w.drift + w.rand.NormFloat64()*15
	if rr < 300 {
		rr = 300
	}
	if rr > 2000 {
		rr = 2000
	}
	return int(rr), int(60000 / rr), 5 + w.rand.Intn(10), w.contact
}

// fakeCentral is an in-process central implementation for tests: it never
// touches a radio.
type fakeCentral struct {
	name    string
	address string
	// failConnect makes every Connect call fail, to exercise client.go's
	// retry loop.
	failConnect   bool
	failConnectN  int
	connectCalls  int
	scanErr       error
	waveform      *fakeWaveform
	ticker        time.Duration
	conn          *fakePeripheralConn
}

func newFakeCentral(name string) *fakeCentral {
	return &fakeCentral{name: name, address: "00:11:22:33:44:55", waveform: makeFakeWaveform(), ticker: 20 * time.Millisecond}
}

type fakePeripheralHandle struct {
	name, address string
}

func (h *fakePeripheralHandle) Name() string    { return h.name }
func (h *fakePeripheralHandle) Address() string { return h.address }

func (f *fakeCentral) Scan(ctx context.Context, timeout time.Duration, nameSubstring string) (peripheralHandle, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &fakePeripheralHandle{name: f.name, address: f.address}, nil
}

func (f *fakeCentral) Connect(ctx context.Context, h peripheralHandle) (peripheralConn, error) {
	f.connectCalls++
	if f.failConnect || f.connectCalls <= f.failConnectN {
		return nil, ErrConnectFailed
	}
	f.conn = &fakePeripheralConn{
		waveform:     f.waveform,
		ticker:       f.ticker,
		stop:         make(chan struct{}),
		disconnected: make(chan struct{}),
	}
	return f.conn, nil
}

// fakePeripheralConn streams synthetic HR/PPI frames from its own ticker
// goroutine once a START command is written, and can simulate an
// unsolicited drop via triggerDisconnect.
type fakePeripheralConn struct {
	waveform *fakeWaveform
	ticker   time.Duration

	battery int

	hrHandler   func([]byte)
	ctrlHandler func([]byte)
	dataHandler func([]byte)

	stop         chan struct{}
	stopped      bool
	disconnected chan struct{}
	onDisconnect func()

	lastCommand commandResponse
	failStart   bool
}

func (c *fakePeripheralConn) ReadBattery() (int, error) {
	if c.battery == 0 {
		return 91, nil
	}
	return c.battery, nil
}

func (c *fakePeripheralConn) SubscribeHR(f func([]byte)) error {
	c.hrHandler = f
	return nil
}

func (c *fakePeripheralConn) SubscribeVendorControl(f func([]byte)) error {
	c.ctrlHandler = f
	return nil
}

func (c *fakePeripheralConn) SubscribeVendorData(f func([]byte)) error {
	c.dataHandler = f
	return nil
}

// WriteVendorControl interprets START/STOP commands and, on START,
// acknowledges then begins emitting synthetic frames until STOP or
// triggerDisconnect.
func (c *fakePeripheralConn) WriteVendorControl(b []byte) error {
	if len(b) < 2 {
		return nil
	}
	op, measurementType := b[0], b[1]
	status := byte(0)
	if op == opStart && c.failStart {
		status = 1
	}
	if c.ctrlHandler != nil {
		c.ctrlHandler([]byte{responsePrefix, op, measurementType, status})
	}
	if op == opStart && status == 0 {
		go c.stream()
	}
	if op == opStop {
		c.halt()
	}
	return nil
}

func (c *fakePeripheralConn) stream() {
	t := time.NewTicker(c.ticker)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-t.C:
			ppi, hr, errEst, contact := c.waveform.next()
			if c.hrHandler != nil {
				c.hrHandler(encodeFakeHR(hr))
			}
			if c.dataHandler != nil {
				c.dataHandler(encodeFakePPI(now, hr, ppi, errEst, contact))
			}
		}
	}
}

func (c *fakePeripheralConn) halt() {
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}

func (c *fakePeripheralConn) Unsubscribe() error {
	c.hrHandler, c.ctrlHandler, c.dataHandler = nil, nil, nil
	return nil
}

func (c *fakePeripheralConn) Disconnect() error {
	c.halt()
	return nil
}

func (c *fakePeripheralConn) OnDisconnect(f func()) {
	c.onDisconnect = f
	go func() {
		<-c.disconnected
		f()
	}()
}

// triggerDisconnect simulates the radio dropping the link without Stop
// having been called.
func (c *fakePeripheralConn) triggerDisconnect() {
	c.halt()
	close(c.disconnected)
}

func encodeFakeHR(hr int) []byte {
	if hr > 255 {
		return []byte{0x01, byte(hr), byte(hr >> 8)}
	}
	return []byte{0x00, byte(hr)}
}

func encodeFakePPI(now time.Time, hr, ppi, errEstimate int, contact bool) []byte {
	header := make([]byte, ppiHeaderLen)
	header[0] = measurementPPI
	header[9] = 0x00
	flags := byte(0)
	if contact {
		flags |= 0x01
	}
	sample := []byte{
		byte(hr),
		byte(ppi), byte(ppi >> 8),
		byte(errEstimate), byte(errEstimate >> 8),
		flags,
	}
	return append(header, sample...)
}
