package sensor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/model"
)

func testBLEConfig() config.BLEConfig {
	cfg := config.Default().BLE
	cfg.ScanTimeout = time.Second
	cfg.ReconnectAttempts = 3
	cfg.ReconnectDelay = time.Millisecond
	return cfg
}

func TestClient_ConnectAndStream(t *testing.T) {
	fc := newFakeCentral("TestBand")
	c := newWithCentral(testBLEConfig(), fc)

	var mu sync.Mutex
	var samples []model.Sample
	c.OnSample(func(s model.Sample) {
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, model.Connected, c.Phase())

	require.NoError(t, c.StartStreaming(ctx))
	assert.Equal(t, model.Streaming, c.Phase())

	time.Sleep(100 * time.Millisecond)
	c.Stop()
	assert.Equal(t, model.Disconnected, c.Phase())

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, samples)
}

func TestClient_ConnectRetriesThenFails(t *testing.T) {
	fc := newFakeCentral("TestBand")
	fc.failConnect = true
	cfg := testBLEConfig()
	cfg.ReconnectAttempts = 2
	c := newWithCentral(cfg, fc)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, model.ErrorState, c.Phase())
	assert.Equal(t, 2, fc.connectCalls)
}

func TestClient_ConnectRetriesThenSucceeds(t *testing.T) {
	fc := newFakeCentral("TestBand")
	fc.failConnectN = 2
	cfg := testBLEConfig()
	cfg.ReconnectAttempts = 5
	c := newWithCentral(cfg, fc)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, model.Connected, c.Phase())
	assert.Equal(t, 3, fc.connectCalls)
}

func TestClient_StartStreamingProtocolError(t *testing.T) {
	fc := newFakeCentral("TestBand")
	c := newWithCentral(testBLEConfig(), fc)
	require.NoError(t, c.Connect(context.Background()))
	fc.conn.failStart = true

	err := c.StartStreaming(context.Background())
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, model.ErrorState, c.Phase())
}

func TestClient_UnexpectedDisconnectFiresCallback(t *testing.T) {
	fc := newFakeCentral("TestBand")
	c := newWithCentral(testBLEConfig(), fc)

	var fired bool
	var mu sync.Mutex
	c.OnUnexpectedDisconnect(func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.StartStreaming(context.Background()))

	fc.conn.triggerDisconnect()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired)
	assert.Equal(t, model.Disconnected, c.Phase())
}

func TestClient_RunReconnectsAfterUnexpectedDisconnect(t *testing.T) {
	fc := newFakeCentral("TestBand")
	c := newWithCentral(testBLEConfig(), fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, model.Streaming, c.Phase())

	fc.conn.triggerDisconnect()
	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, fc.connectCalls, 2)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after ctx cancel")
	}
}

func TestClient_Snapshot(t *testing.T) {
	fc := newFakeCentral("TestBand")
	c := newWithCentral(testBLEConfig(), fc)
	require.NoError(t, c.Connect(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, "TestBand", snap.Name)
	assert.Equal(t, 91, snap.BatteryPercent)
	assert.Equal(t, model.Connected, snap.Phase)
}
