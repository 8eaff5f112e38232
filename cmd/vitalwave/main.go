// Command vitalwave streams HR/PPI samples from a wrist-worn sensor,
// computes HRV features and cognitive-state scores in real time, and logs
// the resulting events. Session recording and outbound transport are left
// to the Recorder/observer interfaces; this binary wires a no-op recorder
// and a logging observer by default.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/maruel/interrupt"

	"vitalwave.dev/core/internal/config"
	"vitalwave.dev/core/internal/logging"
	"vitalwave.dev/core/internal/model"
	"vitalwave.dev/core/internal/pipeline"
	"vitalwave.dev/core/internal/sensor"
)

func mainImpl() error {
	configPath := flag.String("config", "", "path to a YAML config file (defaults used if absent)")
	deviceName := flag.String("device", "", "device name substring to scan for (overrides config)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	logging.SetVerbose(*verbose)
	log := logging.For("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *deviceName != "" {
		cfg.BLE.DeviceName = *deviceName
	}

	interrupt.HandleCtrlC()

	pipe := pipeline.New(*cfg, pipeline.NoopRecorder{})
	pipe.OnInference(func(e pipeline.InferenceEvent) {
		log.WithField("stress", e.Scores.Stress).
			WithField("cognitive_load", e.Scores.CognitiveLoad).
			WithField("fatigue", e.Scores.Fatigue).
			WithField("window_quality", e.WindowQuality).
			Info("inference")
	})
	pipe.OnHRUpdate(func(e pipeline.HRUpdateEvent) {
		log.WithField("hr", e.HR).Debug("hr update")
	})
	pipe.OnDeviceState(func(e pipeline.DeviceStateEvent) {
		log.WithField("connection_state", e.ConnectionState).
			WithField("battery_level", e.BatteryLevel).
			WithField("signal_quality", e.SignalQuality).
			Debug("device state")
	})

	client := sensor.New(cfg.BLE)
	client.OnSample(func(s model.Sample) {
		if s.IsHR() {
			pipe.ReceiveHR(s.HR, s.At)
			return
		}
		pipe.ReceivePPI(s.PPI, s.At)
	})
	client.OnUnexpectedDisconnect(func() {
		if pipe.IsRecording() {
			pipe.ForceStopSession()
		}
		pipe.PublishDeviceState(client.Snapshot())
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-interrupt.Channel
		cancel()
	}()

	done := make(chan struct{})
	var watched <-chan *config.Config
	if *configPath != "" {
		w, err := config.Watch(*configPath, done)
		if err != nil {
			log.WithError(err).Warn("config watch unavailable, continuing with static config")
		} else {
			watched = w
		}
	}
	go func() {
		for c := range watched {
			cfg = c
			log.Info("config reloaded")
		}
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pipe.PublishDeviceState(client.Snapshot())
			}
		}
	}()

	runErr := client.Run(ctx)
	close(done)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nvitalwave: %s.\n", err)
		os.Exit(1)
	}
}
