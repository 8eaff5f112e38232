// Package config loads the three recognised option groups -- SignalConfig,
// MLConfig and BLEConfig -- with the pipeline's documented defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SignalConfig controls the PPI cleaner and sliding window.
type SignalConfig struct {
	WindowSizeSec     float64 `yaml:"window_size_sec"`
	WindowStepSec     float64 `yaml:"window_step_sec"`
	MinPPIMs          int     `yaml:"min_ppi_ms"`
	MaxPPIMs          int     `yaml:"max_ppi_ms"`
	MaxPPIDiffRatio   float64 `yaml:"max_ppi_diff_ratio"`
	MinQualityRatio   float64 `yaml:"min_quality_ratio"`
	InterpolationMethod string `yaml:"interpolation_method"` // "cubic" or "linear"
}

// MLConfig controls the inference engine.
type MLConfig struct {
	ModelPath            string  `yaml:"model_path"`
	ScalerPath           string  `yaml:"scaler_path"`
	PredictionIntervalSec float64 `yaml:"prediction_interval_sec"`
	FatigueHorizonMin    float64 `yaml:"fatigue_horizon_min"`
	ScoreSmoothingAlpha  float64 `yaml:"score_smoothing_alpha"`
}

// BLEConfig controls the sensor client's discovery and retry behavior.
type BLEConfig struct {
	DeviceName        string        `yaml:"device_name"`
	ScanTimeout        time.Duration `yaml:"scan_timeout"`
	ReconnectAttempts  int           `yaml:"reconnect_attempts"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay"`
	HRUUID             string        `yaml:"hr_uuid"`
	BatteryUUID        string        `yaml:"battery_uuid"`
	VendorControlUUID  string        `yaml:"vendor_control_uuid"`
	VendorDataUUID     string        `yaml:"vendor_data_uuid"`
}

// Config is the union of all three option groups, the unit loaded from and
// watched on disk.
type Config struct {
	Signal SignalConfig `yaml:"signal"`
	ML     MLConfig     `yaml:"ml"`
	BLE    BLEConfig    `yaml:"ble"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Signal: SignalConfig{
			WindowSizeSec:       15.0,
			WindowStepSec:       1.0,
			MinPPIMs:            300,
			MaxPPIMs:            2000,
			MaxPPIDiffRatio:     0.20,
			MinQualityRatio:     0.80,
			InterpolationMethod: "cubic",
		},
		ML: MLConfig{
			PredictionIntervalSec: 1.0,
			FatigueHorizonMin:     10.0,
			ScoreSmoothingAlpha:   0.3,
		},
		BLE: BLEConfig{
			DeviceName:        "",
			ScanTimeout:        10 * time.Second,
			ReconnectAttempts:  3,
			ReconnectDelay:     2 * time.Second,
			HRUUID:             "00002a37-0000-1000-8000-00805f9b34fb",
			BatteryUUID:        "00002a19-0000-1000-8000-00805f9b34fb",
			VendorControlUUID:  "fb005c81-02e7-f387-1cad-8acd2d8df0c8",
			VendorDataUUID:     "fb005c82-02e7-f387-1cad-8acd2d8df0c8",
		},
	}
}

// Load reads a YAML config file at path and overlays it onto Default().
// A missing file is not an error: the defaults are returned unchanged, so
// callers can run with zero configuration on the happy path.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration combinations that would violate the
// pipeline's invariants (e.g. a zero window step would break the "at most
// one window per window_step_sec" guarantee).
func (c *Config) Validate() error {
	if c.Signal.WindowSizeSec <= 0 {
		return fmt.Errorf("config: signal.window_size_sec must be > 0")
	}
	if c.Signal.WindowStepSec <= 0 {
		return fmt.Errorf("config: signal.window_step_sec must be > 0")
	}
	if c.Signal.MinPPIMs <= 0 || c.Signal.MaxPPIMs <= c.Signal.MinPPIMs {
		return fmt.Errorf("config: signal.min_ppi_ms/max_ppi_ms out of order")
	}
	if c.ML.ScoreSmoothingAlpha <= 0 || c.ML.ScoreSmoothingAlpha >= 1 {
		return fmt.Errorf("config: ml.score_smoothing_alpha must be in (0,1)")
	}
	return nil
}
