package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/rover.defaults.json"

// RoverConfig represents the root configuration for the rover's serial
// links, ACK/NACK retry behavior, fusion estimator tuning, and navigator
// geometry/velocity limits. It is read once at service startup; no service
// accepts configuration updates at runtime.
type RoverConfig struct {
	// Serial links: one per onboard device (UBX GNSS receiver, Unicore
	// dual-antenna heading receiver, motor controller).
	GNSSDevice    *string `json:"gnss_device,omitempty"`
	GNSSBaud      *int    `json:"gnss_baud,omitempty"`
	HeadingDevice *string `json:"heading_device,omitempty"`
	HeadingBaud   *int    `json:"heading_baud,omitempty"`
	DriveDevice   *string `json:"drive_device,omitempty"`
	DriveBaud     *int    `json:"drive_baud,omitempty"`

	ReconnectDelay *string `json:"reconnect_delay,omitempty"` // duration string like "500ms"
	ReadChunkBytes *int    `json:"read_chunk_bytes,omitempty"`
	RXQueueSize    *int    `json:"rx_queue_size,omitempty"`
	TXQueueSize    *int    `json:"tx_queue_size,omitempty"`

	// ACK/NACK matcher (internal/ackmatch)
	AckMinInterval  *string `json:"ack_min_interval,omitempty"` // duration string like "20ms"
	AckTimeout      *string `json:"ack_timeout,omitempty"`      // duration string like "300ms"
	AckMaxRetries   *int    `json:"ack_max_retries,omitempty"`
	AckRetryBackoff *string `json:"ack_retry_backoff,omitempty"` // duration string like "50ms"

	// Fusion estimator (internal/fusion)
	FusionWindowSize  *int     `json:"fusion_window_size,omitempty"`
	FusionSmoothAlpha *float64 `json:"fusion_smooth_alpha,omitempty"`
	FusionQualityGate *float64 `json:"fusion_quality_gate,omitempty"`

	// Navigator geometry and velocity limits (internal/navigator)
	TrackWidthM      *float64 `json:"track_width_m,omitempty"`
	MaxSpeedMps      *float64 `json:"max_speed_mps,omitempty"`
	LateralAccelMax  *float64 `json:"lateral_accel_max,omitempty"`
	LookaheadM       *float64 `json:"lookahead_m,omitempty"`
	GoalRadiusM      *float64 `json:"goal_radius_m,omitempty"`
	MinTurnRadiusM   *float64 `json:"min_turn_radius_m,omitempty"`
	MinWheelSpeedMps *float64 `json:"min_wheel_speed_mps,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRoverConfig returns a RoverConfig with all fields set to nil.
// Use LoadRoverConfig to load actual values from the defaults file.
func EmptyRoverConfig() *RoverConfig {
	return &RoverConfig{}
}

// LoadRoverConfig loads a RoverConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadRoverConfig(path string) (*RoverConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyRoverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical rover defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded. Every cmd/* service main and the
// config tests call it.
func MustLoadDefaultConfig() *RoverConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/navigator/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadRoverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RoverConfig) Validate() error {
	if c.FusionSmoothAlpha != nil {
		if *c.FusionSmoothAlpha < 0 || *c.FusionSmoothAlpha > 1 {
			return fmt.Errorf("fusion_smooth_alpha must be between 0 and 1, got %f", *c.FusionSmoothAlpha)
		}
	}
	if c.FusionQualityGate != nil {
		if *c.FusionQualityGate < 0 || *c.FusionQualityGate > 1 {
			return fmt.Errorf("fusion_quality_gate must be between 0 and 1, got %f", *c.FusionQualityGate)
		}
	}
	if c.FusionWindowSize != nil && *c.FusionWindowSize < 1 {
		return fmt.Errorf("fusion_window_size must be positive, got %d", *c.FusionWindowSize)
	}
	if c.AckMaxRetries != nil && *c.AckMaxRetries < 0 {
		return fmt.Errorf("ack_max_retries must be non-negative, got %d", *c.AckMaxRetries)
	}
	durations := map[string]*string{
		"reconnect_delay":   c.ReconnectDelay,
		"ack_min_interval":  c.AckMinInterval,
		"ack_timeout":       c.AckTimeout,
		"ack_retry_backoff": c.AckRetryBackoff,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	if c.TrackWidthM != nil && *c.TrackWidthM <= 0 {
		return fmt.Errorf("track_width_m must be positive, got %f", *c.TrackWidthM)
	}
	if c.MaxSpeedMps != nil && *c.MaxSpeedMps <= 0 {
		return fmt.Errorf("max_speed_mps must be positive, got %f", *c.MaxSpeedMps)
	}
	return nil
}

// GetGNSSDevice returns the gnss_device path or the default.
func (c *RoverConfig) GetGNSSDevice() string {
	if c.GNSSDevice == nil {
		return "/dev/ttyGNSS"
	}
	return *c.GNSSDevice
}

// GetGNSSBaud returns the gnss_baud or the default.
func (c *RoverConfig) GetGNSSBaud() int {
	if c.GNSSBaud == nil {
		return 115200
	}
	return *c.GNSSBaud
}

// GetHeadingDevice returns the heading_device path or the default.
func (c *RoverConfig) GetHeadingDevice() string {
	if c.HeadingDevice == nil {
		return "/dev/ttyHEADING"
	}
	return *c.HeadingDevice
}

// GetHeadingBaud returns the heading_baud or the default.
func (c *RoverConfig) GetHeadingBaud() int {
	if c.HeadingBaud == nil {
		return 115200
	}
	return *c.HeadingBaud
}

// GetDriveDevice returns the drive_device path or the default.
func (c *RoverConfig) GetDriveDevice() string {
	if c.DriveDevice == nil {
		return "/dev/ttyDRIVE"
	}
	return *c.DriveDevice
}

// GetDriveBaud returns the drive_baud or the default.
func (c *RoverConfig) GetDriveBaud() int {
	if c.DriveBaud == nil {
		return 115200
	}
	return *c.DriveBaud
}

// GetReconnectDelay parses and returns ReconnectDelay as a time.Duration.
func (c *RoverConfig) GetReconnectDelay() time.Duration {
	if c.ReconnectDelay == nil || *c.ReconnectDelay == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ReconnectDelay)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetReadChunkBytes returns the read_chunk_bytes value or the default.
func (c *RoverConfig) GetReadChunkBytes() int {
	if c.ReadChunkBytes == nil {
		return 4096
	}
	return *c.ReadChunkBytes
}

// GetRXQueueSize returns the rx_queue_size value or the default.
func (c *RoverConfig) GetRXQueueSize() int {
	if c.RXQueueSize == nil {
		return 256
	}
	return *c.RXQueueSize
}

// GetTXQueueSize returns the tx_queue_size value or the default.
func (c *RoverConfig) GetTXQueueSize() int {
	if c.TXQueueSize == nil {
		return 256
	}
	return *c.TXQueueSize
}

// GetAckMinInterval parses and returns AckMinInterval as a time.Duration.
func (c *RoverConfig) GetAckMinInterval() time.Duration {
	if c.AckMinInterval == nil || *c.AckMinInterval == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.AckMinInterval)
	if err != nil {
		return 20 * time.Millisecond
	}
	return d
}

// GetAckTimeout parses and returns AckTimeout as a time.Duration.
func (c *RoverConfig) GetAckTimeout() time.Duration {
	if c.AckTimeout == nil || *c.AckTimeout == "" {
		return 300 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.AckTimeout)
	if err != nil {
		return 300 * time.Millisecond
	}
	return d
}

// GetAckMaxRetries returns the ack_max_retries value or the default.
func (c *RoverConfig) GetAckMaxRetries() int {
	if c.AckMaxRetries == nil {
		return 3
	}
	return *c.AckMaxRetries
}

// GetAckRetryBackoff parses and returns AckRetryBackoff as a time.Duration.
func (c *RoverConfig) GetAckRetryBackoff() time.Duration {
	if c.AckRetryBackoff == nil || *c.AckRetryBackoff == "" {
		return 50 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.AckRetryBackoff)
	if err != nil {
		return 50 * time.Millisecond
	}
	return d
}

// GetFusionWindowSize returns the fusion_window_size value or the default.
func (c *RoverConfig) GetFusionWindowSize() int {
	if c.FusionWindowSize == nil {
		return 20
	}
	return *c.FusionWindowSize
}

// GetFusionSmoothAlpha returns the fusion_smooth_alpha value or the default.
func (c *RoverConfig) GetFusionSmoothAlpha() float64 {
	if c.FusionSmoothAlpha == nil {
		return 0.1
	}
	return *c.FusionSmoothAlpha
}

// GetFusionQualityGate returns the fusion_quality_gate value or the default.
func (c *RoverConfig) GetFusionQualityGate() float64 {
	if c.FusionQualityGate == nil {
		return 0.8
	}
	return *c.FusionQualityGate
}

// GetTrackWidthM returns the track_width_m value or the default.
func (c *RoverConfig) GetTrackWidthM() float64 {
	if c.TrackWidthM == nil {
		return 0.58
	}
	return *c.TrackWidthM
}

// GetMaxSpeedMps returns the max_speed_mps value or the default.
func (c *RoverConfig) GetMaxSpeedMps() float64 {
	if c.MaxSpeedMps == nil {
		return 0.5
	}
	return *c.MaxSpeedMps
}

// GetLateralAccelMax returns the lateral_accel_max value or the default.
func (c *RoverConfig) GetLateralAccelMax() float64 {
	if c.LateralAccelMax == nil {
		return 1.0
	}
	return *c.LateralAccelMax
}

// GetLookaheadM returns the lookahead_m value or the default.
func (c *RoverConfig) GetLookaheadM() float64 {
	if c.LookaheadM == nil {
		return 1.0
	}
	return *c.LookaheadM
}

// GetGoalRadiusM returns the goal_radius_m value or the default.
func (c *RoverConfig) GetGoalRadiusM() float64 {
	if c.GoalRadiusM == nil {
		return 1.0
	}
	return *c.GoalRadiusM
}

// GetMinTurnRadiusM returns the min_turn_radius_m value or the default.
func (c *RoverConfig) GetMinTurnRadiusM() float64 {
	if c.MinTurnRadiusM == nil {
		return 0
	}
	return *c.MinTurnRadiusM
}

// GetMinWheelSpeedMps returns the min_wheel_speed_mps value or the default.
func (c *RoverConfig) GetMinWheelSpeedMps() float64 {
	if c.MinWheelSpeedMps == nil {
		return 0
	}
	return *c.MinWheelSpeedMps
}
