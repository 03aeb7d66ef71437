package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Counting policy names accepted by counting_policy.
const (
	PolicyConfirm  = "confirm"
	PolicyMovement = "movement"
	PolicyLine     = "line"
)

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be used
// for startup configuration and inspection. All fields are optional:
// fields omitted from the JSON retain their defaults, so partial files are
// safe.
type TuningConfig struct {
	// Detection params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	UseGPU              *bool    `json:"use_gpu,omitempty"`

	// Frame source params
	SkipFrames *int `json:"skip_frames,omitempty"` // process every Kth frame, 1-5

	// Tracker params
	DistanceThreshold    *float64 `json:"distance_threshold,omitempty"` // pixels
	MovementThreshold    *float64 `json:"movement_threshold,omitempty"` // pixels
	MaxMissedFrames      *int     `json:"max_missed_frames,omitempty"`
	ParkedFrameThreshold *int     `json:"parked_frame_threshold,omitempty"`
	HistoryLength        *int     `json:"history_length,omitempty"`

	// Counting params
	CountingPolicy *string     `json:"counting_policy,omitempty"` // confirm|movement|line
	ConfirmFrames  *int        `json:"confirm_frames,omitempty"`
	CountParked    *bool       `json:"count_parked,omitempty"`
	CountLine      *[4]float64 `json:"count_line,omitempty"` // x1,y1,x2,y2
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.SkipFrames != nil {
		if *c.SkipFrames < 1 || *c.SkipFrames > 5 {
			return fmt.Errorf("skip_frames must be between 1 and 5, got %d", *c.SkipFrames)
		}
	}
	if c.DistanceThreshold != nil && *c.DistanceThreshold <= 0 {
		return fmt.Errorf("distance_threshold must be positive, got %f", *c.DistanceThreshold)
	}
	if c.MovementThreshold != nil && *c.MovementThreshold <= 0 {
		return fmt.Errorf("movement_threshold must be positive, got %f", *c.MovementThreshold)
	}
	if c.MaxMissedFrames != nil && *c.MaxMissedFrames < 1 {
		return fmt.Errorf("max_missed_frames must be >= 1, got %d", *c.MaxMissedFrames)
	}
	if c.ParkedFrameThreshold != nil && *c.ParkedFrameThreshold < 1 {
		return fmt.Errorf("parked_frame_threshold must be >= 1, got %d", *c.ParkedFrameThreshold)
	}
	if c.HistoryLength != nil && *c.HistoryLength < 2 {
		return fmt.Errorf("history_length must be >= 2, got %d", *c.HistoryLength)
	}
	if c.ConfirmFrames != nil && *c.ConfirmFrames < 1 {
		return fmt.Errorf("confirm_frames must be >= 1, got %d", *c.ConfirmFrames)
	}
	if c.CountingPolicy != nil {
		switch *c.CountingPolicy {
		case PolicyConfirm, PolicyMovement, PolicyLine:
		default:
			return fmt.Errorf("unknown counting_policy %q", *c.CountingPolicy)
		}
		if *c.CountingPolicy == PolicyLine && c.CountLine == nil {
			return fmt.Errorf("counting_policy %q requires count_line", PolicyLine)
		}
	}
	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.35
	}
	return *c.ConfidenceThreshold
}

// GetUseGPU returns the use_gpu value or the default.
func (c *TuningConfig) GetUseGPU() bool {
	if c.UseGPU == nil {
		return true
	}
	return *c.UseGPU
}

// GetSkipFrames returns the skip_frames value or the default.
func (c *TuningConfig) GetSkipFrames() int {
	if c.SkipFrames == nil {
		return 2
	}
	return *c.SkipFrames
}

// GetDistanceThreshold returns the distance_threshold value or the default.
func (c *TuningConfig) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return 150
	}
	return *c.DistanceThreshold
}

// GetMovementThreshold returns the movement_threshold value or the default.
func (c *TuningConfig) GetMovementThreshold() float64 {
	if c.MovementThreshold == nil {
		return 15
	}
	return *c.MovementThreshold
}

// GetMaxMissedFrames returns the max_missed_frames value or the default.
func (c *TuningConfig) GetMaxMissedFrames() int {
	if c.MaxMissedFrames == nil {
		return 45
	}
	return *c.MaxMissedFrames
}

// GetParkedFrameThreshold returns the parked_frame_threshold value or the default.
func (c *TuningConfig) GetParkedFrameThreshold() int {
	if c.ParkedFrameThreshold == nil {
		return 200
	}
	return *c.ParkedFrameThreshold
}

// GetHistoryLength returns the history_length value or the default.
func (c *TuningConfig) GetHistoryLength() int {
	if c.HistoryLength == nil {
		return 32
	}
	return *c.HistoryLength
}

// GetCountingPolicy returns the counting_policy value or the default.
func (c *TuningConfig) GetCountingPolicy() string {
	if c.CountingPolicy == nil {
		return PolicyConfirm
	}
	return *c.CountingPolicy
}

// GetConfirmFrames returns the confirm_frames value or the default.
func (c *TuningConfig) GetConfirmFrames() int {
	if c.ConfirmFrames == nil {
		return 3
	}
	return *c.ConfirmFrames
}

// GetCountParked returns the count_parked value or the default.
func (c *TuningConfig) GetCountParked() bool {
	if c.CountParked == nil {
		return true
	}
	return *c.CountParked
}

// GetCountLine returns the count_line value or a zero line.
func (c *TuningConfig) GetCountLine() [4]float64 {
	if c.CountLine == nil {
		return [4]float64{}
	}
	return *c.CountLine
}
