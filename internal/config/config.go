// Package config loads the recognized configuration keys from file,
// environment, and defaults using viper, and exposes typed accessors
// plus per-channel calibration with a write gate keyed on the BC state
// passed to SetCalibration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fitzterra/battery-capacity-meter/internal/adc"
	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
)

// Config holds one channel's tunables plus global timing.
type Config struct {
	v *viper.Viper
}

// New returns a Config pre-loaded with defaults. Load may then overlay a
// file and/or environment on top.
func New() *Config {
	v := viper.New()
	v.SetDefault("t_s_ms", 50)
	v.SetDefault("t_rest_s", 300)
	v.SetDefault("max_cycles", 2)
	v.SetDefault("v_full_mv", 4150)
	v.SetDefault("v_empty_mv", 2800)
	v.SetDefault("i_term_ch_ma", 50)
	v.SetDefault("v_jump_mv", 2000)
	v.SetDefault("v_drop_mv", 2000)
	v.SetDefault("v_jump_window_ms", 300)
	v.SetDefault("v_drop_window_ms", 500)
	v.SetDefault("i_edge_ma", 200)
	v.SetDefault("i_edge_window_ms", 100)
	v.SetDefault("telemetry_decimation", 20)
	v.SetDefault("heartbeat_s", 60)
	v.SetDefault("bus_max_hold_ms", 50) // three ADC conversions per transaction at ~10ms settle each, plus overhead
	v.SetEnvPrefix("bcm")
	v.AutomaticEnv()
	return &Config{v: v}
}

// Load overlays a config file (any format viper supports by extension:
// yaml, toml, json, ...) onto the defaults. A missing file at path is
// not an error if path is empty.
func (c *Config) Load(path string) error {
	if path == "" {
		return nil
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.v.GetInt("t_s_ms")) * time.Millisecond
}

func (c *Config) RestDuration() time.Duration {
	return time.Duration(c.v.GetInt("t_rest_s")) * time.Second
}

func (c *Config) MaxCycles() int { return c.v.GetInt("max_cycles") }

func (c *Config) BusMaxHold() time.Duration {
	return time.Duration(c.v.GetInt("bus_max_hold_ms")) * time.Millisecond
}

func (c *Config) TelemetryDecimation() int { return c.v.GetInt("telemetry_decimation") }

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.v.GetInt("heartbeat_s")) * time.Second
}

func (c *Config) VFullMV() int32      { return int32(c.v.GetInt("v_full_mv")) }
func (c *Config) VEmptyMV() int32     { return int32(c.v.GetInt("v_empty_mv")) }
func (c *Config) ITermChMA() int32    { return int32(c.v.GetInt("i_term_ch_ma")) }
func (c *Config) VJumpMV() int32      { return int32(c.v.GetInt("v_jump_mv")) }
func (c *Config) VDropMV() int32      { return int32(c.v.GetInt("v_drop_mv")) }
func (c *Config) IEdgeMA() int32      { return int32(c.v.GetInt("i_edge_ma")) }
func (c *Config) VJumpWindow() time.Duration {
	return time.Duration(c.v.GetInt("v_jump_window_ms")) * time.Millisecond
}
func (c *Config) VDropWindow() time.Duration {
	return time.Duration(c.v.GetInt("v_drop_window_ms")) * time.Millisecond
}
func (c *Config) IEdgeWindow() time.Duration {
	return time.Duration(c.v.GetInt("i_edge_window_ms")) * time.Millisecond
}

// Calibration returns channel's calibration, overlaid from
// calibration.<channel>.* keys if present, identity otherwise.
func (c *Config) Calibration(channel int) adc.Calibration {
	cal := adc.DefaultCalibration()
	prefix := fmt.Sprintf("calibration.%d.", channel)
	if c.v.IsSet(prefix + "v_offset_mv") {
		cal.VOffsetMV = int32(c.v.GetInt(prefix + "v_offset_mv"))
	}
	if c.v.IsSet(prefix + "v_gain_milli") {
		cal.VGainMilli = int32(c.v.GetInt(prefix + "v_gain_milli"))
	}
	if c.v.IsSet(prefix + "i_offset_ua") {
		cal.IOffsetUA = int32(c.v.GetInt(prefix + "i_offset_ua"))
	}
	if c.v.IsSet(prefix + "i_gain_milli") {
		cal.IGainMilli = int32(c.v.GetInt(prefix + "i_gain_milli"))
	}
	return cal
}

// SetCalibration writes channel's calibration. It is rejected unless bc
// is in one of the states calibration updates are permitted from.
func (c *Config) SetCalibration(channel int, bc bcfsm.State, cal adc.Calibration) error {
	if !calibrationWritable(bc) {
		return fmt.Errorf("config: calibration write rejected, BC in %s", bc)
	}
	prefix := fmt.Sprintf("calibration.%d.", channel)
	c.v.Set(prefix+"v_offset_mv", cal.VOffsetMV)
	c.v.Set(prefix+"v_gain_milli", cal.VGainMilli)
	c.v.Set(prefix+"i_offset_ua", cal.IOffsetUA)
	c.v.Set(prefix+"i_gain_milli", cal.IGainMilli)
	return nil
}

func calibrationWritable(bc bcfsm.State) bool {
	switch bc {
	case bcfsm.DISABLED, bcfsm.NOBAT, bcfsm.BAT_ID:
		return true
	default:
		return false
	}
}
