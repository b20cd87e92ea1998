package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/drone-navigator/internal/command"
	"github.com/roman-kulish/drone-navigator/internal/heartbeat"
	"github.com/roman-kulish/drone-navigator/internal/link"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/worker"
)

const (
	LinkSerial LinkType = "serial"
	LinkSim    LinkType = "sim"

	defaultMaxBatchSize   = 100
	defaultMetricsAddress = ":9090"
)

var validLinkTypes = map[LinkType]struct{}{
	LinkSerial: {},
	LinkSim:    {},
}

type LinkType string

func (t LinkType) String() string {
	return string(t)
}

// Duration is a time.Duration read from and written to configuration files
// in its string form, e.g. "1.5s"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings Settings           `yaml:"settings" json:"settings"`
	Link     LinkConfig         `yaml:"link" json:"link"`
	Target   telemetry.Position `yaml:"target" json:"target"`
	Workers  WorkersConfig      `yaml:"workers" json:"workers"`
	Storage  StorageConfig      `yaml:"storage" json:"storage"`
	Metrics  MetricsConfig      `yaml:"metrics" json:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"log_level"`

	// RunFor stops the pipeline after the given time, zero runs until
	// interrupted
	RunFor Duration `yaml:"runFor" json:"run_for"`
}

// LinkConfig selects and configures the vehicle link
type LinkConfig struct {
	Type   LinkType     `yaml:"type" json:"type"`
	Serial SerialConfig `yaml:"serial" json:"serial"`
	Sim    SimConfig    `yaml:"sim" json:"sim"`
}

// SerialConfig configures a link over a serial telemetry radio
type SerialConfig struct {
	Port             string   `yaml:"port" json:"port"`
	ReadTimeout      Duration `yaml:"readTimeout" json:"read_timeout"`
	link.PortOptions `yaml:",inline" json:",inline"`
}

// SimConfig configures the simulated vehicle
type SimConfig struct {
	Period Duration           `yaml:"period" json:"period"`
	Start  telemetry.Position `yaml:"start" json:"start"`
	Yaw    float64            `yaml:"yaw" json:"yaw"` // degrees
	DriftX float64            `yaml:"driftX" json:"drift_x"`
	DriftY float64            `yaml:"driftY" json:"drift_y"`
}

// WorkersConfig tunes the pipeline workers
type WorkersConfig struct {
	PollInterval    Duration `yaml:"pollInterval" json:"poll_interval"`
	HeartbeatPeriod Duration `yaml:"heartbeatPeriod" json:"heartbeat_period"`
	HeightTolerance *float64 `yaml:"heightTolerance" json:"height_tolerance"` // meters
	AngleTolerance  *float64 `yaml:"angleTolerance" json:"angle_tolerance"`   // degrees
	ClimbRate       float64  `yaml:"climbRate" json:"climb_rate"`             // m/s
	YawRate         float64  `yaml:"yawRate" json:"yaw_rate"`                 // deg/s
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	DataDirectory string `yaml:"dataDirectory" json:"data_directory"`
	MaxBatchSize  int    `yaml:"maxBatchSize" json:"max_batch_size"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoadConfig reads and validates the YAML configuration file at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration. Unknown keys are
// rejected.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate applies defaults to unset values and checks the configuration
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Settings.RunFor < 0 {
		errs = append(errs, fmt.Errorf("settings.runFor must not be negative: %s", c.Settings.RunFor))
	}

	errs = append(errs, c.Link.validate()...)

	for name, v := range map[string]float64{"x": c.Target.X, "y": c.Target.Y, "z": c.Target.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("target.%s must be a finite number", name))
		}
	}

	errs = append(errs, c.Workers.validate()...)

	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = storageDir
	}
	if c.Storage.MaxBatchSize == 0 {
		c.Storage.MaxBatchSize = defaultMaxBatchSize
	}
	if c.Storage.MaxBatchSize < 0 {
		errs = append(errs, fmt.Errorf("storage.maxBatchSize must be positive: %d", c.Storage.MaxBatchSize))
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = defaultMetricsAddress
	}

	return errors.Join(errs...)
}

// Level returns the configured log level, info when unset
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings.logLevel: %w", err)
	}
	return level, nil
}

func (c *LinkConfig) validate() (errs []error) {
	if c.Type == "" {
		c.Type = LinkSim
	}
	c.Type = LinkType(strings.ToLower(string(c.Type)))
	if _, ok := validLinkTypes[c.Type]; !ok {
		return []error{fmt.Errorf("link.type: unknown type '%s'", c.Type)}
	}

	switch c.Type {
	case LinkSerial:
		if c.Serial.Port == "" {
			errs = append(errs, errors.New("link.serial.port is required"))
		}
		if c.Serial.ReadTimeout == 0 {
			c.Serial.ReadTimeout = Duration(link.DefaultReadTimeout)
		}
		if c.Serial.ReadTimeout < 0 {
			errs = append(errs, fmt.Errorf("link.serial.readTimeout must be positive: %s", c.Serial.ReadTimeout))
		}

		opts, err := c.Serial.PortOptions.Normalize()
		if err != nil {
			errs = append(errs, fmt.Errorf("link.serial: %w", err))
		} else {
			c.Serial.PortOptions = opts
		}

	case LinkSim:
		if c.Sim.Period == 0 {
			c.Sim.Period = Duration(link.DefaultSimPeriod)
		}
		if c.Sim.Period < 0 {
			errs = append(errs, fmt.Errorf("link.sim.period must be positive: %s", c.Sim.Period))
		}
	}

	return errs
}

func (c *WorkersConfig) validate() (errs []error) {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(worker.DefaultPollInterval)
	}
	if c.HeartbeatPeriod == 0 {
		c.HeartbeatPeriod = Duration(heartbeat.DefaultPeriod)
	}
	if c.HeightTolerance == nil {
		c.HeightTolerance = telemetry.Float(command.DefaultHeightTolerance)
	}
	if c.AngleTolerance == nil {
		c.AngleTolerance = telemetry.Float(command.Degrees(command.DefaultAngleTolerance))
	}
	if c.ClimbRate == 0 {
		c.ClimbRate = command.DefaultClimbRate
	}
	if c.YawRate == 0 {
		c.YawRate = command.DefaultYawRate
	}

	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("workers.pollInterval must be positive: %s", c.PollInterval))
	}
	if c.HeartbeatPeriod < 0 {
		errs = append(errs, fmt.Errorf("workers.heartbeatPeriod must be positive: %s", c.HeartbeatPeriod))
	}

	// tolerances and rates are checked again when the commander is built,
	// the worker refuses to start with invalid values
	if *c.HeightTolerance < 0 {
		errs = append(errs, fmt.Errorf("workers.heightTolerance must not be negative: %v", *c.HeightTolerance))
	}
	if *c.AngleTolerance < 0 || *c.AngleTolerance >= 180 {
		errs = append(errs, fmt.Errorf("workers.angleTolerance must be within [0, 180) degrees: %v", *c.AngleTolerance))
	}
	if c.ClimbRate < 0 {
		errs = append(errs, fmt.Errorf("workers.climbRate must be positive: %v", c.ClimbRate))
	}
	if c.YawRate < 0 {
		errs = append(errs, fmt.Errorf("workers.yawRate must be positive: %v", c.YawRate))
	}

	return errs
}

// CommanderOptions converts the worker settings into commander options
func (c *WorkersConfig) CommanderOptions() []func(c *command.Commander) {
	var opts []func(c *command.Commander)

	if c.HeightTolerance != nil {
		opts = append(opts, command.WithHeightTolerance(*c.HeightTolerance))
	}
	if c.AngleTolerance != nil {
		opts = append(opts, command.WithAngleTolerance(*c.AngleTolerance*math.Pi/180))
	}
	if c.ClimbRate != 0 {
		opts = append(opts, command.WithClimbRate(c.ClimbRate))
	}
	if c.YawRate != 0 {
		opts = append(opts, command.WithYawRate(c.YawRate))
	}

	return opts
}
