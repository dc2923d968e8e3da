package config

// Configuration loading and validation for the x328 bus tools

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cth-oso/x328/internal/errors"
)

// BridgeConfig points the controller tools at a TCP serial bridge.
type BridgeConfig struct {
	Address           string `yaml:"address"`
	ConnectTimeoutMs  int    `yaml:"connect_timeout_ms,omitempty"`
	ResponseTimeoutMs int    `yaml:"response_timeout_ms,omitempty"`
	Retries           int    `yaml:"retries,omitempty"`
}

// TargetConfig is one parameter the controller polls or writes.
type TargetConfig struct {
	Name      string   `yaml:"name"`
	Station   int      `yaml:"station"`
	Parameter int      `yaml:"parameter"`
	Write     *int     `yaml:"write,omitempty"` // value to write; nil means read
	Wide      bool     `yaml:"wide,omitempty"`  // six-character value format
	Tags      []string `yaml:"tags,omitempty"`
}

// LoggingConfig controls log formatting and verbosity.
type LoggingConfig struct {
	Format    string `yaml:"format,omitempty"` // "text" or "json"
	Level     string `yaml:"level,omitempty"`  // "error","info","verbose","debug"
	LogEveryN int    `yaml:"log_every_n,omitempty"`
	LogFile   string `yaml:"log_file,omitempty"`
}

// MQTTConfig controls the optional bus-event forwarder.
type MQTTConfig struct {
	Enable   bool   `yaml:"enable,omitempty"`
	Broker   string `yaml:"broker,omitempty"` // e.g. "tcp://127.0.0.1:1883"
	Topic    string `yaml:"topic,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
	QoS      int    `yaml:"qos,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// MasterConfig is the controller-side configuration.
type MasterConfig struct {
	Bridge       BridgeConfig   `yaml:"bridge"`
	Targets      []TargetConfig `yaml:"targets"`
	PollJitterMs int            `yaml:"poll_jitter_ms,omitempty"`
	Logging      LoggingConfig  `yaml:"logging,omitempty"`
	MQTT         MQTTConfig     `yaml:"mqtt,omitempty"`
}

// RegisterSeed is an initial parameter value for the node simulator.
type RegisterSeed struct {
	Parameter int  `yaml:"parameter"`
	Value     int  `yaml:"value"`
	ReadOnly  bool `yaml:"read_only,omitempty"`
	Wide      bool `yaml:"wide,omitempty"`
}

// NodeConfigSection is the node section in the simulator config.
type NodeConfigSection struct {
	Name                string `yaml:"name"`
	ListenAddress       string `yaml:"listen_address"`
	Station             int    `yaml:"station"` // 0 listens to every station
	MaxConnections      int    `yaml:"max_connections,omitempty"`
	ConnectionTimeoutMs int    `yaml:"connection_timeout_ms,omitempty"`
	Profile             string `yaml:"profile,omitempty"` // built-in register profile name
}

// NodeConfig is the node-simulator configuration.
type NodeConfig struct {
	Node      NodeConfigSection `yaml:"node"`
	Registers []RegisterSeed    `yaml:"registers"`
	Logging   LoggingConfig     `yaml:"logging,omitempty"`
	MQTT      MQTTConfig        `yaml:"mqtt,omitempty"`
}

// CreateDefaultMasterConfig creates a default controller configuration
func CreateDefaultMasterConfig() *MasterConfig {
	return &MasterConfig{
		Bridge: BridgeConfig{
			Address:           "127.0.0.1:7032",
			ConnectTimeoutMs:  5000,
			ResponseTimeoutMs: 500,
			Retries:           2,
		},
		Targets: []TargetConfig{
			{Name: "ProcessValue", Station: 1, Parameter: 1},
			{Name: "Setpoint", Station: 1, Parameter: 2},
		},
	}
}

// CreateDefaultNodeConfig creates a default node-simulator configuration.
func CreateDefaultNodeConfig() *NodeConfig {
	cfg := &NodeConfig{
		Node: NodeConfigSection{
			Name:                "x328 simulator",
			ListenAddress:       "0.0.0.0:7032",
			Station:             1,
			MaxConnections:      16,
			ConnectionTimeoutMs: 60000,
		},
		Registers: []RegisterSeed{
			{Parameter: 1, Value: 0},
			{Parameter: 2, Value: 100},
			{Parameter: 3, Value: 20, ReadOnly: true},
		},
	}
	applyLoggingDefaults(&cfg.Logging)
	return cfg
}

// WriteDefaultMasterConfig writes a default controller configuration to a file
func WriteDefaultMasterConfig(path string) error {
	cfg := CreateDefaultMasterConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadMasterConfig loads a controller configuration from a YAML file.
// If the file doesn't exist and autoCreate is true, it will create a default config file
func LoadMasterConfig(path string, autoCreate bool) (*MasterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if autoCreate {
				if err := WriteDefaultMasterConfig(path); err != nil {
					return nil, fmt.Errorf("create default config: %w", err)
				}
				data, err = os.ReadFile(path)
				if err != nil {
					return nil, errors.WrapConfigError(
						fmt.Errorf("read created config file: %w", err),
						path,
					)
				}
			} else {
				return nil, errors.WrapConfigError(
					fmt.Errorf("config file not found: %s", path),
					path,
				)
			}
		} else {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
	}

	var cfg MasterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	// Apply defaults
	if cfg.Bridge.ConnectTimeoutMs == 0 {
		cfg.Bridge.ConnectTimeoutMs = 5000
	}
	if cfg.Bridge.ResponseTimeoutMs == 0 {
		cfg.Bridge.ResponseTimeoutMs = 500
	}
	applyLoggingDefaults(&cfg.Logging)
	applyMQTTDefaults(&cfg.MQTT)

	if err := ValidateMasterConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ValidateMasterConfig validates a controller configuration
func ValidateMasterConfig(cfg *MasterConfig) error {
	if cfg.Bridge.Address == "" {
		return fmt.Errorf("bridge.address is required")
	}
	if cfg.Bridge.ResponseTimeoutMs < 0 {
		return fmt.Errorf("bridge.response_timeout_ms must be >= 0")
	}
	if cfg.Bridge.Retries < 0 {
		return fmt.Errorf("bridge.retries must be >= 0")
	}
	if cfg.PollJitterMs < 0 {
		return fmt.Errorf("poll_jitter_ms must be >= 0")
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("targets must have at least one entry")
	}
	for i, target := range cfg.Targets {
		if err := validateTarget(target, i); err != nil {
			return err
		}
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}
	return validateMQTTConfig(cfg.MQTT)
}

// validateTarget validates a single poll/write target
func validateTarget(target TargetConfig, index int) error {
	if target.Name == "" {
		return fmt.Errorf("targets[%d]: name is required", index)
	}
	if target.Station < 0 || target.Station > 99 {
		return fmt.Errorf("targets[%d]: station must be in [0, 99], got %d", index, target.Station)
	}
	if target.Parameter < 0 || target.Parameter > 9999 {
		return fmt.Errorf("targets[%d]: parameter must be in [0, 9999], got %d", index, target.Parameter)
	}
	if target.Write != nil && (*target.Write < -99999 || *target.Write > 999999) {
		return fmt.Errorf("targets[%d]: write value must be in [-99999, 999999], got %d", index, *target.Write)
	}
	return nil
}

// LoadNodeConfig loads a node-simulator configuration from a YAML file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n\n"+
				"To fix this:\n"+
				"  1. Generate a default config: x328 node --init-config %s\n"+
				"  2. Edit it with your station address and register seeds\n"+
				"  3. Or specify a custom config file with --config <path>", path, path)
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	// Apply defaults
	if cfg.Node.ListenAddress == "" {
		cfg.Node.ListenAddress = "0.0.0.0:7032"
	}
	if cfg.Node.MaxConnections == 0 {
		cfg.Node.MaxConnections = 16
	}
	if cfg.Node.ConnectionTimeoutMs == 0 {
		cfg.Node.ConnectionTimeoutMs = 60000
	}
	if cfg.Node.Name == "" {
		cfg.Node.Name = "x328 simulator"
	}
	applyLoggingDefaults(&cfg.Logging)
	applyMQTTDefaults(&cfg.MQTT)

	if err := ValidateNodeConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ValidateNodeConfig validates a node-simulator configuration
func ValidateNodeConfig(cfg *NodeConfig) error {
	if cfg.Node.Station < 0 || cfg.Node.Station > 99 {
		return fmt.Errorf("node.station must be in [0, 99], got %d", cfg.Node.Station)
	}
	if cfg.Node.MaxConnections < 1 {
		return fmt.Errorf("node.max_connections must be >= 1")
	}
	if cfg.Node.ConnectionTimeoutMs < 0 {
		return fmt.Errorf("node.connection_timeout_ms must be >= 0")
	}
	if cfg.Node.Profile != "" {
		if _, ok := RegisterProfiles()[cfg.Node.Profile]; !ok {
			return fmt.Errorf("node.profile '%s' is not a built-in profile", cfg.Node.Profile)
		}
	}

	seen := make(map[int]bool)
	for i, seed := range cfg.Registers {
		if seed.Parameter < 0 || seed.Parameter > 9999 {
			return fmt.Errorf("registers[%d]: parameter must be in [0, 9999], got %d", i, seed.Parameter)
		}
		if seed.Value < -99999 || seed.Value > 999999 {
			return fmt.Errorf("registers[%d]: value must be in [-99999, 999999], got %d", i, seed.Value)
		}
		if seen[seed.Parameter] {
			return fmt.Errorf("registers[%d]: parameter %d seeded twice", i, seed.Parameter)
		}
		seen[seed.Parameter] = true
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}
	return validateMQTTConfig(cfg.MQTT)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.LogEveryN == 0 {
		cfg.LogEveryN = 1
	}
}

func applyMQTTDefaults(cfg *MQTTConfig) {
	if !cfg.Enable {
		return
	}
	if cfg.Topic == "" {
		cfg.Topic = "x328/events"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "x328"
	}
}

func validateLoggingConfig(cfg LoggingConfig) error {
	if cfg.Level != "" {
		switch strings.ToLower(cfg.Level) {
		case "silent", "error", "info", "verbose", "debug":
		default:
			return fmt.Errorf("logging.level must be silent, error, info, verbose, or debug")
		}
	}
	if cfg.Format != "" {
		switch strings.ToLower(cfg.Format) {
		case "text", "json":
		default:
			return fmt.Errorf("logging.format must be text or json")
		}
	}
	if cfg.LogEveryN < 0 {
		return fmt.Errorf("logging.log_every_n must be >= 0")
	}
	return nil
}

func validateMQTTConfig(cfg MQTTConfig) error {
	if !cfg.Enable {
		return nil
	}
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
	}
	return nil
}
