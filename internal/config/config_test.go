package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestValidateMasterConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *MasterConfig
		wantErr bool
	}{
		{
			name: "valid config with read targets",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "ProcessValue", Station: 43, Parameter: 1234},
				},
			},
			wantErr: false,
		},
		{
			name:    "empty config",
			config:  &MasterConfig{},
			wantErr: true,
		},
		{
			name: "no targets",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
			},
			wantErr: true,
		},
		{
			name: "station out of range",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "Bad", Station: 100, Parameter: 1},
				},
			},
			wantErr: true,
		},
		{
			name: "parameter out of range",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "Bad", Station: 1, Parameter: 10000},
				},
			},
			wantErr: true,
		},
		{
			name: "write value out of range",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "Bad", Station: 1, Parameter: 1, Write: intPtr(1000000)},
				},
			},
			wantErr: true,
		},
		{
			name: "valid write target",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "Setpoint", Station: 1, Parameter: 2, Write: intPtr(-99999)},
				},
			},
			wantErr: false,
		},
		{
			name: "target without name",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Station: 1, Parameter: 1},
				},
			},
			wantErr: true,
		},
		{
			name: "mqtt enabled without broker",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "T", Station: 1, Parameter: 1},
				},
				MQTT: MQTTConfig{Enable: true},
			},
			wantErr: true,
		},
		{
			name: "bad logging level",
			config: &MasterConfig{
				Bridge: BridgeConfig{Address: "10.0.0.5:7032"},
				Targets: []TargetConfig{
					{Name: "T", Station: 1, Parameter: 1},
				},
				Logging: LoggingConfig{Level: "noisy"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMasterConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMasterConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *NodeConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 43, MaxConnections: 4},
				Registers: []RegisterSeed{
					{Parameter: 1, Value: 0},
					{Parameter: 2, Value: 100, ReadOnly: true},
				},
			},
			wantErr: false,
		},
		{
			name: "wildcard station is valid",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 0, MaxConnections: 1},
			},
			wantErr: false,
		},
		{
			name: "station out of range",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 100, MaxConnections: 1},
			},
			wantErr: true,
		},
		{
			name: "duplicate register seed",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 1, MaxConnections: 1},
				Registers: []RegisterSeed{
					{Parameter: 7, Value: 1},
					{Parameter: 7, Value: 2},
				},
			},
			wantErr: true,
		},
		{
			name: "value out of range",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 1, MaxConnections: 1},
				Registers: []RegisterSeed{
					{Parameter: 7, Value: -100000},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown profile",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 1, MaxConnections: 1, Profile: "toaster"},
			},
			wantErr: true,
		},
		{
			name: "known profile",
			config: &NodeConfig{
				Node: NodeConfigSection{Station: 1, MaxConnections: 1, Profile: "pump"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNodeConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMasterConfig(t *testing.T) {
	t.Run("missing file without autoCreate", func(t *testing.T) {
		_, err := LoadMasterConfig(filepath.Join(t.TempDir(), "nope.yaml"), false)
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("missing file with autoCreate", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "auto.yaml")
		cfg, err := LoadMasterConfig(path, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Targets) == 0 {
			t.Error("default config should have targets")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("default config file should exist: %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "min.yaml")
		content := "bridge:\n  address: \"10.0.0.5:7032\"\ntargets:\n  - name: PV\n    station: 1\n    parameter: 1\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadMasterConfig(path, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Bridge.ResponseTimeoutMs != 500 {
			t.Errorf("response timeout default = %d, want 500", cfg.Bridge.ResponseTimeoutMs)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("logging level default = %q, want info", cfg.Logging.Level)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("bridge: [notamap"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadMasterConfig(path, false); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestLoadNodeConfig(t *testing.T) {
	t.Run("missing file has actionable message", func(t *testing.T) {
		_, err := LoadNodeConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "To fix this") {
			t.Errorf("error should explain next steps, got: %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "node.yaml")
		content := "node:\n  station: 43\nregisters:\n  - parameter: 1\n    value: 10\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadNodeConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Node.ListenAddress != "0.0.0.0:7032" {
			t.Errorf("listen address default = %q", cfg.Node.ListenAddress)
		}
		if cfg.Node.MaxConnections != 16 {
			t.Errorf("max connections default = %d, want 16", cfg.Node.MaxConnections)
		}
	})
}

func TestRegisterProfiles(t *testing.T) {
	profiles := RegisterProfiles()
	for _, name := range ProfileNames() {
		seeds, ok := profiles[name]
		if !ok {
			t.Errorf("profile %q missing from RegisterProfiles", name)
			continue
		}
		if len(seeds) == 0 {
			t.Errorf("profile %q has no seeds", name)
		}
		seen := make(map[int]bool)
		for _, seed := range seeds {
			if seed.Parameter < 0 || seed.Parameter > 9999 {
				t.Errorf("profile %q: parameter %d out of range", name, seed.Parameter)
			}
			if seen[seed.Parameter] {
				t.Errorf("profile %q: parameter %d duplicated", name, seed.Parameter)
			}
			seen[seed.Parameter] = true
		}
	}
}
