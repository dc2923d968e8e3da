package config

// Built-in register profiles for the node simulator. A profile seeds the
// parameter store with the register map of a typical device family so the
// simulator answers like real hardware without a hand-written config.

// RegisterProfiles returns the built-in register profiles by name.
func RegisterProfiles() map[string][]RegisterSeed {
	return map[string][]RegisterSeed{
		// Vacuum pump controller style layout: status and measurement
		// registers read-only, setpoints writable.
		"pump": {
			{Parameter: 302, Value: 0, ReadOnly: true},   // error code
			{Parameter: 303, Value: 0, ReadOnly: true},   // overtemperature flag
			{Parameter: 309, Value: 0, ReadOnly: true},   // rotation speed, Hz
			{Parameter: 310, Value: 0, ReadOnly: true},   // drive current, 0.01 A
			{Parameter: 311, Value: 0, ReadOnly: true},   // operating hours
			{Parameter: 316, Value: 0, ReadOnly: true},   // drive power, W
			{Parameter: 326, Value: 0, ReadOnly: true},   // gauge pressure
			{Parameter: 700, Value: 1000},                // standby speed setpoint
			{Parameter: 707, Value: 1500},                // speed setpoint
			{Parameter: 717, Value: 100},                 // standby power setpoint
		},
		// Temperature controller style layout.
		"thermo": {
			{Parameter: 1, Value: 230, ReadOnly: true}, // process value, 0.1 C
			{Parameter: 2, Value: 250},                 // setpoint, 0.1 C
			{Parameter: 3, Value: 0, ReadOnly: true},   // alarm state
			{Parameter: 10, Value: 100},                // proportional band
			{Parameter: 11, Value: 30},                 // integral time, s
			{Parameter: 12, Value: 5},                  // derivative time, s
		},
		// Minimal loopback layout for integration testing.
		"loopback": {
			{Parameter: 0, Value: 0},
			{Parameter: 1, Value: 1},
			{Parameter: 2, Value: 2},
		},
	}
}

// ProfileNames returns the built-in profile names in stable order.
func ProfileNames() []string {
	return []string{"pump", "thermo", "loopback"}
}
