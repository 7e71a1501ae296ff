package config

import "sort"

func bound(v float64) *float64 { return &v }

var Presets = map[string]map[string]*Config{
	"inverted_pendulum": {
		"smoke": {
			Env: "inverted_pendulum", Integrator: "rk4", Horizon: 20, Seed: DefaultSeed, Samples: 100,
		},
		"standard": {
			Env: "inverted_pendulum", Integrator: "rk4", Horizon: 100, Seed: DefaultSeed, Samples: 2000,
		},
		"curriculum": {
			Env: "inverted_pendulum", Integrator: "rk4", Horizon: 100, Seed: DefaultSeed, Samples: 2000,
			UpperBound: bound(0.8),
		},
	},
	"swing": {
		"smoke": {
			Env: "swing", Integrator: "rk4", Horizon: 50, Seed: DefaultSeed, Samples: 100,
		},
		"standard": {
			Env: "swing", Integrator: "rk4", Horizon: 200, Seed: DefaultSeed, Samples: 1000,
			EnvParams: EnvConfig{MaxSteps: 200},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(envName, preset string) *Config {
	envPresets, ok := Presets[envName]
	if !ok {
		return nil
	}
	cfg, ok := envPresets[preset]
	if !ok {
		return nil
	}
	c := *cfg
	if cfg.UpperBound != nil {
		c.UpperBound = bound(*cfg.UpperBound)
	}
	return &c
}

func ListPresets(envName string) []string {
	envPresets, ok := Presets[envName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(envPresets))
	for name := range envPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
