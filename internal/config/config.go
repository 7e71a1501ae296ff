package config

import (
	"fmt"
	"os"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEnv     = "inverted_pendulum"
	DefaultHorizon = 100
	DefaultSeed    = 12345
	DefaultSamples = 2000
	DefaultWorkers = 1
	DefaultStore   = "file"
	DefaultDataDir = ".trajset"
)

type Config struct {
	Env        string      `yaml:"env"`
	Integrator string      `yaml:"integrator"`
	Horizon    int         `yaml:"horizon"`
	Seed       int64       `yaml:"seed"`
	Samples    int         `yaml:"samples"`
	UpperBound *float64    `yaml:"upper_bound,omitempty"`
	Workers    int         `yaml:"workers"`
	Verbose    bool        `yaml:"verbose"`
	EnvParams  EnvConfig   `yaml:"env_params"`
	Store      StoreConfig `yaml:"store"`
}

type EnvConfig struct {
	MaxSteps   int     `yaml:"max_steps"`
	ActionLow  float64 `yaml:"action_low"`
	ActionHigh float64 `yaml:"action_high"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Env:        DefaultEnv,
		Integrator: "rk4",
		Horizon:    DefaultHorizon,
		Seed:       DefaultSeed,
		Samples:    DefaultSamples,
		Workers:    DefaultWorkers,
		Verbose:    true,
		Store: StoreConfig{
			Kind: DefaultStore,
			Path: DefaultDataDir,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Env == "" {
		return fmt.Errorf("%w: empty name", dynamo.ErrUnknownEnv)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("%w, got %d", dynamo.ErrInvalidHorizon, c.Horizon)
	}
	if c.Samples < 1 {
		return fmt.Errorf("%w, got %d", dynamo.ErrInvalidSampleCount, c.Samples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func (c *Config) EnvOptions() env.Options {
	return env.Options{
		Integrator: c.Integrator,
		MaxSteps:   c.EnvParams.MaxSteps,
		ActionLow:  c.EnvParams.ActionLow,
		ActionHigh: c.EnvParams.ActionHigh,
	}
}
