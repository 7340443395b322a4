// Package config loads process configuration for the roguevault CLI
// and its three subsystems, generalized from the teacher's main.go
// hardcoded Config struct (core/main.go's loadConfig()) into a real
// file-backed loader (SPEC_FULL.md §10).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NetConfig configures picoNet defaults.
type NetConfig struct {
	ListenAddress       string        `yaml:"listen_address"`
	ProtocolID          uint32        `yaml:"protocol_id"`
	CodebookPath        string        `yaml:"codebook_path"`
	HandshakeResendEvery time.Duration `yaml:"handshake_resend_every"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
}

// ScriptConfig configures the RogueScript CLI driver.
type ScriptConfig struct {
	BytecodeExtension string `yaml:"bytecode_extension"`
}

// BattleConfig configures battle-engine defaults.
type BattleConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Config is the top-level process configuration.
type Config struct {
	Net    NetConfig    `yaml:"net"`
	Script ScriptConfig `yaml:"script"`
	Battle BattleConfig `yaml:"battle"`
}

// Default mirrors the teacher's loadConfig() defaults-first shape,
// generalized from SA-MP server settings to picoNet/battle/script
// settings.
func Default() Config {
	return Config{
		Net: NetConfig{
			ListenAddress:        "0.0.0.0:7777",
			ProtocolID:           0x524F4755, // "ROGU"
			CodebookPath:         "",
			HandshakeResendEvery: 1 * time.Second,
			HandshakeTimeout:     5 * time.Second,
			IdleTimeout:          5 * time.Second,
		},
		Script: ScriptConfig{
			BytecodeExtension: ".rgb",
		},
		Battle: BattleConfig{
			DataDir: "data",
		},
	}
}

// Load reads a YAML file at path and overlays it on top of Default().
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
