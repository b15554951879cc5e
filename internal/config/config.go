package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is the config file Load looks for in the working directory.
const DefaultFile = "pulsecraft.yaml"

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Experiment  ExperimentConfig  `koanf:"experiment"`
	Composition CompositionConfig `koanf:"composition"`
	Safety      SafetyConfig      `koanf:"safety"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ExperimentConfig struct {
	// Seed fixes the assignment random source. Unset means a
	// time-derived seed, so leave it unset outside of demos.
	Seed *int64 `koanf:"seed"`
}

type CompositionConfig struct {
	BrandVoice BrandVoiceConfig `koanf:"brand_voice"`
}

type BrandVoiceConfig struct {
	Tone      string `koanf:"tone"`
	Formality string `koanf:"formality"`
	MaxLength int    `koanf:"max_length"`
}

type SafetyConfig struct {
	// BlockedPatterns override the built-in blocklist when non-empty.
	BlockedPatterns []string `koanf:"blocked_patterns"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads pulsecraft.yaml from the working directory, if present, then
// applies PULSECRAFT_-prefixed environment variables on top.
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config. Double underscore
	// separates nesting levels: PULSECRAFT_SERVER__PORT=9090.
	if err := k.Load(env.Provider("PULSECRAFT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSECRAFT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("composition.brand_voice.tone") {
		k.Set("composition.brand_voice.tone", "friendly")
	}
	if !k.Exists("composition.brand_voice.formality") {
		k.Set("composition.brand_voice.formality", "casual")
	}
	if !k.Exists("composition.brand_voice.max_length") {
		k.Set("composition.brand_voice.max_length", 500)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Storage.SQLite.Path = substituteEnvVars(cfg.Storage.SQLite.Path)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
