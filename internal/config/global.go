package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Embedding provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	// ProviderMock is an offline bag-of-words embedder for demos and tests.
	ProviderMock = "mock"
)

// EmbeddingConfig selects and configures the embedding provider.
// Zero values fall back to the provider's own defaults.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider,omitempty"`
	Model             string  `yaml:"model,omitempty"`
	Dimensions        int     `yaml:"dimensions,omitempty"`
	OllamaURL         string  `yaml:"ollama_url,omitempty"`
	OpenAIAPIKey      string  `yaml:"openai_api_key,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// GlobalConfig represents configuration stored in ~/.config/rvs/config.yml.
type GlobalConfig struct {
	DataDir        string          `yaml:"data_dir,omitempty"`
	VectorStoreDir string          `yaml:"vector_store_dir,omitempty"`
	LogLevel       string          `yaml:"log_level,omitempty"`
	Embedding      EmbeddingConfig `yaml:"embedding,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "rvs"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables that override the config file.
const (
	EnvEmbeddingProvider = "RVS_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "RVS_EMBEDDING_MODEL"
	EnvEmbeddingDims     = "RVS_EMBEDDING_DIMENSIONS"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvDataDir           = "RVS_DATA_DIR"
	EnvVectorStoreDir    = "RVS_VECTOR_STORE_DIR"
	EnvLogLevel          = "RVS_LOG_LEVEL"
)

// ErrUnknownProvider is returned when embedding.provider names no known provider.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/rvs/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. A missing file yields an empty config, not an error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	cfg := &GlobalConfig{}
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Embedding.Validate(); err != nil {
		return nil, err
	}

	globalConfigCache = cfg
	return cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

func (c *GlobalConfig) applyEnv() {
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv(EnvEmbeddingDims); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dimensions = n
		} else {
			slog.Warn("ignoring invalid embedding dimensions", "env", EnvEmbeddingDims, "value", v)
		}
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		c.Embedding.OllamaURL = normalizeOllamaHost(v)
	}
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		c.Embedding.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvVectorStoreDir); v != "" {
		c.VectorStoreDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// normalizeOllamaHost accepts both "host:port" and full URLs, as the ollama CLI does.
func normalizeOllamaHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "http://" + strings.TrimRight(host, "/")
}

// Validate checks that the provider name is known. Empty means ollama.
func (e EmbeddingConfig) Validate() error {
	switch e.Provider {
	case "", ProviderOllama:
		return nil
	case ProviderOpenAI, ProviderMock:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: %s, %s, %s)", ErrUnknownProvider, e.Provider, ProviderOllama, ProviderOpenAI, ProviderMock)
	}
}

// ProviderName returns the configured provider, defaulting to ollama.
func (e EmbeddingConfig) ProviderName() string {
	if e.Provider == "" {
		return ProviderOllama
	}
	return e.Provider
}

// Paths returns the default layout with any configured overrides applied.
func (c *GlobalConfig) Paths() Paths {
	p := DefaultPaths()
	if c.DataDir != "" {
		p.DataDir = ExpandPath(c.DataDir)
	}
	if c.VectorStoreDir != "" {
		p.VectorStoreDir = ExpandPath(c.VectorStoreDir)
	}
	return p
}

// SlogLevel maps log_level to a slog level. Unknown values mean info.
func (c *GlobalConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
