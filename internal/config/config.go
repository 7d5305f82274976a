// Package config loads conduit's runtime configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/guardrail"
	"conduit/internal/llm"
	"conduit/internal/memory"
	"conduit/internal/observability"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CONDUIT_LLM_MODEL.
const EnvPrefix = "CONDUIT"

// Config is the effective configuration shared by the CLI and the server.
type Config struct {
	LLM           llm.Config           `mapstructure:"llm" yaml:"llm"`
	Memory        memory.Config        `mapstructure:"memory" yaml:"memory"`
	Guardrail     guardrail.Config     `mapstructure:"guardrail" yaml:"guardrail"`
	Marketing     MarketingConfig      `mapstructure:"marketing" yaml:"marketing"`
	Server        ServerConfig         `mapstructure:"server" yaml:"server"`
	Observability observability.Config `mapstructure:"observability" yaml:"observability"`
}

// MarketingConfig toggles the LLM-backed marketing agents.
type MarketingConfig struct {
	UseLLM bool `mapstructure:"use_llm" yaml:"use_llm"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM:       llm.DefaultConfig(),
		Memory:    memory.DefaultConfig(),
		Guardrail: guardrail.Config{},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RunTimeout:     2 * time.Minute,
		},
		Observability: observability.DefaultConfig(),
	}
}

// Metadata describes where the configuration came from.
type Metadata struct {
	ConfigFile string
	LoadedAt   time.Time
}

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// Option customises loading.
type Option func(*loadOptions)

type loadOptions struct {
	configPath  string
	searchPaths []string
	envLookup   EnvLookup
}

// WithConfigPath reads configuration from a specific file, which must exist.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithSearchPaths replaces the directories searched for conduit.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.searchPaths = paths
	}
}

// WithEnv supplies the lookup used for provider credential variables.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// legacyEnv maps config keys to the unprefixed variables older deployments
// set. CONDUIT_* variables win over these.
var legacyEnv = map[string][]string{
	"llm.provider": {"LLM_PROVIDER"},
	"llm.model":    {"GEMINI_MODEL"},
}

var providerKeyEnv = map[string]string{
	llm.ProviderGemini: "GEMINI_API_KEY",
	llm.ProviderOpenAI: "OPENAI_API_KEY",
}

// Load builds the configuration: defaults, then the YAML file, then the
// environment.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		searchPaths: []string{".", "$HOME/.conduit"},
		envLookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return Config{}, Metadata{}, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("load defaults: %w", err)
	}

	meta := Metadata{LoadedAt: time.Now()}
	if options.configPath != "" {
		v.SetConfigFile(options.configPath)
	} else {
		v.SetConfigName("conduit")
		for _, path := range options.searchPaths {
			v.AddConfigPath(path)
		}
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if options.configPath != "" || !errors.As(err, &notFound) {
			return Config{}, Metadata{}, conduiterrors.NewConfigurationError("read config file: %v", err)
		}
	} else {
		meta.ConfigFile = v.ConfigFileUsed()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range legacyEnv {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, Metadata{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, Metadata{}, conduiterrors.NewConfigurationError("decode config: %v", err)
	}
	applyProviderKey(&cfg, options.envLookup)
	normalize(&cfg)
	return cfg, meta, nil
}

// applyProviderKey fills a missing API key from the provider's own variable.
func applyProviderKey(cfg *Config, lookup EnvLookup) {
	if strings.TrimSpace(cfg.LLM.APIKey) != "" || lookup == nil {
		return
	}
	name, ok := providerKeyEnv[strings.ToLower(cfg.LLM.Provider)]
	if !ok {
		return
	}
	if value, ok := lookup(name); ok {
		cfg.LLM.APIKey = strings.TrimSpace(value)
	}
}

func normalize(cfg *Config) {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)
	cfg.Memory.Backend = strings.ToLower(strings.TrimSpace(cfg.Memory.Backend))
}

// Validate reports settings that cannot work. Provider credentials are only
// required when the LLM-backed agents are enabled.
func (c Config) Validate() error {
	var problems []string
	switch c.LLM.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.Marketing.UseLLM && c.LLM.Provider != llm.ProviderMock && strings.TrimSpace(c.LLM.APIKey) == "" {
		problems = append(problems, fmt.Sprintf("%s is not set", providerKeyEnv[c.LLM.Provider]))
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		problems = append(problems, "llm.retry.max_attempts must be at least 1")
	}
	switch c.Memory.Backend {
	case memory.BackendFile, memory.BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("memory.backend %q is not supported", c.Memory.Backend))
	}
	if c.Memory.Enabled && strings.TrimSpace(c.Memory.Path) == "" {
		problems = append(problems, "memory.path is required")
	}
	if c.Guardrail.MaxSteps < 0 {
		problems = append(problems, "guardrail.max_steps must not be negative")
	}
	if len(problems) > 0 {
		return conduiterrors.NewConfigurationError("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Marshal renders the configuration as YAML with the API key masked.
func (c Config) Marshal() ([]byte, error) {
	masked := c
	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = observability.SanitizeAPIKey(masked.LLM.APIKey)
	}
	return yaml.Marshal(masked)
}
