package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
	Extract   ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Server    ServerConfig   `yaml:"server" mapstructure:"server"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds settings for one LLM provider.
type ProviderConfig struct {
	Key                     string     `yaml:"key" mapstructure:"key"`
	Enabled                 bool       `yaml:"enabled" mapstructure:"enabled"`
	BaseURL                 string     `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Models                  TierModels `yaml:"models" mapstructure:"models"`
	RequestsPerMinute       int        `yaml:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gte=0"`
	CircuitFailureThreshold int        `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold" validate:"gte=0"`
	CircuitCooldownSecs     int        `yaml:"circuit_cooldown_secs" mapstructure:"circuit_cooldown_secs" validate:"gte=0"`
	Temperature             float64    `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// TierModels maps the small/medium/large size tiers to concrete models.
type TierModels struct {
	Small  ModelConfig `yaml:"small" mapstructure:"small"`
	Medium ModelConfig `yaml:"medium" mapstructure:"medium"`
	Large  ModelConfig `yaml:"large" mapstructure:"large"`
}

// ModelConfig names a model and the largest chunk it should be sent.
type ModelConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	MaxChars int    `yaml:"max_chars" mapstructure:"max_chars" validate:"gte=0"`
}

// ExtractConfig configures chunking, retries, and tier thresholds.
type ExtractConfig struct {
	DefaultMaxChars    int     `yaml:"default_max_chars" mapstructure:"default_max_chars" validate:"gt=0"`
	MinRowsPerChunk    int     `yaml:"min_rows_per_chunk" mapstructure:"min_rows_per_chunk" validate:"gte=1"`
	SmallDatasetRows   int     `yaml:"small_dataset_rows" mapstructure:"small_dataset_rows" validate:"gte=0"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BackoffBaseMs      int     `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms" validate:"gte=0"`
	BackoffMaxMs       int     `yaml:"backoff_max_ms" mapstructure:"backoff_max_ms" validate:"gte=0"`
	Jitter             float64 `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
	CallTimeoutSecs    int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs" validate:"gt=0"`
	SizeOverhead       int     `yaml:"size_overhead" mapstructure:"size_overhead" validate:"gte=0"`
	TierSmallMaxChars  int     `yaml:"tier_small_max_chars" mapstructure:"tier_small_max_chars" validate:"gte=0"`
	TierMediumMaxChars int     `yaml:"tier_medium_max_chars" mapstructure:"tier_medium_max_chars" validate:"gtefield=TierSmallMaxChars"`
	MaxOutputTokens    int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens" validate:"gt=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHECKLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The vendor-standard key variables work without the prefix.
	if err := v.BindEnv("anthropic.key", "CHECKLIST_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}
	if err := v.BindEnv("gemini.key", "CHECKLIST_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("anthropic.enabled", true)
	v.SetDefault("anthropic.models.small.name", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.models.medium.name", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.models.large.name", "claude-opus-4-6")
	v.SetDefault("anthropic.models.small.max_chars", 12000)
	v.SetDefault("anthropic.models.medium.max_chars", 12000)
	v.SetDefault("anthropic.models.large.max_chars", 12000)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.circuit_failure_threshold", 5)
	v.SetDefault("anthropic.circuit_cooldown_secs", 30)

	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.models.small.name", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.models.medium.name", "gemini-2.5-flash")
	v.SetDefault("gemini.models.large.name", "gemini-2.5-pro")
	v.SetDefault("gemini.models.small.max_chars", 12000)
	v.SetDefault("gemini.models.medium.max_chars", 12000)
	v.SetDefault("gemini.models.large.max_chars", 12000)
	v.SetDefault("gemini.requests_per_minute", 60)
	v.SetDefault("gemini.circuit_failure_threshold", 5)
	v.SetDefault("gemini.circuit_cooldown_secs", 30)

	v.SetDefault("extract.default_max_chars", 12000)
	v.SetDefault("extract.min_rows_per_chunk", 5)
	v.SetDefault("extract.small_dataset_rows", 50)
	v.SetDefault("extract.max_retries", 2)
	v.SetDefault("extract.backoff_base_ms", 1000)
	v.SetDefault("extract.backoff_max_ms", 30000)
	v.SetDefault("extract.jitter", 0.0)
	v.SetDefault("extract.call_timeout_secs", 90)
	v.SetDefault("extract.size_overhead", 500)
	v.SetDefault("extract.tier_small_max_chars", 4000)
	v.SetDefault("extract.tier_medium_max_chars", 10000)
	v.SetDefault("extract.max_output_tokens", 8192)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field bounds and the settings each command mode needs.
// Modes: "extract" (CLI one-shot) and "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}

	switch mode {
	case "extract":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !c.Anthropic.Enabled && !c.Gemini.Enabled {
		problems = append(problems, "at least one of anthropic.enabled or gemini.enabled must be true")
	}
	if c.Anthropic.Enabled {
		problems = append(problems, providerProblems("anthropic", c.Anthropic)...)
	}
	if c.Gemini.Enabled {
		problems = append(problems, providerProblems("gemini", c.Gemini)...)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func providerProblems(name string, p ProviderConfig) []string {
	var out []string
	if p.Key == "" {
		out = append(out, name+".key is required")
	}
	tiers := []struct {
		tier  string
		model ModelConfig
	}{
		{"small", p.Models.Small},
		{"medium", p.Models.Medium},
		{"large", p.Models.Large},
	}
	for _, t := range tiers {
		if t.model.Name == "" {
			out = append(out, name+".models."+t.tier+".name is required")
		}
	}
	return out
}

// fieldProblem renders a validator failure using the config key path.
func fieldProblem(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if fe.Param() != "" {
		return key + " failed " + fe.Tag() + "=" + fe.Param()
	}
	return key + " failed " + fe.Tag()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
