package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/category"
	"github.com/pl-listing/lister/internal/classify"
	"github.com/pl-listing/lister/internal/gemini"
	"github.com/pl-listing/lister/internal/grouping"
	"github.com/pl-listing/lister/internal/handlers"
	"github.com/pl-listing/lister/internal/images"
	"github.com/pl-listing/lister/internal/ollama"
	"github.com/pl-listing/lister/internal/openai"
	"github.com/pl-listing/lister/internal/providers"
	"github.com/pl-listing/lister/internal/titles"
)

// DefaultFile is read when no --config flag is given and the file exists.
const DefaultFile = "lister.yaml"

// Default model per provider.
const (
	DefaultOpenAIModel     = "gpt-4o"
	DefaultPerplexityModel = "sonar"
	DefaultGeminiModel     = "gemini-1.5-flash"
	DefaultOllamaModel     = "mistral-small3.2:24b"
)

type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type Gemini struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type Ollama struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// Images holds the grouping and normalization limits.
type Images struct {
	MaxFiles            int `yaml:"max_files"`
	MaxFileBytes        int `yaml:"max_file_bytes"`
	MaxPixels           int `yaml:"max_pixels"`
	CompactionThreshold int `yaml:"compaction_threshold"`
	MaxWidth            int `yaml:"max_width"`
	Quality             int `yaml:"quality"`
	Workers             int `yaml:"workers"`
}

// Config is the application configuration.
type Config struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	Delay             time.Duration `yaml:"delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Marketplace       string        `yaml:"marketplace"`
	CategoryTable     string        `yaml:"category_table"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`

	OpenAI OpenAI `yaml:"openai"`
	Gemini Gemini `yaml:"gemini"`
	Ollama Ollama `yaml:"ollama"`
	Images Images `yaml:"images"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:       providers.OpenAI,
		Temperature:    classify.DefaultTemperature,
		Timeout:        classify.DefaultTimeout,
		Delay:          batch.DefaultDelay,
		Marketplace:    titles.DefaultMarketplace,
		MaxUploadBytes: handlers.DefaultMaxUploadBytes,
		Ollama:         Ollama{URL: ollama.DefaultURL},
		Images: Images{
			MaxFiles:            grouping.DefaultMaxFiles,
			MaxFileBytes:        images.DefaultMaxFileBytes,
			MaxPixels:           images.DefaultMaxPixels,
			CompactionThreshold: images.DefaultCompactionThreshold,
			MaxWidth:            images.DefaultMaxWidth,
			Quality:             images.DefaultQuality,
			Workers:             images.DefaultWorkers,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, in that order. ${VAR} references
// in the file are expanded before parsing. Overrides run last, before
// validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Provider, "LISTER_PROVIDER")
	set(&c.Model, "LISTER_MODEL")
	set(&c.Marketplace, "LISTER_MARKETPLACE")
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&c.OpenAI.Model, "OPENAI_MODEL")
	set(&c.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.Gemini.Model, "GEMINI_MODEL")
	set(&c.Ollama.URL, "OLLAMA_URL", "OLLAMA_HOST")
	set(&c.Ollama.Model, "OLLAMA_MODEL")

	if c.OpenAI.APIKey == "" {
		if key := strings.TrimSpace(getenv("PERPLEXITY_API_KEY")); key != "" {
			c.OpenAI.APIKey = key
			if c.OpenAI.BaseURL == "" {
				c.OpenAI.BaseURL = openai.PerplexityBaseURL
			}
		}
	}

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Marketplace = strings.ToLower(strings.TrimSpace(c.Marketplace))
}

// ModelName resolves the model for the selected provider.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case providers.OpenAI:
		if c.OpenAI.Model != "" {
			return c.OpenAI.Model
		}
		if strings.Contains(c.OpenAI.BaseURL, "perplexity.ai") {
			return DefaultPerplexityModel
		}
		return DefaultOpenAIModel
	case providers.Gemini:
		if c.Gemini.Model != "" {
			return c.Gemini.Model
		}
		return DefaultGeminiModel
	case providers.Ollama:
		if c.Ollama.Model != "" {
			return c.Ollama.Model
		}
		return DefaultOllamaModel
	}
	return ""
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case providers.OpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required (OPENAI_API_KEY or PERPLEXITY_API_KEY)"))
		}
	case providers.Gemini:
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required (GEMINI_API_KEY)"))
		}
	case providers.Ollama:
		if c.Ollama.URL == "" {
			errs = append(errs, errors.New("ollama.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported provider: %q", c.Provider))
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute))
	}
	if _, ok := titles.Marketplaces[c.Marketplace]; !ok {
		errs = append(errs, fmt.Errorf("unknown marketplace: %q", c.Marketplace))
	}

	if c.Images.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("images.max_files must be positive, got %d", c.Images.MaxFiles))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.Images.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("images.max_pixels must be positive, got %d", c.Images.MaxPixels))
	}
	if c.Images.MaxFileBytes <= 0 {
		errs = append(errs, fmt.Errorf("images.max_file_bytes must be positive, got %d", c.Images.MaxFileBytes))
	}
	if c.Images.CompactionThreshold <= 0 {
		errs = append(errs, fmt.Errorf("images.compaction_threshold must be positive, got %d", c.Images.CompactionThreshold))
	}
	if c.Images.MaxWidth <= 0 {
		errs = append(errs, fmt.Errorf("images.max_width must be positive, got %d", c.Images.MaxWidth))
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		errs = append(errs, fmt.Errorf("images.quality must be between 1 and 100, got %d", c.Images.Quality))
	}
	if c.Images.Workers <= 0 {
		errs = append(errs, fmt.Errorf("images.workers must be positive, got %d", c.Images.Workers))
	}

	return errors.Join(errs...)
}

// Normalizer returns an image normalizer using the configured limits.
func (c *Config) Normalizer() *images.Normalizer {
	return &images.Normalizer{
		MaxFileBytes:        c.Images.MaxFileBytes,
		MaxPixels:           c.Images.MaxPixels,
		CompactionThreshold: c.Images.CompactionThreshold,
		MaxWidth:            c.Images.MaxWidth,
		Quality:             c.Images.Quality,
		Workers:             c.Images.Workers,
	}
}

// NewProvider returns the adapter for the selected provider.
func (c *Config) NewProvider() (providers.Provider, error) {
	switch c.Provider {
	case providers.OpenAI:
		return openai.New(c.OpenAI.APIKey, c.OpenAI.BaseURL), nil
	case providers.Gemini:
		return gemini.New(c.Gemini.APIKey), nil
	case providers.Ollama:
		return ollama.New(c.Ollama.URL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.Provider)
	}
}

// NewClassifier returns a classification client for the selected provider.
func (c *Config) NewClassifier() (*classify.Client, error) {
	p, err := c.NewProvider()
	if err != nil {
		return nil, err
	}
	return classify.New(p, c.ModelName(),
		classify.WithTimeout(c.Timeout),
		classify.WithTemperature(c.Temperature),
		classify.WithRateLimit(c.RequestsPerMinute),
	), nil
}

// Categories returns the category table file if one is configured, and the
// built-in table otherwise.
func (c *Config) Categories() (*category.Table, error) {
	if c.CategoryTable == "" {
		return category.Default(), nil
	}
	return category.LoadTable(c.CategoryTable)
}
