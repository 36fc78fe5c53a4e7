package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`

	PDF    PDF    `mapstructure:"pdf"`
	Chunk  Chunk  `mapstructure:"chunk"`
	Embed  Embed  `mapstructure:"embed"`
	Store  Store  `mapstructure:"store"`
	Search Search `mapstructure:"search"`
	Server Server `mapstructure:"server"`
}

type PDF struct {
	FallbackPdftotext bool `mapstructure:"fallback_pdftotext"`
	DetectTables      bool `mapstructure:"detect_tables"`
}

type Chunk struct {
	MaxTokens     int    `mapstructure:"max_tokens"`
	Overlap       int    `mapstructure:"overlap"`
	Encoding      string `mapstructure:"encoding"`
	PageScopedIDs bool   `mapstructure:"page_scoped_ids"`
}

type Embed struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Dimensions    int           `mapstructure:"dimensions"`
	BatchSize     int           `mapstructure:"batch_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Store struct {
	// Driver is postgres or memory.
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	Collection  string `mapstructure:"collection"`
	BatchSize   int    `mapstructure:"batch_size"`
}

type Search struct {
	TopK           int     `mapstructure:"top_k"`
	Threshold      float64 `mapstructure:"threshold"`
	GroupThreshold float64 `mapstructure:"group_threshold"`
}

type Server struct {
	Port           string        `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	Workers        int           `mapstructure:"workers"`
	MaxQueue       int           `mapstructure:"max_queue"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	JobTTL         time.Duration `mapstructure:"job_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:  "data/processed",
		LogLevel: "info",
		PDF: PDF{
			FallbackPdftotext: true,
			DetectTables:      true,
		},
		Chunk: Chunk{
			MaxTokens: 450,
			Overlap:   50,
			Encoding:  "cl100k_base",
		},
		Embed: Embed{
			Provider:      "openai",
			Model:         "text-embedding-3-small",
			BatchSize:     32,
			RetryAttempts: 1,
			RetryDelay:    2 * time.Second,
			Timeout:       120 * time.Second,
		},
		Store: Store{
			Driver:     "postgres",
			Collection: "regdocs_chunks",
			BatchSize:  500,
		},
		Search: Search{
			TopK:           5,
			Threshold:      0.80,
			GroupThreshold: 0.75,
		},
		Server: Server{
			Port:           "8090",
			Workers:        2,
			MaxQueue:       100,
			MaxUploadBytes: 52428800, // 50MB
			JobTTL:         time.Hour,
		},
	}
}

// Load reads defaults, then the config file, then REGDOCS_* environment
// variables. A .env file in the working directory is loaded into the
// environment first when present. With an empty cfgFile, ./regdocs.yaml is
// used if it exists.
func Load(cfgFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("REGDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("regdocs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Embed.APIKey = ResolveEnvVars(cfg.Embed.APIKey)
	cfg.Store.DatabaseURL = ResolveEnvVars(cfg.Store.DatabaseURL)
	cfg.Server.APIKey = ResolveEnvVars(cfg.Server.APIKey)
	cfg.applyFallbacks()
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("pdf.fallback_pdftotext", d.PDF.FallbackPdftotext)
	v.SetDefault("pdf.detect_tables", d.PDF.DetectTables)

	v.SetDefault("chunk.max_tokens", d.Chunk.MaxTokens)
	v.SetDefault("chunk.overlap", d.Chunk.Overlap)
	v.SetDefault("chunk.encoding", d.Chunk.Encoding)
	v.SetDefault("chunk.page_scoped_ids", d.Chunk.PageScopedIDs)

	v.SetDefault("embed.provider", d.Embed.Provider)
	v.SetDefault("embed.model", d.Embed.Model)
	v.SetDefault("embed.base_url", d.Embed.BaseURL)
	v.SetDefault("embed.api_key", d.Embed.APIKey)
	v.SetDefault("embed.dimensions", d.Embed.Dimensions)
	v.SetDefault("embed.batch_size", d.Embed.BatchSize)
	v.SetDefault("embed.retry_attempts", d.Embed.RetryAttempts)
	v.SetDefault("embed.retry_delay", d.Embed.RetryDelay)
	v.SetDefault("embed.timeout", d.Embed.Timeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.database_url", d.Store.DatabaseURL)
	v.SetDefault("store.collection", d.Store.Collection)
	v.SetDefault("store.batch_size", d.Store.BatchSize)

	v.SetDefault("search.top_k", d.Search.TopK)
	v.SetDefault("search.threshold", d.Search.Threshold)
	v.SetDefault("search.group_threshold", d.Search.GroupThreshold)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.max_queue", d.Server.MaxQueue)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.job_ttl", d.Server.JobTTL)
}

// applyFallbacks replaces non-positive numeric settings with defaults.
// Overlap and dimensions may be zero.
func (c *Config) applyFallbacks() {
	d := Default()
	if c.Chunk.MaxTokens <= 0 {
		c.Chunk.MaxTokens = d.Chunk.MaxTokens
	}
	if c.Chunk.Overlap < 0 {
		c.Chunk.Overlap = d.Chunk.Overlap
	}
	if c.Chunk.Encoding == "" {
		c.Chunk.Encoding = d.Chunk.Encoding
	}
	if c.Embed.BatchSize <= 0 {
		c.Embed.BatchSize = d.Embed.BatchSize
	}
	if c.Embed.RetryAttempts <= 0 {
		c.Embed.RetryAttempts = d.Embed.RetryAttempts
	}
	if c.Embed.Timeout <= 0 {
		c.Embed.Timeout = d.Embed.Timeout
	}
	if c.Store.BatchSize <= 0 {
		c.Store.BatchSize = d.Store.BatchSize
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = d.Search.TopK
	}
	if c.Search.Threshold <= 0 {
		c.Search.Threshold = d.Search.Threshold
	}
	if c.Search.GroupThreshold <= 0 {
		c.Search.GroupThreshold = d.Search.GroupThreshold
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = d.Server.Workers
	}
	if c.Server.MaxQueue <= 0 {
		c.Server.MaxQueue = d.Server.MaxQueue
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if c.Server.JobTTL <= 0 {
		c.Server.JobTTL = d.Server.JobTTL
	}
}

// ValidateEmbed checks the settings needed to call the embedding provider.
func (c Config) ValidateEmbed() error {
	switch c.Embed.Provider {
	case "openai":
		if c.Embed.APIKey == "" && c.Embed.BaseURL == "" {
			return fmt.Errorf("embed.api_key (REGDOCS_EMBED_API_KEY) is required for openai without embed.base_url")
		}
	case "gemini":
		if c.Embed.APIKey == "" && os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("embed.api_key (REGDOCS_EMBED_API_KEY) or GEMINI_API_KEY is required for gemini")
		}
	case "hash":
	default:
		return fmt.Errorf("embed.provider must be openai, gemini or hash, got %q", c.Embed.Provider)
	}
	return nil
}

// ValidateStore checks the settings needed to open the vector store.
func (c Config) ValidateStore() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url (REGDOCS_STORE_DATABASE_URL) is required")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	return nil
}

// ValidateServer checks the settings needed to serve the HTTP API.
func (c Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key (REGDOCS_SERVER_API_KEY) is required")
	}
	if err := c.ValidateEmbed(); err != nil {
		return err
	}
	return c.ValidateStore()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${VAR} references from the environment.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
