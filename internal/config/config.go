package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by ledger.backend.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Attachment release policies accepted by attachments.on_delete.
const (
	OnDeleteRemove = "remove"
	OnDeleteKeep   = "keep"
)

// EnvPrefix prefixes every environment override, e.g. LEDGER_LEDGER_BACKEND.
const EnvPrefix = "LEDGER"

var (
	validBackends = []string{BackendCSV, BackendSQLite, BackendMemory}
	validPolicies = []string{OnDeleteRemove, OnDeleteKeep}
	validLevels   = []string{"debug", "info", "warn", "warning", "error"}
	validFormats  = []string{"text", "json"}

	DefaultCategories = []string{"Food", "Transport", "Shopping", "Entertainment", "Household", "Misc"}
)

type Config struct {
	DataDir     string            `mapstructure:"data_dir"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Categories  CategoriesConfig  `mapstructure:"categories"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Log         LogConfig         `mapstructure:"log"`
}

type LedgerConfig struct {
	Backend     string        `mapstructure:"backend"`
	File        string        `mapstructure:"file"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CacheSize   int           `mapstructure:"cache_size"`
}

type CategoriesConfig struct {
	File     string   `mapstructure:"file"`
	Defaults []string `mapstructure:"defaults"`
}

type AttachmentsConfig struct {
	Dir      string `mapstructure:"dir"`
	OnDelete string `mapstructure:"on_delete"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("ledger.backend", BackendCSV)
	v.SetDefault("ledger.file", "ledger.csv")
	v.SetDefault("ledger.sqlite_path", "ledger.db")
	v.SetDefault("ledger.lock_timeout", 5*time.Second)
	v.SetDefault("ledger.cache_ttl", time.Minute)
	v.SetDefault("ledger.cache_size", 4)
	v.SetDefault("categories.file", "categories.txt")
	v.SetDefault("categories.defaults", DefaultCategories)
	v.SetDefault("attachments.dir", "invoices")
	v.SetDefault("attachments.on_delete", OnDeleteRemove)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then an optional config file, then LEDGER_ env
// overrides. The file is configFile when given, else $LEDGER_CONFIG, else
// ledger.yaml in the working directory if present.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Ledger.Backend = strings.ToLower(strings.TrimSpace(cfg.Ledger.Backend))
	cfg.Attachments.OnDelete = strings.ToLower(strings.TrimSpace(cfg.Attachments.OnDelete))
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty")
	} else if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create data directory '%s': %v", c.DataDir, err))
		}
	}

	if !slices.Contains(validBackends, c.Ledger.Backend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.Ledger.Backend, validBackends))
	}
	if c.Ledger.Backend == BackendCSV && strings.TrimSpace(c.Ledger.File) == "" {
		errors = append(errors, "ledger file cannot be empty when using csv backend")
	}
	if c.Ledger.Backend == BackendSQLite && strings.TrimSpace(c.Ledger.SQLitePath) == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.Ledger.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be positive", c.Ledger.LockTimeout))
	} else if c.Ledger.LockTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be at most 5 minutes", c.Ledger.LockTimeout))
	}
	if c.Ledger.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache ttl %v: must not be negative", c.Ledger.CacheTTL))
	}
	if c.Ledger.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.Ledger.CacheSize))
	}

	if strings.TrimSpace(c.Categories.File) == "" {
		errors = append(errors, "categories file cannot be empty")
	}

	dir := strings.TrimSpace(c.Attachments.Dir)
	switch {
	case dir == "":
		errors = append(errors, "attachments directory cannot be empty")
	case filepath.IsAbs(dir) || !filepath.IsLocal(dir):
		errors = append(errors, fmt.Sprintf("invalid attachments directory '%s': must be relative to the data directory", dir))
	}
	if !slices.Contains(validPolicies, c.Attachments.OnDelete) {
		errors = append(errors, fmt.Sprintf("invalid attachments on_delete '%s': must be one of %v", c.Attachments.OnDelete, validPolicies))
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.Log.Level, validLevels))
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Log.Format)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.Log.Format, validFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// LedgerPath is the record file of the csv backend.
func (c *Config) LedgerPath() string {
	return c.resolve(c.Ledger.File)
}

// SQLitePath is the database file of the sqlite backend.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Ledger.SQLitePath)
}

func (c *Config) CategoriesPath() string {
	return c.resolve(c.Categories.File)
}

// AttachmentsDir is the managed receipt directory. Always under DataDir.
func (c *Config) AttachmentsDir() string {
	return filepath.Join(c.DataDir, c.Attachments.Dir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
