package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GeminiConfig holds settings for the natural-language event assistant.
type GeminiConfig struct {
	// APIKey may be set here, but the GEMINI_API_KEY environment variable
	// (or a .env file next to the binary) takes precedence. The key is
	// injected into the served page; it is never logged.
	APIKey string `yaml:"api_key" json:"-"`

	// Model is the generative-language model name used for extraction.
	Model string `yaml:"model" json:"model"`

	// BaseURL is the generateContent endpoint prefix, overridable for tests.
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// DataPath is the bbolt database file holding the event blob.
	DataPath string `yaml:"data_path" json:"data_path"`

	// StaticDir is the directory the UI bundle is served from.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// BackupCron is a cron-style schedule for JSON backups of the event
	// index. Empty disables scheduled backups.
	BackupCron string `yaml:"backup_cron" json:"backup_cron"`

	// BackupPath is where scheduled backups are written.
	BackupPath string `yaml:"backup_path" json:"backup_path"`

	// LogLevel is one of DEBUG, INFO, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "127.0.0.1:3000",
		DataPath:   "./data/calendar.db",
		StaticDir:  "./public",
		BackupCron: "0 3 * * *",
		BackupPath: "./data/calendar-backup.json",
		LogLevel:   "INFO",
		Gemini: GeminiConfig{
			Model:   "gemini-1.5-flash-latest",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs from older versions still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3000"
	}
	if c.DataPath == "" {
		c.DataPath = "./data/calendar.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "./public"
	}
	if c.BackupPath == "" {
		c.BackupPath = "./data/calendar-backup.json"
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "ERROR":
		// ok
	default:
		c.LogLevel = "INFO"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-1.5-flash-latest"
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A `.env` file in the working directory is read first, if present.
//   - If the config file does not exist, a default config is written with
//     0600 perms and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
//   - GEMINI_API_KEY from the environment overrides the file value. A
//     missing key is not an error; the assistant is simply unavailable
//     until the user supplies one.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	// Ignore the error: a missing .env file is the normal case.
	_ = godotenv.Load()

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
		cfg.Gemini.APIKey = envKey
	}

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create a default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path, atomically via
// a temp file + rename, with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shinbiscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
