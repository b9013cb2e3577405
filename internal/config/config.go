package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	ManagerURL       string        `mapstructure:"manager_url"`
	ClientID         string        `mapstructure:"client_id"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	SchedulesEnabled bool          `mapstructure:"schedules_enabled"`
	LogFile          string        `mapstructure:"log_file"`
	Storage          string        `mapstructure:"storage"`
	FolderID         string        `mapstructure:"folder_id"`
	FolderPath       string        `mapstructure:"folder_path"`
	DBPath           string        `mapstructure:"db_path"`
	DaemonPort       int           `mapstructure:"daemon_port"`
	Interval         time.Duration `mapstructure:"interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	NotionSecret     string        `mapstructure:"notion_secret"`
	NotionDatabase   string        `mapstructure:"notion_database"`
	NotionDaemon     string        `mapstructure:"notion_daemon"`
}

// ReportEnabled reports whether run reports should be posted to Notion.
func (c *Config) ReportEnabled() bool {
	return c.NotionSecret != "" && c.NotionDatabase != ""
}

var Default = Config{
	Storage:      "gdrive",
	FolderPath:   "/bimvault",
	DBPath:       "bimvault.db",
	DaemonPort:   9750,
	Interval:     24 * time.Hour,
	PollInterval: time.Second,
}

func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)

	viper.SetDefault("storage", Default.Storage)
	viper.SetDefault("folder_path", Default.FolderPath)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("daemon_port", Default.DaemonPort)
	viper.SetDefault("interval", Default.Interval)
	viper.SetDefault("poll_interval", Default.PollInterval)
	viper.SetDefault("schedules_enabled", false)

	viper.SetEnvPrefix("BIMVAULT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := errors.As(err, &notFound); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields every model-server command depends on.
// Client-only commands (status, stop, history) skip it.
func (c *Config) Validate() error {
	var missing []string
	if c.ManagerURL == "" {
		missing = append(missing, "manager_url")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Watch reloads the config whenever the file changes and hands the
// fresh copy to onChange.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return
		}

		onChange(&cfg)
	})
	viper.WatchConfig()
}

// Dir returns (and creates) the tool's home directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".bimvault")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}
