package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Discord struct {
		Token           string `koanf:"token"`
		GuildID         string `koanf:"guild_id"`
		ReportChannel   string `koanf:"report_channel"`
		FeedbackChannel string `koanf:"feedback_channel"`
	} `koanf:"discord"`

	Tracker struct {
		Owner   string   `koanf:"owner"`
		Token   string   `koanf:"token"`
		BaseURL string   `koanf:"base_url"`
		Repos   []string `koanf:"repos"`
	} `koanf:"tracker"`

	Reconcile struct {
		IntervalSeconds int `koanf:"interval_seconds"`
	} `koanf:"reconcile"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	API struct {
		Port int `koanf:"port"`
	} `koanf:"api"`

	Logging struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"logging"`
}

// PollInterval returns the reconciliation interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSeconds) * time.Second
}

// ReportChannels returns the channel IDs watched for new reports
func (c *Config) ReportChannels() []string {
	channels := make([]string, 0, 2)
	if c.Discord.ReportChannel != "" {
		channels = append(channels, c.Discord.ReportChannel)
	}
	if c.Discord.FeedbackChannel != "" {
		channels = append(channels, c.Discord.FeedbackChannel)
	}
	return channels
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"tracker.base_url":           "https://api.github.com",
		"reconcile.interval_seconds": 30,
		"api.port":                   3144,
		"logging.level":              "info",
		"logging.format":             "console",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./reportsync.toml", "$HOME/.reportsync.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix REPORTSYNC_
	k.Load(env.Provider("REPORTSYNC_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "REPORTSYNC_")
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# ReportSync Configuration

[discord]
token = "your-bot-token"
guild_id = "123456789"
report_channel = "123456789"
feedback_channel = "123456789"

[tracker]
owner = "your-org"
token = "your-tracker-token"
repos = ["app", "website"]

[reconcile]
interval_seconds = 30

[database]
url = "postgres://localhost:5432/reportsync"

[api]
port = 3144

[logging]
level = "info"
format = "console"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Discord.Token == "" {
		return fmt.Errorf("discord token is required")
	}

	if len(config.ReportChannels()) == 0 {
		return fmt.Errorf("at least one report channel is required")
	}

	if config.Tracker.Owner == "" {
		return fmt.Errorf("tracker owner is required")
	}

	if config.Tracker.Token == "" {
		return fmt.Errorf("tracker token is required")
	}

	if len(config.Tracker.Repos) == 0 {
		return fmt.Errorf("at least one target repository is required")
	}

	if config.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	if config.Reconcile.IntervalSeconds <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}

	return nil
}
