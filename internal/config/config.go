package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Folder       string       `mapstructure:"folder"`
	Tasks        int          `mapstructure:"tasks"`
	LogThreshold int          `mapstructure:"log_threshold"`
	Solver       string       `mapstructure:"solver"`
	RequireEnv   []string     `mapstructure:"require_env"`
	Shard        string       `mapstructure:"shard"`
	LogMode      string       `mapstructure:"log_mode"`
	Server       ServerConfig `mapstructure:"server"`
	Logs         LogsConfig   `mapstructure:"logs"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LogsConfig controls solver log discovery.
type LogsConfig struct {
	Root   string `mapstructure:"root"`
	Marker string `mapstructure:"marker"`
	Suffix string `mapstructure:"suffix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("folder", ".")
	v.SetDefault("tasks", -1)
	v.SetDefault("log_threshold", 1000)
	v.SetDefault("solver", "")
	v.SetDefault("require_env", []string{"FOAM_ETC"})
	v.SetDefault("shard", "")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logs.root", "")
	v.SetDefault("logs.marker", "Foam")
	v.SetDefault("logs.suffix", ".log")
}

// Load reads benchtree.yaml (or configPath when given), then applies
// BENCHTREE_* environment overrides. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("benchtree")
		v.AddConfigPath(".")
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".benchtree"))
	}

	setDefaults(v)

	v.SetEnvPrefix("BENCHTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
