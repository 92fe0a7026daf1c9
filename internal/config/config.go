package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type WorkerConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BaseBackoff   time.Duration `mapstructure:"base_backoff"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"`
	InterJobDelay time.Duration `mapstructure:"inter_job_delay"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	TokenSkew     time.Duration `mapstructure:"token_skew"`
	// NotConnectedDelay is how far jobs of a disconnected org are pushed
	// back before the next attempt.
	NotConnectedDelay time.Duration `mapstructure:"not_connected_delay"`
}

type PartnerConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type Config struct {
	DatabaseURL string        `mapstructure:"database_url"`
	ServerPort  string        `mapstructure:"server_port"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	Worker      WorkerConfig  `mapstructure:"worker"`
	Partner     PartnerConfig `mapstructure:"partner"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.DatabaseURL == "" {
		log.Fatal("Database URL must be set in the config file")
	}
	if config.Partner.BaseURL == "" || config.Partner.TokenURL == "" {
		log.Fatal("Partner base_url and token_url must be set in the config file")
	}
	if config.Partner.ClientID == "" || config.Partner.ClientSecret == "" {
		log.Fatal("Partner client credentials must be set in the config file")
	}

	if config.Worker.BatchSize == 0 {
		config.Worker.BatchSize = 10
	}
	if config.Worker.BaseBackoff == 0 {
		config.Worker.BaseBackoff = 30 * time.Second
	}
	if config.Worker.BackoffCap == 0 {
		config.Worker.BackoffCap = time.Hour
	}
	if config.Worker.InterJobDelay == 0 {
		config.Worker.InterJobDelay = 50 * time.Millisecond
	}
	if config.Worker.LockTTL == 0 {
		config.Worker.LockTTL = 5 * time.Minute
	}
	if config.Worker.TokenSkew == 0 {
		config.Worker.TokenSkew = 2 * time.Minute
	}
	if config.Worker.NotConnectedDelay == 0 {
		config.Worker.NotConnectedDelay = time.Minute
	}
	if config.Partner.MaxRetries == 0 {
		config.Partner.MaxRetries = 3
	}

	return &config
}
