package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries all runtime settings. Values come from the environment;
// defaults are suitable for local development against docker-compose.
type Config struct {
	DatabaseURL   string        `mapstructure:"database_url"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	LogMode       string        `mapstructure:"log_mode"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepWorkers  int           `mapstructure:"sweep_workers"`

	SMTPAddr     string `mapstructure:"smtp_addr"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	MailFrom     string `mapstructure:"mail_from"`
}

// Load reads configuration from CONTRACTDESK_* environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("contractdesk")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("sweep_interval", "1h")
	v.SetDefault("sweep_workers", 8)
	v.SetDefault("mail_from", "noreply@contractdesk.local")

	for _, key := range []string{
		"database_url", "http_addr", "jwt_secret", "log_mode",
		"sweep_interval", "sweep_workers",
		"smtp_addr", "smtp_username", "smtp_password", "mail_from",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: CONTRACTDESK_DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: CONTRACTDESK_JWT_SECRET is required")
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 8
	}

	return cfg, nil
}
