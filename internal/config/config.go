package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	EventChannel       string
	JWTSecret          string
	EvaluationCacheTTL time.Duration
	SessionIdleTTL     time.Duration
	MinimumHigh        int
	RosterMaxUploadMB  int
	StreamKeepAlive    time.Duration
	SMTP               SMTPConfig
}

// SMTPConfig carries the outbound email settings. Delivery is disabled unless
// host, port, user, password and from are all set.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	Timeout  time.Duration
	Domain   string
}

// Configured reports whether every required SMTP setting is present.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Password != "" && s.From != ""
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Risk API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "gema:risk")
	v.SetDefault("evaluation.cache_ttl", "5m")
	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("alerts.min_high", 3)
	v.SetDefault("roster.max_upload_mb", 5)
	v.SetDefault("stream.keepalive", "30s")
	v.SetDefault("email.timeout", "10s")
	v.SetDefault("email.domain", "example.edu")

	// mail settings are also honoured under their conventional unprefixed names
	for key, env := range map[string]string{
		"smtp.host":     "SMTP_HOST",
		"smtp.port":     "SMTP_PORT",
		"smtp.user":     "SMTP_USER",
		"smtp.password": "SMTP_PASSWORD",
		"email.from":    "EMAIL_FROM",
	} {
		if err := v.BindEnv(key, "GEMA_"+env, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cacheTTL, err := parseDuration(v, "evaluation.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	idleTTL, err := parseDuration(v, "session.idle_ttl")
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "stream.keepalive")
	if err != nil {
		return Config{}, err
	}
	emailTimeout, err := parseDuration(v, "email.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventChannel:       v.GetString("events.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		EvaluationCacheTTL: cacheTTL,
		SessionIdleTTL:     idleTTL,
		MinimumHigh:        v.GetInt("alerts.min_high"),
		RosterMaxUploadMB:  v.GetInt("roster.max_upload_mb"),
		StreamKeepAlive:    keepAlive,
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(v.GetString("smtp.host")),
			Port:     strings.TrimSpace(v.GetString("smtp.port")),
			User:     strings.TrimSpace(v.GetString("smtp.user")),
			Password: v.GetString("smtp.password"),
			From:     strings.TrimSpace(v.GetString("email.from")),
			Timeout:  emailTimeout,
			Domain:   strings.TrimSpace(v.GetString("email.domain")),
		},
	}

	if cfg.MinimumHigh < 0 {
		cfg.MinimumHigh = 0
	}
	if cfg.RosterMaxUploadMB <= 0 {
		cfg.RosterMaxUploadMB = 5
	}
	if cfg.SessionIdleTTL <= 0 {
		return Config{}, fmt.Errorf("session idle ttl must be positive")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
