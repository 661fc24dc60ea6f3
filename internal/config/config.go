package config

import (
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	PolicyKeepAlive = "keepalive"
	PolicyHealth    = "health"
)

type Config struct {
	Addr              string   `mapstructure:"api_addr"`    // API bind address, e.g. "127.0.0.1:8080" or ":8080" in Docker
	LogDir            string   `mapstructure:"log_dir"`     // logs directory
	LogLevel          string   `mapstructure:"log_level"`   // debug|info|warn|error
	TargetsFile       string   `mapstructure:"targets_file"` // initial targets; missing file means none
	HistorySize       int      `mapstructure:"history_size"` // outcomes kept per target
	SuccessPolicy     string   `mapstructure:"success_policy"`
	DefaultTimeoutMS  int64    `mapstructure:"default_timeout_ms"`
	ShutdownTimeoutMS int64    `mapstructure:"shutdown_timeout_ms"`
	SlackWebhook      string   `mapstructure:"slack_webhook"` // empty disables fault notifications
	AllowedOrigins    []string `mapstructure:"-"`             // CORS; empty allows all
	AdminRPM          int      `mapstructure:"admin_rpm"`
	AdminBurst        int      `mapstructure:"admin_burst"`
}

func (c Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("targets_file", "targets.json")
	v.SetDefault("history_size", 100)
	v.SetDefault("success_policy", PolicyKeepAlive)
	v.SetDefault("default_timeout_ms", 10000)
	v.SetDefault("shutdown_timeout_ms", 15000)
	v.SetDefault("slack_webhook", "")
	v.SetDefault("allowed_origins", "")
	v.SetDefault("admin_rpm", 120)
	v.SetDefault("admin_burst", 60)
}

// Load reads defaults, the optional CONFIG_FILE (yaml) and the environment,
// in increasing priority, then validates the result. The returned Config is
// populated even when validation fails.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.SuccessPolicy = strings.ToLower(strings.TrimSpace(cfg.SuccessPolicy))
	cfg.AllowedOrigins = splitList(v.GetString("allowed_origins"))

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required, validation.By(validateHostPort)),
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&c.SuccessPolicy, validation.Required, validation.In(PolicyKeepAlive, PolicyHealth)),
		validation.Field(&c.HistorySize, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTimeoutMS, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.ShutdownTimeoutMS, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SlackWebhook, is.URL),
		validation.Field(&c.AllowedOrigins, validation.Each(validation.By(validateOrigin))),
		validation.Field(&c.AdminRPM, validation.Required, validation.Min(1)),
		validation.Field(&c.AdminBurst, validation.Required, validation.Min(1)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}

func validateOrigin(value interface{}) error {
	origin, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if origin == "*" {
		return nil
	}
	return is.URL.Validate(origin)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
