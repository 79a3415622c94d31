package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	MySQL     DatabaseConfig  `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Email     EmailConfig     `mapstructure:"email"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Push      PushConfig      `mapstructure:"push"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Cron      CronConfig      `mapstructure:"cron"`
	Business  BusinessConfig  `mapstructure:"business"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AWSRegion string `mapstructure:"aws_region"`
	From      string `mapstructure:"from"`
	ReplyTo   string `mapstructure:"reply_to"`
}

type RelayConfig struct {
	// WebhookURL is the fallback SMS relay endpoint when no admin setting
	// overrides it.
	WebhookURL string `mapstructure:"webhook_url"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
}

type PushConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type WorkflowConfig struct {
	// EnforceTransitions enables the server-side transition guard. Off by
	// default: the shop floor historically relied on manual overrides.
	EnforceTransitions bool `mapstructure:"enforce_transitions"`
}

type CronConfig struct {
	Secret string `mapstructure:"secret"`
}

type BusinessConfig struct {
	ReferencePrefix string `mapstructure:"reference_prefix"`
	WarrantyPrefix  string `mapstructure:"warranty_prefix"`
	BaseURL         string `mapstructure:"base_url"` // public site, for tracking/payment links
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (REPAIROPS_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (REPAIROPS_*)
	v.SetEnvPrefix("REPAIROPS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
