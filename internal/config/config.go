package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"reportnotifier/pkg/config"
)

// NotifierConfig is the pipeline's own section.
type NotifierConfig struct {
	ProcessName     string        `yaml:"process_name"`
	UpstreamProcess string        `yaml:"upstream_process"`
	ExportDir       string        `yaml:"export_dir"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	SendTimeout     time.Duration `yaml:"send_timeout"`
	DedupTTL        time.Duration `yaml:"dedup_ttl"`
	SlowQuery       time.Duration `yaml:"slow_query"`
	LogLevel        string        `yaml:"log_level"`
}

type Config struct {
	DB       config.DBConfig     `yaml:"db"`
	Redis    config.RedisConfig  `yaml:"redis"`
	MQ       config.MQConfig     `yaml:"mq"`
	SMTP     config.SMTPConfig   `yaml:"smtp"`
	Server   config.ServerConfig `yaml:"server"`
	Otel     config.OtelConfig   `yaml:"otel"`
	Notifier NotifierConfig      `yaml:"notifier"`
}

// Load reads CONFIG_DIR (default "config") for CONFIG_ENV, applies
// environment overrides and defaults, and validates the result.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, configDir)
}

// LoadFrom is Load with an explicit environment and directory.
func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	// Environment variables win over files.
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOtelFromEnv(&cfg.Otel)
	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		cfg.Notifier.ExportDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Notifier.LogLevel = level
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Notifier.PollInterval <= 0 {
		c.Notifier.PollInterval = 60 * time.Second
	}
	if c.Notifier.SendTimeout <= 0 {
		c.Notifier.SendTimeout = 30 * time.Second
	}
	if c.Notifier.DedupTTL <= 0 {
		c.Notifier.DedupTTL = 24 * time.Hour
	}
	if c.Notifier.LogLevel == "" {
		c.Notifier.LogLevel = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8085"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 25
	}
	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "report-notifier"
	}
}

// Validate rejects configurations the notifier cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Notifier.ProcessName == "" {
		errs = append(errs, errors.New("notifier.process_name is required"))
	}
	if c.Notifier.UpstreamProcess == "" {
		errs = append(errs, errors.New("notifier.upstream_process is required"))
	}
	if c.Notifier.ProcessName != "" && c.Notifier.ProcessName == c.Notifier.UpstreamProcess {
		errs = append(errs, errors.New("notifier.process_name must differ from notifier.upstream_process"))
	}
	if c.Notifier.ExportDir == "" {
		errs = append(errs, errors.New("notifier.export_dir is required"))
	}
	if c.SMTP.Host == "" {
		errs = append(errs, errors.New("smtp.host is required"))
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		errs = append(errs, errors.New("db.host and db.name are required"))
	}
	return errors.Join(errs...)
}
