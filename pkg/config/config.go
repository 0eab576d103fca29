package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// MQConfig holds the RabbitMQ URL. An empty URL disables publishing.
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig holds the outbound mail relay settings.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	TLS      string        `yaml:"tls"` // none / opportunistic / mandatory
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig holds the health/metrics HTTP listener settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OtelConfig holds OpenTelemetry exporter settings.
type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// OverrideDBFromEnv applies DB_* environment variables.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
	if mode := os.Getenv("DB_SSLMODE"); mode != "" {
		cfg.SSLMode = mode
	}
}

// OverrideMQFromEnv applies MQ_URL.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv applies REDIS_* environment variables.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
}

// OverrideSMTPFromEnv applies SMTP_* environment variables.
func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if tls := os.Getenv("SMTP_TLS"); tls != "" {
		cfg.TLS = tls
	}
}

// OverrideServerFromEnv applies SERVER_PORT.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideOtelFromEnv applies OTEL_ENABLED and OTEL_ENDPOINT.
func OverrideOtelFromEnv(cfg *OtelConfig) {
	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = b
		}
	}
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
}
