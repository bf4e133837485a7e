package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Engine      EngineConfig      `mapstructure:"engine"`
	DayBoundary DayBoundaryConfig `mapstructure:"day_boundary"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
	// Store selects the repository backend: "postgres" or "memory".
	Store string `mapstructure:"store"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	Disabled       bool   `mapstructure:"disabled"`
	Token          string `mapstructure:"token"`
	RequireGateway bool   `mapstructure:"require_gateway"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Sweep        string `mapstructure:"sweep"`
	PriceRefresh string `mapstructure:"price_refresh"`
}

type EngineConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PriceTimeout time.Duration `mapstructure:"price_timeout"`
	SweepWorkers int           `mapstructure:"sweep_workers"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
}

type DayBoundaryConfig struct {
	// Policy is "utc_cutoff" or "session_close".
	Policy       string `mapstructure:"policy"`
	CutoffHour   int    `mapstructure:"cutoff_hour"`
	Timezone     string `mapstructure:"timezone"`
	SessionClose string `mapstructure:"session_close"`
}

type MarketDataConfig struct {
	// Provider is "http", "stream", "repo" or "static".
	Provider  string        `mapstructure:"provider"`
	BaseURL   string        `mapstructure:"base_url"`
	StreamURL string        `mapstructure:"stream_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxAge    time.Duration `mapstructure:"max_age"`
	// RefreshInterval is how often the stream re-reads open assets.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuditConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.store", "postgres")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.require_gateway", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sweep", "@every 1m")
	v.SetDefault("cron.price_refresh", "@every 15s")

	v.SetDefault("engine.max_attempts", 4)
	v.SetDefault("engine.price_timeout", "3s")
	v.SetDefault("engine.sweep_workers", 8)
	v.SetDefault("engine.sweep_timeout", "50s")

	v.SetDefault("day_boundary.policy", "utc_cutoff")
	v.SetDefault("day_boundary.cutoff_hour", 0)
	v.SetDefault("day_boundary.timezone", "America/New_York")
	v.SetDefault("day_boundary.session_close", "17:00")

	v.SetDefault("market_data.provider", "repo")
	v.SetDefault("market_data.base_url", "")
	v.SetDefault("market_data.stream_url", "")
	v.SetDefault("market_data.refresh_interval", "30s")
	v.SetDefault("market_data.timeout", "5s")
	v.SetDefault("market_data.max_age", "5m")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("audit.base_url", "")
	v.SetDefault("audit.api_key", "")
	v.SetDefault("audit.agent", "propdesk")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
