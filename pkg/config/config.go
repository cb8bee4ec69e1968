package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var v = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Auth struct {
		// SigningSecret verifies identity tokens minted by the auth
		// collaborator. Token issuance does not live in this service.
		SigningSecret string `mapstructure:"SIGNING_SECRET"`
	} `mapstructure:"AUTH"`
	Database struct {
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBName         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode  string `mapstructure:"SSLMODE"`
		Timezone string `mapstructure:"TIMEZONE"`
		// SlowQueryThreshold is the elapsed time past which a query is
		// logged as slow regardless of log level.
		SlowQueryThreshold time.Duration `mapstructure:"SLOW_QUERY_THRESHOLD"`
		ConnectionPool     struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Points struct {
		// DefaultAward is granted per loyalty-card scan when the business
		// has no per-business override.
		DefaultAward int64 `mapstructure:"DEFAULT_AWARD"`
		// AwardCeiling bounds any single award to limit fraud blast radius.
		AwardCeiling int64 `mapstructure:"AWARD_CEILING"`
	} `mapstructure:"POINTS"`
	RateLimit struct {
		HTTP struct {
			Requests int64         `mapstructure:"REQUESTS"`
			Window   time.Duration `mapstructure:"WINDOW"`
		} `mapstructure:"HTTP"`
		Scan struct {
			Requests int64         `mapstructure:"REQUESTS"`
			Window   time.Duration `mapstructure:"WINDOW"`
		} `mapstructure:"SCAN"`
	} `mapstructure:"RATE_LIMIT"`
	Scanner struct {
		// DebounceWindow drops identical raw texts re-decoded from
		// consecutive camera frames.
		DebounceWindow time.Duration `mapstructure:"DEBOUNCE_WINDOW"`
		// MinInterval is the minimum spacing between two dispatches.
		MinInterval time.Duration `mapstructure:"MIN_INTERVAL"`
		QueueSize   int           `mapstructure:"QUEUE_SIZE"`
	} `mapstructure:"SCANNER"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		zap.L().Warn("config file not found, using env and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "loyaltyhub")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.SLOW_QUERY_THRESHOLD", 200*time.Millisecond)
	v.SetDefault("POINTS.DEFAULT_AWARD", 10)
	v.SetDefault("POINTS.AWARD_CEILING", 5000)
	v.SetDefault("RATE_LIMIT.HTTP.REQUESTS", 60)
	v.SetDefault("RATE_LIMIT.HTTP.WINDOW", time.Minute)
	v.SetDefault("RATE_LIMIT.SCAN.REQUESTS", 5)
	v.SetDefault("RATE_LIMIT.SCAN.WINDOW", time.Second)
	v.SetDefault("SCANNER.DEBOUNCE_WINDOW", 750*time.Millisecond)
	v.SetDefault("SCANNER.MIN_INTERVAL", 300*time.Millisecond)
	v.SetDefault("SCANNER.QUEUE_SIZE", 32)
}
