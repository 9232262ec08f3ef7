package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`

	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chat_db"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// Session limits
	MaxAliasLength   int `env:"MAX_ALIAS_LENGTH"   envDefault:"32"   validate:"min=1,max=256"`
	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"4000" validate:"min=1"`

	// WebSocket transport
	WsReadLimit    int64    `env:"WS_READ_LIMIT"    envDefault:"16384" validate:"min=512"`
	WsSendBuffer   int      `env:"WS_SEND_BUFFER"   envDefault:"256"   validate:"min=1"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envSeparator:","`

	RateLimitBurst    int           `env:"RATE_LIMIT_BURST"    envDefault:"10"    validate:"min=1"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"200ms" validate:"gt=0"`

	// History and background jobs
	HistoryPageLimit     int           `env:"HISTORY_PAGE_LIMIT"     envDefault:"50"   validate:"min=1,max=500"`
	MessagesStreamMaxLen int64         `env:"MESSAGES_STREAM_MAXLEN" envDefault:"10000" validate:"min=100"`
	PresenceSyncInterval time.Duration `env:"PRESENCE_SYNC_INTERVAL" envDefault:"10s" validate:"gt=0"`

	RoomCheckEnabled bool `env:"ROOM_CHECK_ENABLED" envDefault:"false"`
}

// IsProduction selects the production logger and gin release mode.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	// Parse config from environment variables
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
