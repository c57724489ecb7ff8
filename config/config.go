package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Processor ProcessorConfig
	Fees      FeesConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ProcessorConfig holds payment-processor API credentials. WebhookSecret
// signs inbound events; APIKey authenticates outbound calls.
type ProcessorConfig struct {
	APIBaseURL     string
	APIKey         string
	WebhookSecret  string
	TimeoutSeconds int
}

// FeesConfig drives the fee calculator. Rates are in basis points so the
// env values stay integral (500 = 5%).
type FeesConfig struct {
	PlatformRateBps    int
	ProcessorRateBps   int
	ProcessorFixedFee  int64
	SettlementHoldDays int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			HTTPPort: getEnv("HTTP_PORT", ":8084"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "goldenhive"),
			Password:        getEnv("POSTGRES_PASSWORD", "goldenhive"),
			DBName:          getEnv("POSTGRES_DB", "goldenhive_settlement"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_NOTIFICATIONS", "settlement.notifications"),
		},
		Processor: ProcessorConfig{
			APIBaseURL:     getEnv("PROCESSOR_API_BASE_URL", "https://api.processor.example.com"),
			APIKey:         getEnv("PROCESSOR_API_KEY", ""),
			WebhookSecret:  getEnv("PROCESSOR_WEBHOOK_SECRET", ""),
			TimeoutSeconds: getEnvInt("PROCESSOR_TIMEOUT_SECONDS", 10),
		},
		Fees: FeesConfig{
			PlatformRateBps:    getEnvInt("FEES_PLATFORM_RATE_BPS", 500),
			ProcessorRateBps:   getEnvInt("FEES_PROCESSOR_RATE_BPS", 290),
			ProcessorFixedFee:  int64(getEnvInt("FEES_PROCESSOR_FIXED_FEE", 30)),
			SettlementHoldDays: getEnvInt("FEES_SETTLEMENT_HOLD_DAYS", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
