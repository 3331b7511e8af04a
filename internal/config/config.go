package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
	DBSSLMode  string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	BotToken    string
	AdminChatID int64

	PayoutGatewayURL string
	PayoutGatewayKey string

	RewardRate         decimal.Decimal
	MaxReward          decimal.Decimal
	ConvertDeduction   decimal.Decimal
	PayoutDeduction    decimal.Decimal
	ActivationPrice    decimal.Decimal
	ActivationDeduct   decimal.Decimal
	ActivationLimit    decimal.Decimal
	LimitIncreaseCost  decimal.Decimal
	LimitIncreaseGrant decimal.Decimal

	WalletCacheTTL   time.Duration
	OTPTTL           time.Duration
	RetryAttempts    uint
	RetryDelay       time.Duration
	MatchingSchedule string
	NotifyBuffer     int

	LogLevel    string
	MetricsAddr string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "binarymlm"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisEnabled:  getBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminChatID: int64(getInt("TELEGRAM_ADMIN_CHAT_ID", 0)),

		PayoutGatewayURL: getEnv("PAYOUT_GATEWAY_URL", ""),
		PayoutGatewayKey: getEnv("PAYOUT_GATEWAY_KEY", ""),

		RewardRate:         getDecimal("REWARD_RATE", "0.08"),
		MaxReward:          getDecimal("MAX_REWARD", "500"),
		ConvertDeduction:   getDecimal("CONVERT_DEDUCTION_PERCENT", "10"),
		PayoutDeduction:    getDecimal("PAYOUT_DEDUCTION_PERCENT", "10"),
		ActivationPrice:    getDecimal("ACTIVATION_PRICE", "68"),
		ActivationDeduct:   getDecimal("ACTIVATION_DEDUCTION_PERCENT", "26.471"),
		ActivationLimit:    getDecimal("ACTIVATION_INCOME_LIMIT", "5000"),
		LimitIncreaseCost:  getDecimal("LIMIT_INCREASE_COST", "68"),
		LimitIncreaseGrant: getDecimal("LIMIT_INCREASE_GRANT", "5000"),

		WalletCacheTTL:   getDuration("WALLET_CACHE_TTL", 30*time.Second),
		OTPTTL:           getDuration("OTP_TTL", 5*time.Minute),
		RetryAttempts:    uint(getInt("SERIALIZER_RETRY_ATTEMPTS", 3)),
		RetryDelay:       getDuration("SERIALIZER_RETRY_DELAY", time.Second),
		MatchingSchedule: getEnv("MATCHING_SCHEDULE", "0 0 * * *"),
		NotifyBuffer:     getInt("NOTIFY_BUFFER", 256),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid integer, using default")
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid boolean, using default")
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return fallback
	}
	return v
}

func getDecimal(key, fallback string) decimal.Decimal {
	raw := getEnv(key, fallback)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid decimal, using default")
		return decimal.RequireFromString(fallback)
	}
	return v
}
