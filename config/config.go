// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	KMSKeyName         string
	GoogleCloudProject string
	LogLevel           string
	AutoMigrate        bool
	Version            string
	// PublicKeyCacheTTL は公開鍵キャッシュの有効期間。0で無効。
	PublicKeyCacheTTL time.Duration

	OtelEnabled      bool
	OtelEndpoint     string
	OtelInsecure     bool
	OtelServiceName  string
	OtelSamplingRate float64

	KeyGen KeyGenConfig
}

// KeyGenConfig は鍵生成の設定を表す。
type KeyGenConfig struct {
	Bits              int
	PublicExponent    int
	MillerRabinRounds int
	Workers           int
	MinBits           int
	Timeout           time.Duration
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		AutoMigrate:        getEnvBool("AUTO_MIGRATE", false),
		Version:            getEnv("APP_VERSION", "dev"),
		PublicKeyCacheTTL:  getEnvDuration("PUBLIC_KEY_CACHE_TTL", 5*time.Minute),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelInsecure:     getEnvBool("OTEL_INSECURE", false),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "rsa-key-service"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),

		KeyGen: LoadKeyGen(),
	}
}

// LoadKeyGen は鍵生成の設定だけを環境変数から読み込む。
func LoadKeyGen() KeyGenConfig {
	return KeyGenConfig{
		Bits:              getEnvInt("KEYGEN_BITS", 2048),
		PublicExponent:    getEnvInt("KEYGEN_PUBLIC_EXPONENT", 3),
		MillerRabinRounds: getEnvInt("KEYGEN_MR_ROUNDS", 10),
		Workers:           getEnvInt("KEYGEN_WORKERS", 1),
		MinBits:           getEnvInt("KEYGEN_MIN_BITS", 2048),
		Timeout:           getEnvDuration("KEYGEN_TIMEOUT", 2*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}
