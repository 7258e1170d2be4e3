// Package config loads the monitor's tunables from the environment,
// following the get-with-default style of the chidi150c-coinbase
// trading bot's env.go, but loading the optional .env file through
// joho/godotenv instead of a hand-rolled scanner.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env from the current directory if present. Existing
// environment variables are never overridden. Safe to call when no
// .env file exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// Config is the monitor binary's full set of runtime knobs: the oracle
// tunables from spec §6 plus the ambient infrastructure addresses.
type Config struct {
	TWAPWindowSeconds int
	CircuitBreakerPct float64
	MinSources        int
	PricePollInterval time.Duration

	SnowflakeNodeID int64

	MySQLDSN  string
	RedisAddr string
	NatsURL   string

	KafkaBrokers    []string
	KafkaTopic      string
	KafkaEnabled    bool

	DashboardAddr string
}

// FromEnv builds a Config from the process environment, defaulting
// every field to the spec's documented value.
func FromEnv() Config {
	brokers := getEnv("KAFKA_BROKERS", "")
	var brokerList []string
	if brokers != "" {
		brokerList = strings.Split(brokers, ",")
	}

	return Config{
		TWAPWindowSeconds: getEnvInt("TWAP_WINDOW_SECONDS", 300),
		CircuitBreakerPct: getEnvFloat("CIRCUIT_BREAKER_PCT", 10),
		MinSources:        getEnvInt("MIN_SOURCES", 1),
		PricePollInterval: time.Duration(getEnvInt("PRICE_POLL_INTERVAL_MS", 5000)) * time.Millisecond,

		SnowflakeNodeID: getEnvInt64("SNOWFLAKE_NODE_ID", 0),

		MySQLDSN:  getEnv("MYSQL_DSN", ""),
		RedisAddr: getEnv("REDIS_ADDR", ""),
		NatsURL:   getEnv("NATS_URL", ""),

		KafkaBrokers: brokerList,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "loan-monitor.events"),
		KafkaEnabled: len(brokerList) > 0,

		DashboardAddr: getEnv("DASHBOARD_ADDR", ":8089"),
	}
}
