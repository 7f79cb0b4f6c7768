package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	StorageDriver string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string

	VoteStreamPrefix  string
	VoteStreamShards  int
	VoteConsumerGroup string
	VoteConsumerName  string
	StreamBlock       time.Duration
	StreamMaxLen      int64

	OutboxBatchSize  int
	OutboxInterval   time.Duration
	OutboxMaxRetries int
	OutboxLease      time.Duration

	AnomalyThresholdMultiplier float64
	TrendThreshold             float64
	AggregationMaxSnapshots    int

	PredictionURL     string
	PredictionTimeout time.Duration

	VoteRateLimit   int
	VoteRateWindow  time.Duration
	ResultsCacheTTL time.Duration

	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	ArchiveTimeout time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "ballot_engine"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		VoteStreamPrefix:  getEnv("VOTE_STREAM_PREFIX", "stream:votes:"),
		VoteStreamShards:  getEnvAsInt("VOTE_STREAM_SHARDS", 8),
		VoteConsumerGroup: getEnv("VOTE_CONSUMER_GROUP", "voting-analytics-group"),
		VoteConsumerName:  getEnv("VOTE_CONSUMER_NAME", hostname()),
		StreamBlock:       getEnvAsDuration("STREAM_BLOCK", 2*time.Second),
		StreamMaxLen:      int64(getEnvAsInt("STREAM_MAXLEN", 100000)),

		OutboxBatchSize:  getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		OutboxInterval:   getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxMaxRetries: getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		OutboxLease:      getEnvAsDuration("OUTBOX_LEASE", 30*time.Second),

		AnomalyThresholdMultiplier: getEnvAsFloat("ANOMALY_THRESHOLD_MULTIPLIER", 2.0),
		TrendThreshold:             getEnvAsFloat("TREND_THRESHOLD", 0.05),
		AggregationMaxSnapshots:    getEnvAsInt("AGGREGATION_MAX_SNAPSHOTS", 5000),

		PredictionURL:     getEnv("PREDICTION_URL", ""),
		PredictionTimeout: getEnvAsDuration("PREDICTION_TIMEOUT", 3*time.Second),

		VoteRateLimit:   getEnvAsInt("VOTE_RATE_LIMIT", 10),
		VoteRateWindow:  getEnvAsDuration("VOTE_RATE_WINDOW", time.Minute),
		ResultsCacheTTL: getEnvAsDuration("RESULTS_CACHE_TTL", 10*time.Second),

		S3Region:    getEnv("S3_REGION", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),

		ArchiveTimeout: getEnvAsDuration("ARCHIVE_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "analytics-1"
	}
	return name
}
