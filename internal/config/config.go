// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Training TrainingConfig
	Storage  StorageConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a libpq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int `validate:"gte=0"`
}

// ForecastConfig holds the forecasting and reorder knobs
type ForecastConfig struct {
	WindowLength      int     `validate:"gte=1"`
	HorizonDays       int     `validate:"gte=1"`
	LookbackWeeks     int     `validate:"gte=1"`
	HistoryWeeks      int     `validate:"gte=1"`
	BusySeasonStart   int     `validate:"gte=1,lte=12"`
	BusySeasonEnd     int     `validate:"gte=1,lte=12"`
	BaseDaysSupply    float64 `validate:"gt=0"`
	TargetMultiplier  float64 `validate:"gte=1"`
	SeasonalBuffer    float64 `validate:"gte=1"`
	ReorderSafetyDays int     `validate:"gte=0"`
	Workers           int     `validate:"gte=1"`
}

// TrainingConfig holds the sequence model hyperparameters
type TrainingConfig struct {
	Epochs          int     `validate:"gte=1"`
	BatchSize       int     `validate:"gte=1"`
	ValidationSplit float64 `validate:"gte=0,lt=1"`
	LearningRate    float64 `validate:"gt=0"`
	HiddenSize      int     `validate:"gte=1"`
	DenseSize       int     `validate:"gte=1"`
	MinExamples     int     `validate:"gte=1"`
	Seed            int64
	Schedule        string
	Timeout         time.Duration
}

// StorageConfig selects where trained model snapshots are kept
type StorageConfig struct {
	Backend   string `validate:"oneof=local s3"`
	Dir       string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// EventsConfig configures the reorder alert publisher
type EventsConfig struct {
	Enabled      bool
	Brokers      []string
	ReorderTopic string
}

var (
	once     sync.Once
	instance *Config
	validate = validator.New()
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper()

		if instance.Storage.Backend == "local" {
			ensureDir(instance.Storage.Dir)
		}

		if err := instance.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "stockcast")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_FORECAST_TTL_SECONDS", 300)

	viper.SetDefault("FORECAST_WINDOW_LENGTH", 12)
	viper.SetDefault("FORECAST_HORIZON_DAYS", 45)
	viper.SetDefault("FORECAST_LOOKBACK_WEEKS", 12)
	viper.SetDefault("FORECAST_HISTORY_WEEKS", 52)
	viper.SetDefault("FORECAST_BUSY_SEASON_START", 4)
	viper.SetDefault("FORECAST_BUSY_SEASON_END", 10)
	viper.SetDefault("FORECAST_BASE_DAYS_SUPPLY", 30)
	viper.SetDefault("FORECAST_TARGET_MULTIPLIER", 1.5)
	viper.SetDefault("FORECAST_SEASONAL_BUFFER", 1.2)
	viper.SetDefault("FORECAST_REORDER_SAFETY_DAYS", 5)
	viper.SetDefault("FORECAST_WORKERS", 4)

	viper.SetDefault("TRAINING_EPOCHS", 100)
	viper.SetDefault("TRAINING_BATCH_SIZE", 32)
	viper.SetDefault("TRAINING_VALIDATION_SPLIT", 0.2)
	viper.SetDefault("TRAINING_LEARNING_RATE", 0.01)
	viper.SetDefault("TRAINING_HIDDEN_SIZE", 16)
	viper.SetDefault("TRAINING_DENSE_SIZE", 8)
	viper.SetDefault("TRAINING_MIN_EXAMPLES", 10)
	viper.SetDefault("TRAINING_SEED", 42)
	viper.SetDefault("TRAINING_SCHEDULE", "")
	viper.SetDefault("TRAINING_TIMEOUT_SECONDS", 600)

	viper.SetDefault("MODEL_STORE_BACKEND", "local")
	viper.SetDefault("MODEL_STORE_DIR", "./data/models")
	viper.SetDefault("MODEL_STORE_PREFIX", "models")
	viper.SetDefault("MODEL_STORE_REGION", "us-east-1")
	viper.SetDefault("MODEL_STORE_USE_SSL", true)

	viper.SetDefault("EVENTS_ENABLED", false)
	viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
	viper.SetDefault("KAFKA_REORDER_TOPIC", "inventory.reorder-alerts")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:            viper.GetBool("CACHE_ENABLED"),
			RedisURL:           viper.GetString("REDIS_URL"),
			RedisHost:          viper.GetString("REDIS_HOST"),
			RedisPort:          viper.GetString("REDIS_PORT"),
			RedisPassword:      viper.GetString("REDIS_PASSWORD"),
			RedisDB:            viper.GetInt("REDIS_DB"),
			ForecastTTLSeconds: viper.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			WindowLength:      viper.GetInt("FORECAST_WINDOW_LENGTH"),
			HorizonDays:       viper.GetInt("FORECAST_HORIZON_DAYS"),
			LookbackWeeks:     viper.GetInt("FORECAST_LOOKBACK_WEEKS"),
			HistoryWeeks:      viper.GetInt("FORECAST_HISTORY_WEEKS"),
			BusySeasonStart:   viper.GetInt("FORECAST_BUSY_SEASON_START"),
			BusySeasonEnd:     viper.GetInt("FORECAST_BUSY_SEASON_END"),
			BaseDaysSupply:    viper.GetFloat64("FORECAST_BASE_DAYS_SUPPLY"),
			TargetMultiplier:  viper.GetFloat64("FORECAST_TARGET_MULTIPLIER"),
			SeasonalBuffer:    viper.GetFloat64("FORECAST_SEASONAL_BUFFER"),
			ReorderSafetyDays: viper.GetInt("FORECAST_REORDER_SAFETY_DAYS"),
			Workers:           viper.GetInt("FORECAST_WORKERS"),
		},
		Training: TrainingConfig{
			Epochs:          viper.GetInt("TRAINING_EPOCHS"),
			BatchSize:       viper.GetInt("TRAINING_BATCH_SIZE"),
			ValidationSplit: viper.GetFloat64("TRAINING_VALIDATION_SPLIT"),
			LearningRate:    viper.GetFloat64("TRAINING_LEARNING_RATE"),
			HiddenSize:      viper.GetInt("TRAINING_HIDDEN_SIZE"),
			DenseSize:       viper.GetInt("TRAINING_DENSE_SIZE"),
			MinExamples:     viper.GetInt("TRAINING_MIN_EXAMPLES"),
			Seed:            viper.GetInt64("TRAINING_SEED"),
			Schedule:        viper.GetString("TRAINING_SCHEDULE"),
			Timeout:         time.Duration(viper.GetInt("TRAINING_TIMEOUT_SECONDS")) * time.Second,
		},
		Storage: StorageConfig{
			Backend:   viper.GetString("MODEL_STORE_BACKEND"),
			Dir:       viper.GetString("MODEL_STORE_DIR"),
			Prefix:    viper.GetString("MODEL_STORE_PREFIX"),
			Endpoint:  viper.GetString("MODEL_STORE_ENDPOINT"),
			AccessKey: viper.GetString("MODEL_STORE_ACCESS_KEY"),
			SecretKey: viper.GetString("MODEL_STORE_SECRET_KEY"),
			Bucket:    viper.GetString("MODEL_STORE_BUCKET"),
			Region:    viper.GetString("MODEL_STORE_REGION"),
			UseSSL:    viper.GetBool("MODEL_STORE_USE_SSL"),
		},
		Events: EventsConfig{
			Enabled:      viper.GetBool("EVENTS_ENABLED"),
			Brokers:      viper.GetStringSlice("KAFKA_BROKERS"),
			ReorderTopic: viper.GetString("KAFKA_REORDER_TOPIC"),
		},
	}
}

// Validate checks the numeric ranges of every section
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("validate config: events enabled without kafka brokers")
	}
	return nil
}

// DefaultForecastConfig returns the documented defaults without touching the environment
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		WindowLength:      12,
		HorizonDays:       45,
		LookbackWeeks:     12,
		HistoryWeeks:      52,
		BusySeasonStart:   4,
		BusySeasonEnd:     10,
		BaseDaysSupply:    30,
		TargetMultiplier:  1.5,
		SeasonalBuffer:    1.2,
		ReorderSafetyDays: 5,
		Workers:           4,
	}
}

// DefaultTrainingConfig returns the documented training defaults
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          100,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.01,
		HiddenSize:      16,
		DenseSize:       8,
		MinExamples:     10,
		Seed:            42,
		Timeout:         10 * time.Minute,
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
