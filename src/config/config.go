package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	BaseCurrency       string
	ForexTolerance     float64
	MaxUploadSizeBytes int64

	// PersistTradeDetails controls whether row-level trade detail is written
	// alongside snapshots for audit. Snapshots themselves are always written.
	PersistTradeDetails bool

	// ConsolidateAccounts nets the options-credit total across all accounts
	// present in one run instead of keeping per-account totals.
	ConsolidateAccounts bool
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	forexToleranceStr := getEnv("FOREX_TOLERANCE", "1.00")
	forexTolerance, err := strconv.ParseFloat(forexToleranceStr, 64)
	if err != nil || forexTolerance < 0 {
		log.Printf("WARNING: Invalid FOREX_TOLERANCE '%s'. Using default 1.00. Error: %v", forexToleranceStr, err)
		forexTolerance = 1.00
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "./optfolio.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		BaseCurrency:        getEnv("BASE_CURRENCY", "USD"),
		ForexTolerance:      forexTolerance,
		MaxUploadSizeBytes:  maxUploadSizeBytes,
		PersistTradeDetails: getEnvAsBool("PERSIST_TRADE_DETAILS", true),
		ConsolidateAccounts: getEnvAsBool("CONSOLIDATE_ACCOUNTS", false),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, BaseCurrency=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.BaseCurrency)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}
