package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

type Config struct {
	Port                string
	ModelPath           string
	MetadataPath        string
	Backend             string
	LibraryPath         string
	IntraOpThreads      int
	StoreDSN            string
	TelegramToken       string
	LogFile             string
	Debug               bool
	ConfidenceThreshold float64
}

// Load reads the environment, after loading .env if one exists.
func Load() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		ModelPath:     getEnv("MODEL_PATH", "models/cassava_model.onnx"),
		MetadataPath:  getEnv("METADATA_PATH", "models/model_metadata.json"),
		Backend:       getEnv("MODEL_BACKEND", model.BackendONNX),
		LibraryPath:   os.Getenv("ORT_LIBRARY_PATH"),
		StoreDSN:      getEnv("STORE_DSN", "sqlite://data/scans.db"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogFile:       os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.IntraOpThreads, err = getInt("INTRA_OP_THREADS", 0); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getBool("DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold, err = getFloat("CONFIDENCE_THRESHOLD", 0.8); err != nil {
		return nil, err
	}
	if err := decision.CheckThreshold(cfg.ConfidenceThreshold); err != nil {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD: %w", err)
	}
	return cfg, nil
}

// ModelOptions returns the runner options described by the config.
func (c *Config) ModelOptions() model.Options {
	return model.Options{
		Backend:        c.Backend,
		ModelPath:      c.ModelPath,
		MetadataPath:   c.MetadataPath,
		LibraryPath:    c.LibraryPath,
		IntraOpThreads: c.IntraOpThreads,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
