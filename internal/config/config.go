package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"doclean/internal/logger"
)

type Config struct {
	// OCR / cleanup configuration
	Language       string
	UnpaperPath    string
	OCRmyPDFPath   string
	Workers        int
	Retries        int
	CleanupTimeout time.Duration
	OCRTimeout     time.Duration
	Optimize       int
	PNGQuality     int
	JBIG2Lossy     bool
	PurgeOCRTemp   bool
	TextSource     string

	// Compression configuration
	ScaleFactor float64
	Quality     int

	// Google Cloud Configuration (only for the vision text source)
	GoogleCredentials     string
	GoogleCredentialsFile string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Text sources usable for date detection.
const (
	TextSourceSidecar   = "sidecar"
	TextSourceVision    = "vision"
	TextSourceTesseract = "tesseract"
)

func Load() (*Config, error) {
	config := &Config{
		Language:              getEnv("DOCLEAN_LANGUAGE", "deu"),
		UnpaperPath:           getEnv("DOCLEAN_UNPAPER", "unpaper"),
		OCRmyPDFPath:          getEnv("DOCLEAN_OCRMYPDF", "ocrmypdf"),
		TextSource:            strings.ToLower(getEnv("DOCLEAN_TEXT_SOURCE", TextSourceSidecar)),
		GoogleCredentials:     getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.Workers, err = getEnvInt("DOCLEAN_WORKERS", 1); err != nil {
		return nil, err
	}
	if config.Retries, err = getEnvInt("DOCLEAN_RETRIES", 0); err != nil {
		return nil, err
	}
	if config.Optimize, err = getEnvInt("DOCLEAN_OPTIMIZE", 3); err != nil {
		return nil, err
	}
	if config.PNGQuality, err = getEnvInt("DOCLEAN_PNG_QUALITY", 1); err != nil {
		return nil, err
	}
	if config.Quality, err = getEnvInt("DOCLEAN_QUALITY", 25); err != nil {
		return nil, err
	}
	if config.ScaleFactor, err = getEnvFloat("DOCLEAN_SCALE_FACTOR", 0.5); err != nil {
		return nil, err
	}
	if config.JBIG2Lossy, err = getEnvBool("DOCLEAN_JBIG2_LOSSY", true); err != nil {
		return nil, err
	}
	if config.PurgeOCRTemp, err = getEnvBool("DOCLEAN_PURGE_OCR_TEMP", false); err != nil {
		return nil, err
	}
	if config.CleanupTimeout, err = getEnvDuration("DOCLEAN_CLEANUP_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if config.OCRTimeout, err = getEnvDuration("DOCLEAN_OCR_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used when the environment is empty.
func Default() *Config {
	return &Config{
		Language:       "deu",
		UnpaperPath:    "unpaper",
		OCRmyPDFPath:   "ocrmypdf",
		Workers:        1,
		CleanupTimeout: 2 * time.Minute,
		OCRTimeout:     30 * time.Minute,
		Optimize:       3,
		PNGQuality:     1,
		JBIG2Lossy:     true,
		TextSource:     TextSourceSidecar,
		ScaleFactor:    0.5,
		Quality:        25,
		LogLevel:       "info",
		LogFormat:      "console",
		LogTimeFormat:  time.RFC3339,
		LogOutput:      "stderr",
	}
}

func (c *Config) validate() error {
	if c.Language == "" {
		return fmt.Errorf("DOCLEAN_LANGUAGE must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("DOCLEAN_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("DOCLEAN_RETRIES must not be negative, got %d", c.Retries)
	}
	if c.Optimize < 0 || c.Optimize > 3 {
		return fmt.Errorf("DOCLEAN_OPTIMIZE must be between 0 and 3, got %d", c.Optimize)
	}
	if c.ScaleFactor <= 0 || c.ScaleFactor > 1 {
		return fmt.Errorf("DOCLEAN_SCALE_FACTOR must be in (0, 1], got %g", c.ScaleFactor)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("DOCLEAN_QUALITY must be between 1 and 100, got %d", c.Quality)
	}
	switch c.TextSource {
	case TextSourceSidecar, TextSourceVision, TextSourceTesseract:
	default:
		return fmt.Errorf("DOCLEAN_TEXT_SOURCE must be one of sidecar, vision, tesseract, got %q", c.TextSource)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}
