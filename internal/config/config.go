// Package config loads server and client configuration from environment variables.
// A .env file in the working directory is read first when present; real environment
// variables take precedence over it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Log holds the logging settings shared by both binaries.
type Log struct {
	Level string // debug, info, warn, error
	File  string // optional rotated log file; empty means stdout only
}

// Server is the companion backend configuration.
type Server struct {
	Port           int
	DBPath         string
	JWTSecret      string
	SessionTTL     time.Duration
	AllowedOrigins []string
	SecureCookies  bool
	GeminiAPIKey   string
	GeminiModel    string
	WeatherAPIKey  string
	GoogleAPIKey   string
	Log            Log
}

// Addr is the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Client is the SDK and CLI configuration.
type Client struct {
	APIURL          string
	DataPath        string
	Timeout         time.Duration
	InterestRetries int
	RetryDelay      time.Duration
	Log             Log
}

// LoadServer reads the backend configuration.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	port, err := getIntEnv("PORT", 5001)
	if err != nil {
		return nil, err
	}
	ttl, err := getDurationEnv("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	secure, err := strconv.ParseBool(getEnv("SECURE_COOKIES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURE_COOKIES: %w", err)
	}

	return &Server{
		Port:           port,
		DBPath:         getEnv("DB_PATH", "data/moodmingle.db"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SessionTTL:     ttl,
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SecureCookies:  secure,
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		WeatherAPIKey:  getEnv("WEATHER_API_KEY", ""),
		GoogleAPIKey:   getEnv("GOOGLE_API_KEY", ""),
		Log:            loadLog(),
	}, nil
}

// LoadClient reads the SDK configuration.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	timeout, err := getDurationEnv("MOODMINGLE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := getIntEnv("MOODMINGLE_INTEREST_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if retries < 1 {
		return nil, fmt.Errorf("invalid MOODMINGLE_INTEREST_RETRIES: must be at least 1, got %d", retries)
	}
	delay, err := getDurationEnv("MOODMINGLE_RETRY_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return &Client{
		APIURL:          strings.TrimRight(getEnv("MOODMINGLE_API_URL", "http://localhost:5001"), "/"),
		DataPath:        getEnv("MOODMINGLE_DATA", defaultDataPath()),
		Timeout:         timeout,
		InterestRetries: retries,
		RetryDelay:      delay,
		Log:             loadLog(),
	}, nil
}

func loadLog() Log {
	return Log{
		Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		File:  getEnv("LOG_FILE", ""),
	}
}

// defaultDataPath is ~/.moodmingle/client.db, or a relative path when the home
// directory cannot be resolved.
func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".moodmingle", "client.db")
	}
	return filepath.Join(home, ".moodmingle", "client.db")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
