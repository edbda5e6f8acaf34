// Package config provides configuration management for the application
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/navikt/roomswitch/internal/models"
)

// Config is the complete application configuration
type Config struct {
	Port         string
	LogLevel     string
	Provisioning ProvisioningConfig
	Transport    TransportConfig
	Session      SessionConfig
	Redis        RedisConfig
}

// ProvisioningConfig holds the room provisioning service configuration
type ProvisioningConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// TransportConfig holds the real-time transport gateway configuration
type TransportConfig struct {
	URL            string
	Codec          string
	RequestTimeout time.Duration
}

// SessionConfig holds participant and switch behaviour
type SessionConfig struct {
	// DisplayName is derived from the joined room when empty
	DisplayName   string
	MicEnabled    bool
	WebcamEnabled bool
	RelayKinds    []models.MediaKind
	// GracePeriod is the pause between leaving one room and joining the other
	GracePeriod   time.Duration
	SwitchTimeout time.Duration
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string
	Host      string
	Port      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// TTL for the stored room pair (0 means no expiration)
	PairTTL time.Duration
}

// Load reads the full configuration from environment variables
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Provisioning: GetProvisioningConfig(),
		Transport:    GetTransportConfig(),
		Session:      GetSessionConfig(),
		Redis:        GetRedisConfig(),
	}
}

// GetProvisioningConfig loads provisioning service configuration from environment variables
func GetProvisioningConfig() ProvisioningConfig {
	return ProvisioningConfig{
		BaseURL:   strings.TrimRight(getEnv("ROOMS_API_BASE_URL", "https://api.videosdk.live/v1"), "/"),
		AuthToken: getEnv("ROOMS_AUTH_TOKEN", ""),
		Timeout:   time.Duration(getEnvInt("ROOMS_API_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// GetTransportConfig loads transport gateway configuration from environment variables
func GetTransportConfig() TransportConfig {
	return TransportConfig{
		URL:            getEnv("TRANSPORT_URL", "ws://localhost:9000/ws"),
		Codec:          strings.ToLower(getEnv("TRANSPORT_CODEC", "json")),
		RequestTimeout: time.Duration(getEnvInt("TRANSPORT_REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// GetSessionConfig loads participant and switch configuration from environment variables
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		DisplayName:   getEnv("DISPLAY_NAME", ""),
		MicEnabled:    getEnvBool("MIC_ENABLED", true),
		WebcamEnabled: getEnvBool("WEBCAM_ENABLED", true),
		RelayKinds:    parseKinds(getEnv("RELAY_KINDS", "video,audio")),
		GracePeriod:   time.Duration(getEnvInt("SWITCH_GRACE_PERIOD_MS", 500)) * time.Millisecond,
		SwitchTimeout: time.Duration(getEnvInt("SWITCH_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}

// GetRedisConfig loads Redis/Valkey configuration from environment variables
func GetRedisConfig() RedisConfig {
	// Parse TTL from environment variable (in hours)
	ttlHours := getEnvInt("REDIS_PAIR_TTL_HOURS", 24)

	return RedisConfig{
		Enabled:   getEnvBool("REDIS_ENABLED", false),
		URI:       getEnv("REDIS_URI_ROOMSWITCH", ""),
		Host:      getEnv("REDIS_HOST_ROOMSWITCH", getEnv("REDIS_ADDRESS", "localhost")),
		Port:      getEnv("REDIS_PORT_ROOMSWITCH", "6379"),
		Username:  getEnv("REDIS_USERNAME_ROOMSWITCH", ""),
		Password:  getEnv("REDIS_PASSWORD_ROOMSWITCH", getEnv("REDIS_PASSWORD", "")),
		DB:        getEnvInt("REDIS_DB", 0),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "roomswitch:"),
		PairTTL:   time.Duration(ttlHours) * time.Hour,
	}
}

// IsProvisioningConfigValid checks that a token is present for the provisioning service
func (c ProvisioningConfig) IsProvisioningConfigValid() bool {
	return c.BaseURL != "" && c.AuthToken != ""
}

// parseKinds splits a comma separated list of media kinds, falling back to the defaults
func parseKinds(value string) []models.MediaKind {
	var kinds []models.MediaKind
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		kinds = append(kinds, models.MediaKind(part))
	}
	if len(kinds) == 0 {
		return append([]models.MediaKind(nil), models.DefaultRelayKinds...)
	}
	return kinds
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvInt retrieves an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
