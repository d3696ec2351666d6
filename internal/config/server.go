package config

import (
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	BootstrapAdminID string // optional: actor id seeded as the first admin
	BootstrapAdmin   string // display name for the seeded admin
}

func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:             getEnv("PORT", "8080"),
		ReadTimeout:      getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:      getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:  getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		BootstrapAdminID: getEnv("BOOTSTRAP_ADMIN_ID", ""),
		BootstrapAdmin:   getEnv("BOOTSTRAP_ADMIN_NAME", "admin"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
