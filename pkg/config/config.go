package config

import (
    "log"
    "os"
    "strconv"
    "time"
)

type Config struct {
    Port string

    DBHost     string
    DBPort     string
    DBUser     string
    DBPassword string
    DBName     string

    MongoURI string

    JWTSecret string

    // ONLINE_STATUS_TIMEOUT: a session (or stream connection) with no heartbeat
    // inside this window counts as offline/stale.
    OnlineStatusTimeout time.Duration

    // SSE_HEARTBEAT_INTERVAL: period of the keep-alive event pushed to every
    // open connection. Stale connections are swept at twice this interval.
    SSEHeartbeatInterval time.Duration

    // SESSION_SWEEP_INTERVAL: period of the expired-session sweep.
    SessionSweepInterval time.Duration
}

func LoadConfig() *Config {
    return &Config{
        Port:       getEnv("PORT", "8000"),
        DBHost:     getEnv("DB_HOST", "localhost"),
        DBPort:     getEnv("DB_PORT", "5432"),
        DBUser:     getEnv("DB_USER", "user"),
        DBPassword: getEnv("DB_PASSWORD", "password"),
        DBName:     getEnv("DB_NAME", "inkround"),
        MongoURI:   getEnv("MONGO_URI", ""),
        JWTSecret:  getEnv("JWT_SECRET", "secret"),

        OnlineStatusTimeout:  getEnvDuration("ONLINE_STATUS_TIMEOUT", 60*time.Second),
        SSEHeartbeatInterval: getEnvDuration("SSE_HEARTBEAT_INTERVAL", 30*time.Second),
        SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
    }
}

// getEnv reads an environment variable and returns its value or a default value
func getEnv(key, defaultValue string) string {
    value, exists := os.LookupEnv(key)
    if !exists {
        value = defaultValue
        log.Printf("Environment variable %s not set, using default value: %s", key, defaultValue)
    }
    return value
}

// getEnvDuration reads a duration either as a Go duration string ("30s") or
// as plain milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
    value, exists := os.LookupEnv(key)
    if !exists {
        log.Printf("Environment variable %s not set, using default value: %s", key, defaultValue)
        return defaultValue
    }
    if d, err := time.ParseDuration(value); err == nil {
        return d
    }
    if ms, err := strconv.Atoi(value); err == nil {
        return time.Duration(ms) * time.Millisecond
    }
    log.Printf("Environment variable %s has invalid duration %q, using default value: %s", key, value, defaultValue)
    return defaultValue
}
