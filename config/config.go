package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	Env              string
	Port             string
	DBURL            string
	Pepper           string
	AccessExpiryMin  int
	RefreshExpiryMin int
	ResetExpiryMin   int
	JWTPrivateKeyPEM string
	JWTPublicKeyPEM  string
	AdminEmail       string
	AdminPassword    string
	LogLevel         string
}

func Load() *Config {
	cfg := &Config{
		Env:              getEnv("ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DBURL:            mustGetEnv("DB_URL"),
		Pepper:           mustGetEnv("PASSWORD_PEPPER"),
		AccessExpiryMin:  getEnvAsInt("ACCESS_TOKEN_EXPIRY", 15),
		RefreshExpiryMin: getEnvAsInt("REFRESH_TOKEN_EXPIRY", 10080),
		ResetExpiryMin:   getEnvAsInt("RESET_TOKEN_EXPIRY", 20),
		JWTPrivateKeyPEM: getEnv("JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPEM:  getEnv("JWT_PUBLIC_KEY", ""),
		AdminEmail:       getEnv("ADMIN_EMAIL", ""),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if len(cfg.Pepper) < 8 {
		log.Fatal("PASSWORD_PEPPER must be at least 8 characters")
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
