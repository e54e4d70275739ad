package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

func Config(key string) string {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

func ConfigDefault(key, fallback string) string {
	if value := Config(key); value != "" {
		return value
	}
	return fallback
}
