package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from the first .env/.env.local
// file that parses. Existing process environment variables are never
// overridden. Returns the loaded filename, or empty when none was found.
func loadEnvFiles() string {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			return envPath
		}
	}
	return ""
}
