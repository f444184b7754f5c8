package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// envFiles lists the dotenv files consulted for environment, lowest
// precedence first. Only .env leaves variables set by the process alone.
func envFiles(environment string) []string {
	files := []string{".env"}
	if environment != "" {
		files = append(files, ".env."+environment)
	}
	return append(files, ".env.local")
}

// loadEnvFiles applies the dotenv files that exist. Lambda functions are
// configured through the function environment only.
func loadEnvFiles() error {
	if runningOnLambda() {
		return nil
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = os.Getenv("ENV")
	}

	for i, file := range envFiles(environment) {
		load := godotenv.Overload
		if i == 0 {
			load = godotenv.Load
		}
		if err := load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
