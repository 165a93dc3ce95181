//go:build dev

package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env.local and then .env from the working directory.
// Variables already set win, and so does the first file to set a key.
func loadDotEnv() error {
	for _, path := range []string{".env.local", ".env"} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
	}
	return nil
}
