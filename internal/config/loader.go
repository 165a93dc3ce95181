package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}

// LoadFromFile reads an env file without touching the process environment.
// Process variables take precedence over the file.
func LoadFromFile(path string) (Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("read env file %s: %w", path, err)
	}
	return Load(Layered{FromEnviron(), EnvMap(values)})
}
