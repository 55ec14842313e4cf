package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set keep their values.
func LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoadEnvOptional loads the .env file if it exists.
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return LoadEnv(path)
}
