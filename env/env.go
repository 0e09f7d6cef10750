// Package env loads configuration structs from the environment, optionally
// seeded from a dotenv file.
package env

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	DefaultEnvFile = ".env"
	// FileVar overrides the dotenv file location.
	FileVar = "BANNERMAIL_ENV_FILE"
)

// InitConfig fills every config with envconfig. The dotenv file is optional
// and never overrides variables that are already set.
func InitConfig(configs ...any) error {
	file := os.Getenv(FileVar)
	if file == "" {
		file = DefaultEnvFile
	}
	// nolint:errcheck // .env file is optional, failure is acceptable
	_ = godotenv.Load(file)

	for _, config := range configs {
		if err := envconfig.Process("", config); err != nil {
			return errors.Wrap(err, "failed to envconfig.Process")
		}
	}

	return nil
}
