//go:build dev

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// dotEnvFiles are loaded in order; godotenv never overrides a variable that
// is already set, so earlier files win.
var dotEnvFiles = []string{".env.local", ".env"}

func loadDotEnv() error {
	if path, ok := os.LookupEnv("CKBRELAY_ENV_FILE"); ok && path != "" {
		return godotenv.Load(path)
	}
	for _, path := range dotEnvFiles {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
