package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// FindProjectRoot walks up from the working directory until it finds a
// go.mod, which marks the repository root during development.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// LoadEnv loads the .env file from the project root. Missing files are
// an error the caller may ignore in production builds.
func LoadEnv() error {
	root, err := FindProjectRoot()
	if err != nil {
		return err
	}
	return godotenv.Load(filepath.Join(root, ".env"))
}
