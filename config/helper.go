package config

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// homeDir returns the directory under the user's home that may hold the config file.
func homeDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, MainDir), nil
}
