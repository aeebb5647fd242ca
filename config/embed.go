package config

import (
	"embed"
	"os"
	"path"
	"path/filepath"
)

//go:embed default.yaml scene.yaml
var configFS embed.FS

//go:embed scripts/*.tengo
var scriptsFS embed.FS

// load reads a config file from disk, falling back to the embedded copy of
// the same base name.
func load(name string) ([]byte, error) {
	if data, err := os.ReadFile(name); err == nil {
		return data, nil
	}
	return configFS.ReadFile(filepath.Base(filepath.ToSlash(name)))
}

// LoadScript reads a sandbox script from disk, falling back to the embedded
// scripts directory.
func LoadScript(name string) ([]byte, error) {
	if data, err := os.ReadFile(name); err == nil {
		return data, nil
	}
	return scriptsFS.ReadFile(path.Join("scripts", filepath.Base(filepath.ToSlash(name))))
}
