// Package config loads settings from defaults, an optional YAML file and
// EXCERPTS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/dshills/excerpts-mcp/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. EXCERPTS_LOG_LEVEL
const EnvPrefix = "EXCERPTS"

// ErrInvalidNotebookName is returned for notebook names that would escape
// the notebook directory
var ErrInvalidNotebookName = errors.New("invalid notebook name")

type Config struct {
	NotebookDir string       `mapstructure:"notebook_dir"`
	Notebook    string       `mapstructure:"notebook"`
	Log         LogConfig    `mapstructure:"log"`
	Import      ImportConfig `mapstructure:"import"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type ImportConfig struct {
	Workers int `mapstructure:"workers"`
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("notebook_dir", "~/.excerpts")
	v.SetDefault("notebook", "excerpts"+storage.NotebookExt)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("import.workers", runtime.NumCPU())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Import.Workers <= 0 {
		cfg.Import.Workers = runtime.NumCPU()
	}

	dir, err := expandHome(cfg.NotebookDir)
	if err != nil {
		return Config{}, err
	}
	cfg.NotebookDir = dir
	return cfg, nil
}

// NotebookPath resolves a notebook name to its file. An empty name means the
// configured default notebook; ".db" is appended when missing.
func (c Config) NotebookPath(name string) (string, error) {
	if name == "" {
		name = c.Notebook
	}
	if name == storage.MemoryPath {
		return name, nil
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidNotebookName, name)
	}
	if !strings.EqualFold(filepath.Ext(name), storage.NotebookExt) {
		name += storage.NotebookExt
	}
	return filepath.Join(c.NotebookDir, name), nil
}

// EnsureNotebookDir creates the notebook directory if needed
func (c Config) EnsureNotebookDir() error {
	return os.MkdirAll(c.NotebookDir, 0o755)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
