package store

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigDir = "TREEGRID_CONFIG_DIR"

	configFile = "config.yaml"
	maxRecent  = 10
)

type Config struct {
	// LibraryDir holds library.sqlite. Defaults to the config dir.
	LibraryDir string `yaml:"libraryDir,omitempty" json:"libraryDir,omitempty"`
	// SaveDir is where relative paths given to save prompts resolve.
	SaveDir  string `yaml:"saveDir,omitempty" json:"saveDir,omitempty"`
	DebugLog string `yaml:"debugLog,omitempty" json:"debugLog,omitempty"`
	// Recent lists opened or saved files, most recent first.
	Recent []string   `yaml:"recent,omitempty" json:"recent,omitempty"`
	TUI    *TUIConfig `yaml:"tui,omitempty" json:"tui,omitempty"`
}

type TUIConfig struct {
	CellWidth int  `yaml:"cellWidth,omitempty" json:"cellWidth,omitempty"`
	ASCII     bool `yaml:"ascii,omitempty" json:"ascii,omitempty"`
	// MarkdownStyle is a glamour style name ("dark", "light", "notty"); empty means auto.
	MarkdownStyle string `yaml:"markdownStyle,omitempty" json:"markdownStyle,omitempty"`
}

func ConfigDir() (string, error) {
	// Tests point this elsewhere to keep ~/.treegrid untouched.
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".treegrid"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadConfig reads the config file. A missing file yields an empty config.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, configFile+".*.tmp", path, b, 0o600)
}

// Library returns the directory that holds the tree library database.
func (c *Config) Library() (string, error) {
	if c != nil && strings.TrimSpace(c.LibraryDir) != "" {
		return c.LibraryDir, nil
	}
	return ConfigDir()
}

// ResolveSavePath makes a relative save path absolute under SaveDir when one is set.
func (c *Config) ResolveSavePath(p string) string {
	if c == nil || c.SaveDir == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.SaveDir, p)
}

// CellWidth returns the configured grid cell width, or def when unset.
func (c *Config) CellWidth(def int) int {
	if c == nil || c.TUI == nil || c.TUI.CellWidth <= 0 {
		return def
	}
	return c.TUI.CellWidth
}

// TouchRecent moves path to the front of the recent list.
func (c *Config) TouchRecent(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	c.Recent = slices.DeleteFunc(c.Recent, func(p string) bool { return p == path })
	c.Recent = append([]string{path}, c.Recent...)
	if len(c.Recent) > maxRecent {
		c.Recent = c.Recent[:maxRecent]
	}
}

// RecordRecent loads the config, touches path and saves it back.
func RecordRecent(path string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	cfg.TouchRecent(path)
	return SaveConfig(cfg)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
