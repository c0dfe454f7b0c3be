package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything killfeed needs to reach its two producers.
type Config struct {
	APIBind      string // tracker API host:port
	JournalPath  string // NDJSON journal written by the log companion
	CachePath    string // entity cache database
	LogPath      string // diagnostic log file (the terminal belongs to the UI)
	PollInterval int    // live-poll cadence in seconds
}

const (
	defaultConfigPath   = "~/.config/killfeed/config.toml"
	defaultDataDir      = "~/.local/share/killfeed"
	defaultAPIBind      = "127.0.0.1:8421"
	defaultPollInterval = 2
)

// Load locates and parses the killfeed config, falling back to defaults when
// missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind      string `toml:"api_bind"`
		JournalPath  string `toml:"journal_path"`
		CachePath    string `toml:"cache_path"`
		LogPath      string `toml:"log_path"`
		PollInterval int    `toml:"poll_interval"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBind); v != "" {
		cfg.APIBind = v
	}
	if v := strings.TrimSpace(raw.JournalPath); v != "" {
		cfg.JournalPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.CachePath); v != "" {
		cfg.CachePath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if raw.PollInterval > 0 {
		cfg.PollInterval = raw.PollInterval
	}

	return cfg, nil
}

func defaults() Config {
	dataDir := mustExpand(defaultDataDir)
	return Config{
		APIBind:      defaultAPIBind,
		JournalPath:  filepath.Join(dataDir, "journal.ndjson"),
		CachePath:    filepath.Join(dataDir, "cache.db"),
		LogPath:      filepath.Join(dataDir, "killfeed.log"),
		PollInterval: defaultPollInterval,
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
