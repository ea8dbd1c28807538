package binvecdb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/binvecdb/codec"
	"github.com/hupe1980/binvecdb/persistence"
)

const (
	configFileName = "config.json"
	indexFileName  = "index.bin"
	docsDirName    = "docs"

	// ConfigVersion is the on-disk schema version.
	ConfigVersion = "1.0"
)

// Config is the on-disk database descriptor. It is written once at creation
// and validated on every reopen; it never migrates silently.
type Config struct {
	Version string `json:"version"`
	Model   string `json:"model"`
}

// loadOrCreateConfig implements the folder lifecycle guard: an absent or
// empty folder is initialized with a fresh config, a folder with a valid
// config is validated against the injected embedder's model, and a non-empty
// folder without a config is rejected to prevent accidental reuse of an
// unrelated directory.
func loadOrCreateConfig(folder, model string, c codec.Codec) (*Config, error) {
	configPath := filepath.Join(folder, configFileName)

	if data, err := os.ReadFile(configPath); err == nil {
		var cfg Config
		if err := c.Unmarshal(data, &cfg); err != nil {
			return nil, &InitializationError{Folder: folder, Reason: "malformed config.json", cause: err}
		}
		if cfg.Version != ConfigVersion {
			return nil, &InitializationError{
				Folder: folder,
				Reason: fmt.Sprintf("unsupported config version %q", cfg.Version),
			}
		}
		if cfg.Model != model {
			return nil, &InitializationError{
				Folder: folder,
				Reason: fmt.Sprintf("embedding model mismatch: database created with %q, embedder provides %q", cfg.Model, model),
			}
		}
		return &cfg, nil
	} else if !os.IsNotExist(err) {
		return nil, &InitializationError{Folder: folder, Reason: "cannot read config.json", cause: err}
	}

	entries, err := os.ReadDir(folder)
	if err != nil && !os.IsNotExist(err) {
		return nil, &InitializationError{Folder: folder, Reason: "cannot read folder", cause: err}
	}
	if len(entries) > 0 {
		return nil, &InitializationError{
			Folder: folder,
			Reason: "folder is not empty but contains no config.json",
		}
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, &InitializationError{Folder: folder, Reason: "cannot create folder", cause: err}
	}

	cfg := &Config{Version: ConfigVersion, Model: model}

	data, err := c.Marshal(cfg)
	if err != nil {
		return nil, &InitializationError{Folder: folder, Reason: "cannot encode config", cause: err}
	}
	if err := persistence.SaveToFile(configPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return nil, &InitializationError{Folder: folder, Reason: "cannot write config.json", cause: err}
	}

	return cfg, nil
}
