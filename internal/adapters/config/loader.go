// Package config provides the configuration loader for bengal.
package config

import (
	"os"
	"path/filepath"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*FileConfigLoader)(nil)

// FileConfigLoader implements ports.ConfigLoader using a YAML file.
type FileConfigLoader struct {
	Filename string
}

// NewFileConfigLoader returns a loader for the default bengal.yaml.
func NewFileConfigLoader() *FileConfigLoader {
	return &FileConfigLoader{Filename: "bengal.yaml"}
}

// Load reads the configuration from the given build root.
func (l *FileConfigLoader) Load(root string) (*domain.Config, error) {
	path := filepath.Join(root, l.Filename)

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfig, err.Error()), "path", path)
	}

	cfg := &domain.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfig, err.Error()), "path", path)
	}

	cfg.Root = root
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *domain.Config) {
	if cfg.ContentDir == "" {
		cfg.ContentDir = "content"
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "templates"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "public"
	}
	if cfg.Cache.File == "" {
		cfg.Cache.File = filepath.Join(".bengal", "cache.json")
	}
}

func validate(cfg *domain.Config) error {
	if cfg.OutputDir == cfg.ContentDir {
		return zerr.With(zerr.Wrap(domain.ErrConfig, "output_dir must differ from content_dir"),
			"dir", cfg.OutputDir)
	}
	for name, tuning := range cfg.Scheduler {
		if tuning.ContentionPoint < 0 || tuning.BreakEven < 0 {
			return zerr.With(zerr.Wrap(domain.ErrConfig, "scheduler tuning must be non-negative"),
				"phase", name)
		}
	}
	return nil
}
