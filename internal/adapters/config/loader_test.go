package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lbliii/bengal/internal/adapters/config"
	"github.com/lbliii/bengal/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bengal.yaml"), []byte(content), 0o644))
	return root
}

func TestLoadAppliesDefaults(t *testing.T) {
	root := writeConfig(t, "title: My Site\n")

	cfg, err := config.NewFileConfigLoader().Load(root)
	require.NoError(t, err)

	require.Equal(t, root, cfg.Root)
	require.Equal(t, "My Site", cfg.Title)
	require.Equal(t, "content", cfg.ContentDir)
	require.Equal(t, "templates", cfg.TemplatesDir)
	require.Equal(t, "public", cfg.OutputDir)
	require.Equal(t, filepath.Join(".bengal", "cache.json"), cfg.Cache.File)
	require.True(t, cfg.ParallelEnabled())
	require.False(t, cfg.Fast)
}

func TestLoadFullConfig(t *testing.T) {
	root := writeConfig(t, `
title: Docs
base_url: https://docs.example.com
content_dir: pages
output_dir: dist
parallel: false
fast: true
memory_optimized: true
cache:
  file: .cache/site.json
  compress: true
scheduler:
  render:
    break_even: 8
    contention_point: 12
`)

	cfg, err := config.NewFileConfigLoader().Load(root)
	require.NoError(t, err)

	require.Equal(t, "pages", cfg.ContentDir)
	require.Equal(t, "dist", cfg.OutputDir)
	require.False(t, cfg.ParallelEnabled())
	require.True(t, cfg.Fast)
	require.True(t, cfg.MemoryOptimized)
	require.True(t, cfg.Cache.Compress)
	require.Equal(t, ".cache/site.json", cfg.Cache.File)
	require.Equal(t, 8, cfg.Scheduler["render"].BreakEven)
	require.Equal(t, 12, cfg.Scheduler["render"].ContentionPoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.NewFileConfigLoader().Load(t.TempDir())
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoadMalformedYAML(t *testing.T) {
	root := writeConfig(t, "title: [unterminated\n")

	_, err := config.NewFileConfigLoader().Load(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoadRejectsOutputInsideContent(t *testing.T) {
	root := writeConfig(t, "content_dir: site\noutput_dir: site\n")

	_, err := config.NewFileConfigLoader().Load(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoadRejectsNegativeTuning(t *testing.T) {
	root := writeConfig(t, `
scheduler:
  render:
    break_even: -1
`)

	_, err := config.NewFileConfigLoader().Load(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfig))
}
