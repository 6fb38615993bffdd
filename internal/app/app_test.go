package app_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lbliii/bengal/internal/adapters/config"
	"github.com/lbliii/bengal/internal/adapters/fs"
	"github.com/lbliii/bengal/internal/adapters/logger"
	"github.com/lbliii/bengal/internal/adapters/telemetry"
	"github.com/lbliii/bengal/internal/app"
	"github.com/lbliii/bengal/internal/core/domain"
)

func newApp(t *testing.T) *app.App {
	t.Helper()
	log := logger.New()
	log.SetOutput(io.Discard)
	return app.New(config.NewFileConfigLoader(), fs.NewFingerprinter(), log, telemetry.NewNoop())
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, root, "bengal.yaml", "title: Test Site\nbase_url: https://example.com\n")
	write(t, root, "content/index.md", "---\ntitle: Home\ntags: [go]\n---\n# Welcome\n")
	write(t, root, "content/about.md", "---\ntitle: About\n---\n# About\n")
	write(t, root, "templates/partials/nav.html", "<nav>site nav</nav>")
	return root
}

func TestBuildRendersSiteEndToEnd(t *testing.T) {
	root := newSite(t)
	a := newApp(t)

	sum, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)
	// Two pages, the sitemap, and the "go" tag index.
	require.Equal(t, 4, sum.Rebuilt)
	require.Zero(t, sum.Failed)

	home, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(home), "<h1>Welcome</h1>")
	require.Contains(t, string(home), "<nav>site nav</nav>")

	sitemap, err := os.ReadFile(filepath.Join(root, "public", "sitemap.xml"))
	require.NoError(t, err)
	require.Contains(t, string(sitemap), "https://example.com/about/")

	_, err = os.Stat(filepath.Join(root, "public", "tags", "go", "index.html"))
	require.NoError(t, err)
}

func TestBuildIsIncrementalAcrossInvocations(t *testing.T) {
	root := newSite(t)
	a := newApp(t)

	_, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)

	sum, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)
	require.Zero(t, sum.Rebuilt)

	// Editing one page rebuilds it and the sitemap, whose dependency on
	// the page's content hash went stale. The untouched tag index is
	// reused.
	write(t, root, "content/about.md", "---\ntitle: About\n---\n# About, revised\n")
	sum, err = a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Rebuilt)
}

func TestBuildFullFlagRebuildsEverything(t *testing.T) {
	root := newSite(t)
	a := newApp(t)

	_, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)

	sum, err := a.BuildIn(t.Context(), root, app.BuildOptions{Full: true})
	require.NoError(t, err)
	require.Equal(t, 4, sum.Rebuilt)
}

func TestBuildReportsCycleFailure(t *testing.T) {
	root := newSite(t)
	write(t, root, "content/broken.md", "---\ntitle: [oops\n---\nbody\n")
	a := newApp(t)

	sum, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrCycleFailed))
	require.Equal(t, 1, sum.Failed)

	// The healthy pages still rendered.
	_, statErr := os.Stat(filepath.Join(root, "public", "index.html"))
	require.NoError(t, statErr)
}

func TestBuildMissingConfig(t *testing.T) {
	a := newApp(t)
	_, err := a.BuildIn(t.Context(), t.TempDir(), app.BuildOptions{})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfig))
}

func TestClean(t *testing.T) {
	root := newSite(t)
	a := newApp(t)

	_, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, a.Clean(root))

	_, err = os.Stat(filepath.Join(root, "public"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, ".bengal", "cache.json"))
	require.True(t, os.IsNotExist(err))

	// A clean tree builds from scratch again.
	sum, err := a.BuildIn(t.Context(), root, app.BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, sum.Rebuilt)
}
