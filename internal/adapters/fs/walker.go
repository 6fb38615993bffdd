// Package fs provides file system adapters for discovering and
// fingerprinting source artifacts.
package fs

import (
	"errors"
	iofs "io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceWalker = (*Walker)(nil)

// ConfigFileName is the site configuration file at the build root. It is
// discovered like any other source so that editing it shows up in the
// change set with Kind SourceConfig.
const ConfigFileName = "bengal.yaml"

// Walker discovers source artifacts under the configured roots.
type Walker struct {
	cfg *domain.Config
}

// NewWalker creates a Walker for the given configuration.
func NewWalker(cfg *domain.Config) *Walker {
	return &Walker{cfg: cfg}
}

type root struct {
	dir  string
	kind domain.SourceKind
}

func (w *Walker) roots() []root {
	return []root{
		{w.cfg.ContentDir, domain.SourceContent},
		{w.cfg.TemplatesDir, domain.SourceTemplate},
		{w.cfg.DataDir, domain.SourceData},
		{w.cfg.AssetsDir, domain.SourceAsset},
	}
}

// Walk returns every source file under the configured roots in lexical
// order, plus the config file itself. Missing roots are skipped: a site
// without a data directory is fine.
func (w *Walker) Walk() ([]ports.DiscoveredSource, error) {
	var found []ports.DiscoveredSource

	cfgPath := filepath.Join(w.cfg.Root, ConfigFileName)
	found = append(found, ports.DiscoveredSource{
		ID:   domain.NewInternedString(ConfigFileName),
		Kind: domain.SourceConfig,
		Path: cfgPath,
	})

	for _, r := range w.roots() {
		if r.dir == "" {
			continue
		}
		abs := filepath.Join(w.cfg.Root, r.dir)
		err := filepath.WalkDir(abs, func(path string, d iofs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if d.Name() == ".git" || strings.HasPrefix(d.Name(), "_") {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(w.cfg.Root, path)
			if relErr != nil {
				return zerr.With(zerr.Wrap(relErr, "failed to relativize path"), "path", path)
			}
			found = append(found, ports.DiscoveredSource{
				ID:   domain.NewInternedString(filepath.ToSlash(rel)),
				Kind: w.classify(r.kind, rel),
				Path: path,
			})
			return nil
		})
		if err != nil && !isNotExist(err) {
			return nil, zerr.With(zerr.Wrap(err, "failed to walk source root"), "root", abs)
		}
	}

	slices.SortFunc(found, func(a, b ports.DiscoveredSource) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return found, nil
}

// classify refines template files into partials by convention: anything
// under a "partials" directory inside the templates root.
func (w *Walker) classify(kind domain.SourceKind, rel string) domain.SourceKind {
	if kind == domain.SourceTemplate {
		for part := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
			if part == "partials" {
				return domain.SourcePartial
			}
		}
	}
	return kind
}

func isNotExist(err error) bool {
	return errors.Is(err, iofs.ErrNotExist)
}
