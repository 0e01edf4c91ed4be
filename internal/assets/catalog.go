// Package assets resolves named external files that models reference
// with asset(), from the local disk or an S3-compatible object store.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Fetcher opens the content at an asset location.
type Fetcher interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// UnknownAssetError is returned for names missing from the catalog.
type UnknownAssetError struct {
	Name string
}

func (e *UnknownAssetError) Error() string        { return fmt.Sprintf("unknown asset %q", e.Name) }
func (e *UnknownAssetError) Kind() core.ErrorKind { return core.ErrUnknownAsset }

// Catalog maps asset names to their definitions.
type Catalog struct {
	assets  map[string]core.Asset
	fetcher Fetcher
}

// NewCatalog builds a catalog. A nil fetcher reads local paths relative
// to the working directory.
func NewCatalog(list []core.Asset, fetcher Fetcher) *Catalog {
	if fetcher == nil {
		fetcher = &LocalFetcher{}
	}
	c := &Catalog{assets: make(map[string]core.Asset, len(list)), fetcher: fetcher}
	for _, a := range list {
		c.assets[a.Name] = a
	}
	return c
}

// Lookup returns the named asset.
func (c *Catalog) Lookup(name string) (core.Asset, error) {
	if c != nil {
		if a, ok := c.assets[name]; ok {
			return a, nil
		}
	}
	return core.Asset{}, &UnknownAssetError{Name: name}
}

// Names returns the asset names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.assets))
	for n := range c.assets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ReadText returns the full content of an asset.
func (c *Catalog) ReadText(ctx context.Context, a core.Asset) (string, error) {
	rc, err := c.fetcher.Open(ctx, a.Location)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", a.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", a.Name, err)
	}
	return string(data), nil
}

// Stage copies an asset into dir and returns the local path. Local
// assets are copied too, so the stage directory can be removed as a unit.
func (c *Catalog) Stage(ctx context.Context, a core.Asset, dir string) (string, error) {
	rc, err := c.fetcher.Open(ctx, a.Location)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", a.Name, err)
	}
	defer func() { _ = rc.Close() }()

	ext := filepath.Ext(strings.TrimSuffix(a.Location, "/"))
	path := filepath.Join(dir, ident.Sanitize(a.Name)+ext)
	f, err := os.Create(path) //nolint:gosec // G304: path is built from a sanitized name
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("stage asset %s: %w", a.Name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// TempTableName derives the temporary relation name for a tabular
// asset: tmp_<first 8 chars of runID>_<sanitized name>. A name that
// sanitizing changed also gets 8 hex chars of its name-based UUID, so
// "a-b" and "a_b" stay apart. The result is validated as a whole.
func TempTableName(runID, assetName string) (string, error) {
	short := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, runID)
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		return "", fmt.Errorf("run id %q has no usable characters", runID)
	}
	name := ident.Sanitize(assetName)
	if name != assetName {
		name += "_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(assetName)).String()[:8]
	}
	return ident.Join("tmp", short, name)
}

// TempNameConflictError reports two assets of one run that map to the
// same temporary table.
type TempNameConflictError struct {
	Table string
	Asset string
	Other string
}

func (e *TempNameConflictError) Error() string {
	return fmt.Sprintf("asset %q and asset %q both map to temporary table %s", e.Asset, e.Other, e.Table)
}

// Kind implements core.KindedError.
func (e *TempNameConflictError) Kind() core.ErrorKind { return core.ErrMaterialization }

// LocalFetcher reads files from disk. Relative locations resolve
// against BaseDir.
type LocalFetcher struct {
	BaseDir string
}

// Open implements Fetcher.
func (f *LocalFetcher) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(location, "file://")
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}
	file, err := os.Open(path) //nolint:gosec // G304: asset locations come from the project's assets file
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", location, fs.ErrNotExist)
	}
	return file, err
}

// Router dispatches s3:// locations to an object store fetcher and
// everything else to the local fetcher.
type Router struct {
	Local  Fetcher
	Object Fetcher
}

// Open implements Fetcher.
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "s3://") {
		if r.Object == nil {
			return nil, fmt.Errorf("%s: no object store configured", location)
		}
		return r.Object.Open(ctx, location)
	}
	return r.Local.Open(ctx, location)
}
