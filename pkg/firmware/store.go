package firmware

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phosphor-rfid/phosphor/pkg/errors"
)

// Fetcher retrieves a firmware image for a variant into dest when the local
// store has none.
type Fetcher interface {
	Fetch(ctx context.Context, variant, dest string) error
}

// remoteProber is implemented by fetchers that can check the remote side
// before committing to a download.
type remoteProber interface {
	Exists(ctx context.Context, variant string) (bool, error)
}

// Store resolves firmware images under a local directory, one subdirectory
// per hardware variant. A nil fetcher means bundled-only operation.
type Store struct {
	dir     string
	fetcher Fetcher
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, fetcher Fetcher) *Store {
	slog.Info("firmware_store_init", "dir", dir, "remote_fallback", fetcher != nil)
	return &Store{dir: dir, fetcher: fetcher}
}

// ImagePath returns where the image for variant lives (or would live).
func (s *Store) ImagePath(variant string) string {
	return filepath.Join(s.dir, variant, ImageName)
}

// Available reports whether a usable image for variant exists locally or can
// be fetched.
func (s *Store) Available(variant string) bool {
	if err := ValidateVariant(variant); err != nil {
		return false
	}
	if info, err := os.Stat(s.ImagePath(variant)); err == nil {
		return ValidateImageSize(info.Size()) == nil
	}
	return s.fetcher != nil
}

// Ensure guarantees a valid image for variant exists locally, fetching it if
// the store allows.
func (s *Store) Ensure(ctx context.Context, variant string) error {
	if err := ValidateVariant(variant); err != nil {
		return err
	}
	path := s.ImagePath(variant)

	if info, err := os.Stat(path); err == nil {
		if err := ValidateImageSize(info.Size()); err != nil {
			return err
		}
		slog.Info("firmware_image_local", "variant", variant, "size", info.Size())
		return nil
	}

	if s.fetcher == nil {
		slog.Error("firmware_image_missing", "variant", variant, "path", path)
		return errors.Wrapf(os.ErrNotExist, "no bundled image for variant %s", variant)
	}

	// Probe first when the fetcher supports it: a missing remote image
	// gets a clear error instead of a failed download. Probe errors fall
	// through to the fetch, which reports its own failure.
	if p, ok := s.fetcher.(remoteProber); ok {
		if found, err := p.Exists(ctx, variant); err == nil && !found {
			slog.Error("firmware_image_unpublished", "variant", variant)
			return errors.Wrapf(os.ErrNotExist, "no remote image for variant %s", variant)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create variant directory")
	}
	slog.Info("firmware_image_fetch", "variant", variant)
	if err := s.fetcher.Fetch(ctx, variant, path); err != nil {
		return errors.Wrapf(err, "failed to fetch image for variant %s", variant)
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "fetched image missing")
	}
	if err := ValidateImageSize(info.Size()); err != nil {
		os.Remove(path)
		return err
	}
	slog.Info("firmware_image_ready", "variant", variant, "size", info.Size())
	return nil
}
