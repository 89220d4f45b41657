package firmware

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateVariant(t *testing.T) {
	valid := []string{"rdv4", "rdv4-bt", "generic", "generic-256"}
	for _, v := range valid {
		if err := ValidateVariant(v); err != nil {
			t.Errorf("unexpected error for variant %s: %v", v, err)
		}
	}

	invalid := []string{"", "rdv5", "RDV4", "generic-512", "../rdv4", "rdv4/.."}
	for _, v := range invalid {
		if err := ValidateVariant(v); err == nil {
			t.Errorf("expected error for variant %q", v)
		}
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		port      string
		shouldErr bool
	}{
		{"/dev/ttyACM0", false},
		{"/dev/ttyUSB1", false},
		{"/dev/cu.usbmodem14101", false},
		{"COM3", false},
		{"COM12", false},
		{"", true},
		{"ttyACM0", true},
		{"/dev/ttyACM0; rm -rf /", true},
		{"/dev/../etc/passwd", true},
		{"COM", true},
	}
	for _, tt := range tests {
		err := ValidatePort(tt.port)
		if tt.shouldErr && err == nil {
			t.Errorf("expected error for port %q", tt.port)
		}
		if !tt.shouldErr && err != nil {
			t.Errorf("unexpected error for port %q: %v", tt.port, err)
		}
	}
}

func TestValidateImageSize(t *testing.T) {
	if err := ValidateImageSize(512 * 1024); err != nil {
		t.Errorf("unexpected error for valid size: %v", err)
	}
	if err := ValidateImageSize(0); err == nil {
		t.Error("expected error for empty image")
	}
	if err := ValidateImageSize(MaxImageSize + 1); err == nil {
		t.Error("expected error for oversize image")
	}
}

func writeImage(t *testing.T, dir, variant string, size int) {
	t.Helper()
	variantDir := filepath.Join(dir, variant)
	if err := os.MkdirAll(variantDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(variantDir, ImageName), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStoreAvailable(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "rdv4", 1024)

	s := NewStore(dir, nil)
	if !s.Available("rdv4") {
		t.Error("expected rdv4 image to be available")
	}
	if s.Available("generic") {
		t.Error("expected generic image to be unavailable without fetcher")
	}
	if s.Available("bogus") {
		t.Error("invalid variant must never be available")
	}
}

type fakeFetcher struct {
	size    int
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, variant, dest string) error {
	if f.err != nil {
		return f.err
	}
	f.fetched = append(f.fetched, variant)
	return os.WriteFile(dest, make([]byte, f.size), 0o644)
}

func TestStoreEnsureLocal(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "rdv4", 2048)

	fetcher := &fakeFetcher{size: 1024}
	s := NewStore(dir, fetcher)
	if err := s.Ensure(context.Background(), "rdv4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Error("local image must not trigger a fetch")
	}
}

func TestStoreEnsureFetches(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{size: 1024}
	s := NewStore(dir, fetcher)

	if err := s.Ensure(context.Background(), "generic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "generic" {
		t.Errorf("expected one fetch of generic, got %v", fetcher.fetched)
	}
	if _, err := os.Stat(s.ImagePath("generic")); err != nil {
		t.Errorf("fetched image missing: %v", err)
	}
}

func TestStoreEnsureFailsWithoutImage(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if err := s.Ensure(context.Background(), "rdv4"); err == nil {
		t.Error("expected error for missing image without fetcher")
	}
	if err := s.Ensure(context.Background(), "bogus"); err == nil {
		t.Error("expected error for invalid variant")
	}
}

func TestStoreEnsureFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("bucket unreachable")}
	s := NewStore(t.TempDir(), fetcher)
	if err := s.Ensure(context.Background(), "rdv4"); err == nil {
		t.Error("expected fetch error to propagate")
	}
}

type probingFetcher struct {
	fakeFetcher
	exists   bool
	probeErr error
	probed   []string
}

func (f *probingFetcher) Exists(_ context.Context, variant string) (bool, error) {
	f.probed = append(f.probed, variant)
	return f.exists, f.probeErr
}

func TestStoreEnsureProbesRemote(t *testing.T) {
	fetcher := &probingFetcher{fakeFetcher: fakeFetcher{size: 1024}, exists: true}
	s := NewStore(t.TempDir(), fetcher)

	if err := s.Ensure(context.Background(), "generic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetcher.probed) != 1 || fetcher.probed[0] != "generic" {
		t.Errorf("expected one probe of generic, got %v", fetcher.probed)
	}
	if len(fetcher.fetched) != 1 {
		t.Errorf("expected one fetch after positive probe, got %v", fetcher.fetched)
	}
}

func TestStoreEnsureSkipsFetchWhenUnpublished(t *testing.T) {
	fetcher := &probingFetcher{fakeFetcher: fakeFetcher{size: 1024}, exists: false}
	s := NewStore(t.TempDir(), fetcher)

	if err := s.Ensure(context.Background(), "rdv4"); err == nil {
		t.Fatal("expected error for unpublished variant")
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("no fetch expected after negative probe, got %v", fetcher.fetched)
	}
}

func TestStoreEnsureFetchesDespiteProbeError(t *testing.T) {
	fetcher := &probingFetcher{
		fakeFetcher: fakeFetcher{size: 1024},
		probeErr:    fmt.Errorf("head request throttled"),
	}
	s := NewStore(t.TempDir(), fetcher)

	if err := s.Ensure(context.Background(), "generic"); err != nil {
		t.Fatalf("probe failure must not block the fetch: %v", err)
	}
	if len(fetcher.fetched) != 1 {
		t.Errorf("expected one fetch, got %v", fetcher.fetched)
	}
}

func TestStoreEnsureRejectsEmptyFetchedImage(t *testing.T) {
	fetcher := &fakeFetcher{size: 0}
	s := NewStore(t.TempDir(), fetcher)
	if err := s.Ensure(context.Background(), "rdv4"); err == nil {
		t.Error("expected error for empty fetched image")
	}
	if _, err := os.Stat(s.ImagePath("rdv4")); !os.IsNotExist(err) {
		t.Error("invalid fetched image must be removed")
	}
}
