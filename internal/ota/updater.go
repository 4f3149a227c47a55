package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Updater installs a firmware image.
type Updater interface {
	Apply(ctx context.Context, source string) error
}

// HTTPUpdater downloads an image and renames it over Target.
//
// A source ending in "/" is a directory listing; the newest "<Name>_vX.Y"
// entry in it is downloaded.
type HTTPUpdater struct {
	Client *http.Client
	Target string
	Name   string
}

// Apply implements Updater.
func (u *HTTPUpdater) Apply(ctx context.Context, source string) error {
	if strings.HasSuffix(source, "/") {
		listing, err := u.get(ctx, source)
		if err != nil {
			return fmt.Errorf("fetch listing: %w", err)
		}
		image, v, ok := LatestImage(string(listing), u.Name)
		if !ok {
			return fmt.Errorf("no %s images in %s", u.Name, source)
		}
		log.Info().Str("component", "ota").Str("image", image).Str("version", v.String()).Msg("selected image")
		source += image
	}

	log.Info().Str("component", "ota").Str("url", source).Msg("downloading")
	body, err := u.get(ctx, source)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("download: empty image")
	}

	dir := filepath.Dir(u.Target)
	tmp, err := os.CreateTemp(dir, ".envnode-update-*")
	if err != nil {
		return fmt.Errorf("stage image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("stage image: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return fmt.Errorf("stage image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage image: %w", err)
	}
	if err := os.Rename(tmp.Name(), u.Target); err != nil {
		return fmt.Errorf("install image: %w", err)
	}
	log.Info().Str("component", "ota").Str("target", u.Target).Int("bytes", len(body)).Msg("image installed")
	return nil
}

func (u *HTTPUpdater) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FakeUpdater records Apply calls.
type FakeUpdater struct {
	Sources  []string
	ApplyErr error
}

// Apply implements Updater.
func (f *FakeUpdater) Apply(_ context.Context, source string) error {
	f.Sources = append(f.Sources, source)
	return f.ApplyErr
}
