package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
)

// Source provides lesson content.
type Source interface {
	Lessons(ctx context.Context) ([]model.Lesson, error)
}

// Open builds a validated catalog from a source.
func Open(ctx context.Context, src Source) (*Catalog, error) {
	lessons, err := src.Lessons(ctx)
	if err != nil {
		return nil, err
	}
	return New(lessons)
}

// BuiltinSource serves the embedded catalog.
type BuiltinSource struct{}

func (BuiltinSource) Lessons(context.Context) ([]model.Lesson, error) {
	return Decode(bytes.NewReader(builtin))
}

// FileSource reads a catalog file from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Lessons(context.Context) ([]model.Lesson, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f)
}

// HTTPSource downloads a catalog. The last good download is kept in CacheDir
// and served when the remote is unreachable.
type HTTPSource struct {
	URL      string
	CacheDir string
	Client   *http.Client
}

const cacheFile = "catalog.toml"

func (s HTTPSource) Lessons(ctx context.Context) ([]model.Lesson, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("catalog url is required")
	}
	body, err := s.fetch(ctx)
	if err != nil {
		cached, cacheErr := s.readCache()
		if cacheErr != nil {
			return nil, err
		}
		logx.Errf("catalog download failed, using cached copy: %v\n", err)
		return Decode(bytes.NewReader(cached))
	}

	lessons, err := Decode(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if err := s.writeCache(body); err != nil {
		logx.Errf("failed to cache catalog: %v\n", err)
	}
	return lessons, nil
}

func (s HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected catalog status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return body, nil
}

func (s HTTPSource) readCache() ([]byte, error) {
	if s.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(filepath.Join(s.CacheDir, cacheFile))
}

func (s HTTPSource) writeCache(body []byte) error {
	if s.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.CacheDir, "catalog-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Errf("failed to remove temp catalog: %v\n", err)
		}
	}()
	if _, err := tmp.Write(body); err != nil {
		return fmt.Errorf("failed to write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp catalog: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.CacheDir, cacheFile)); err != nil {
		return fmt.Errorf("failed to move catalog into cache: %w", err)
	}
	return nil
}
