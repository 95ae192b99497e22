// Package blob stores uploaded proof images and video thumbnails.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when a blob reference has no backing file.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidRef is returned for references that are not produced by Put.
	ErrInvalidRef = errors.New("invalid blob reference")
)

var refPattern = regexp.MustCompile(`^[0-9a-f-]{36}(\.[a-z0-9]{1,8})?$`)

// Info describes a stored blob.
type Info struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// Store holds opaque blobs addressed by reference.
type Store interface {
	Put(ctx context.Context, r io.Reader, ext string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Stat(ctx context.Context, ref string) (*Info, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context) ([]Info, error)
}

// FSStore is a Store on an afero filesystem rooted at dir.
type FSStore struct {
	fs  afero.Fs
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewFSStore creates the directory if needed and returns a store on it. A nil
// now uses time.Now.
func NewFSStore(fs afero.Fs, dir string, now func() time.Time) (*FSStore, error) {
	if now == nil {
		now = time.Now
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir %s: %w", dir, err)
	}
	return &FSStore{fs: fs, dir: dir, now: now}, nil
}

// NewOSStore returns a store under dir on the local disk.
func NewOSStore(dir string) (*FSStore, error) {
	return NewFSStore(afero.NewOsFs(), dir, nil)
}

// NewMemStore returns an in-memory store.
func NewMemStore(now func() time.Time) *FSStore {
	s, _ := NewFSStore(afero.NewMemMapFs(), "/", now)
	return s
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return ""
	}
	return "." + ext
}

func (s *FSStore) path(ref string) (string, error) {
	if !refPattern.MatchString(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return path.Join(s.dir, ref), nil
}

// Put writes r under a fresh reference and stamps its modification time.
func (s *FSStore) Put(ctx context.Context, r io.Reader, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := uuid.NewString() + normalizeExt(ext)
	p, err := s.path(ref)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(p)
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(p)
		return "", fmt.Errorf("closing blob: %w", err)
	}

	now := s.now()
	if err := s.fs.Chtimes(p, now, now); err != nil {
		return "", fmt.Errorf("stamping blob: %w", err)
	}
	return ref, nil
}

// Get reads a blob.
func (s *FSStore) Get(_ context.Context, ref string) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("reading blob %s: %w", ref, err)
	}
	return data, nil
}

// Stat returns metadata for a blob.
func (s *FSStore) Stat(_ context.Context, ref string) (*Info, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	fi, err := s.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("stat blob %s: %w", ref, err)
	}
	return &Info{Ref: ref, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *FSStore) Delete(_ context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob %s: %w", ref, err)
	}
	return nil
}

// List returns every blob in reference order. Files not created by Put are
// skipped.
func (s *FSStore) List(ctx context.Context) ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !refPattern.MatchString(e.Name()) {
			continue
		}
		out = append(out, Info{Ref: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// Expired reports whether a blob last modified at modTime is older than
// retention at now. A blob exactly retention old is kept.
func Expired(now, modTime time.Time, retention time.Duration) bool {
	return now.Sub(modTime) > retention
}
