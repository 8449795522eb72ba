// Package storage is the content store: package blobs on an afero filesystem
// addressed by slash-separated locators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrBadLocator = errors.New("bad locator")

type Store struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOS roots the store at dir on the local disk, creating it if needed.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	log.Info().Str("module", "adapters.storage").Str("dir", dir).Msg("content store ready")
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func clean(locator string) (string, error) {
	p := path.Clean("/" + locator)
	if p == "/" || strings.Contains(locator, "..") {
		return "", fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	return p, nil
}

// Put writes r to locator. The blob appears only once fully written.
func (s *Store) Put(ctx context.Context, locator string, r io.Reader) (int64, error) {
	p, err := clean(locator)
	if err != nil {
		return 0, err
	}
	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp.Name())
		return 0, err
	}
	if err := s.fs.Rename(tmp.Name(), p); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return 0, fmt.Errorf("rename %s: %w", p, err)
	}
	return n, nil
}

func (s *Store) Open(locator string) (*app.Content, error) {
	p, err := clean(locator)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, apperr.ErrNotFound
	}
	return &app.Content{ReadSeekCloser: f, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *Store) Exists(locator string) bool {
	p, err := clean(locator)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, p)
	return err == nil && ok
}

// Remove deletes the blob and its directory when that becomes empty.
func (s *Store) Remove(locator string) error {
	p, err := clean(locator)
	if err != nil {
		return apperr.ErrNotFound
	}
	if err := s.fs.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", p, err)
	}
	if empty, _ := afero.IsEmpty(s.fs, path.Dir(p)); empty {
		_ = s.fs.Remove(path.Dir(p))
	}
	return nil
}

// ContentType sniffs r and rewinds it.
func ContentType(r io.ReadSeeker) string {
	mt, err := mimetype.DetectReader(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil || err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
