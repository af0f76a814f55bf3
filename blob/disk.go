package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
)

// DefaultMaxSize caps a single upload.
const DefaultMaxSize int64 = 5 << 20

// ErrTooLarge is returned when an upload exceeds the size cap.
var ErrTooLarge = fmt.Errorf("%w: file too large", academia.ErrValidation)

// Store saves uploaded files and returns their public URL.
type Store interface {
	Upload(ctx context.Context, r io.Reader, objectPath string) (string, error)
	Delete(ctx context.Context, objectPath string) error
	// ObjectPathFromURL reports the object path behind a URL this store
	// returned, and false for anything else.
	ObjectPathFromURL(url string) (string, bool)
}

// DiskStore keeps objects under a local directory served at a public
// prefix.
type DiskStore struct {
	root         string
	publicPrefix string
	maxSize      int64
	logger       academia.Logger
}

var _ Store = (*DiskStore)(nil)

// Option configures a DiskStore.
type Option func(*DiskStore)

// WithMaxSize sets the upload size cap in bytes.
func WithMaxSize(n int64) Option {
	return func(d *DiskStore) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l academia.Logger) Option {
	return func(d *DiskStore) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDiskStore creates root if needed.
func NewDiskStore(root, publicPrefix string, opts ...Option) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	_, logger := academia.ResolveLogger("academia.blob", nil, nil)
	d := &DiskStore{
		root:         root,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		maxSize:      DefaultMaxSize,
		logger:       logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Root is the directory objects are written to.
func (d *DiskStore) Root() string {
	return d.root
}

// PublicPrefix is the URL path objects are served under.
func (d *DiskStore) PublicPrefix() string {
	return d.publicPrefix
}

// Upload writes r to objectPath and returns its URL. The write is atomic:
// readers never see a partial file.
func (d *DiskStore) Upload(ctx context.Context, r io.Reader, objectPath string) (string, error) {
	clean, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	target := filepath.Join(d.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(contextReader{ctx: ctx, r: r}, d.maxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if n > d.maxSize {
		return "", ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}

	d.logger.Debug("stored object", "path", clean, "bytes", n)
	return d.publicPrefix + "/" + clean, nil
}

// Delete removes objectPath. Missing objects are not an error.
func (d *DiskStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(d.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ObjectPathFromURL maps a URL returned by Upload back to its object path.
func (d *DiskStore) ObjectPathFromURL(url string) (string, bool) {
	prefix := d.publicPrefix + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// ObjectPath builds a unique path under dir keeping the file extension.
func ObjectPath(dir, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(dir, uuid.NewString()+ext)
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	clean := path.Clean("/" + p)
	if p == "" || clean == "/" || strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: invalid object path %q", academia.ErrValidation, p)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
