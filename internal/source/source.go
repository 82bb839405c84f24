package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfviewer/internal/filetype"
)

// Fatal source validation errors. All of them fail the whole document before
// any placeholder exists.
var (
	ErrTooSmall        = errors.New("source below minimum size")
	ErrUnsupportedType = errors.New("unsupported source type")
	ErrEmptyRef        = errors.New("empty source reference")
)

// DefaultMinBytes is applied when Options.MinBytes is not positive.
const DefaultMinBytes int64 = 5120

// Result is a validated document source.
type Result struct {
	Data []byte
	Name string
	Size int64
}

// Options configures a Loader.
type Options struct {
	MinBytes   int64
	HTTPClient *http.Client
	S3         S3Options
}

// Loader fetches and validates raw document bytes from a source reference.
// Supported references: http(s):// URLs, s3://bucket/key, file:// paths,
// bare filesystem paths, and in-memory bytes via FromBytes.
type Loader struct {
	minBytes int64
	http     *http.Client
	s3opts   S3Options
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.MinBytes <= 0 {
		opts.MinBytes = DefaultMinBytes
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Loader{minBytes: opts.MinBytes, http: hc, s3opts: opts.S3}
}

// MinBytes returns the configured minimum source size.
func (l *Loader) MinBytes() int64 { return l.minBytes }

// Load fetches the referenced source and validates it. A non-empty password
// means the stored object is expected to carry the encrypted envelope.
func (l *Loader) Load(ctx context.Context, ref, password string) (*Result, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, ErrEmptyRef
	}

	var (
		data []byte
		name string
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		data, name, err = l.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		data, name, err = l.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		data, name, err = l.fetchFile(strings.TrimPrefix(ref, "file://"))
	default:
		data, name, err = l.fetchFile(ref)
	}
	if err != nil {
		return nil, err
	}
	return l.finish(name, data, password)
}

// FromBytes validates in-memory bytes (the upload path).
func (l *Loader) FromBytes(name string, data []byte, password string) (*Result, error) {
	return l.finish(name, data, password)
}

// finish decrypts (when a password is supplied) and validates size and type.
func (l *Loader) finish(name string, data []byte, password string) (*Result, error) {
	if password != "" {
		plain, err := decryptEnvelope(data, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt source: %w", err)
		}
		data = plain
	}

	size := int64(len(data))
	if size < l.minBytes {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTooSmall, size, l.minBytes)
	}

	info := filetype.Detect(data)
	if !info.Supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, info.MIMEType)
	}

	log.Debug().Str("name", name).Int64("size", size).Str("mime", info.MIMEType).Msg("source validated")
	return &Result{Data: data, Name: name, Size: size}, nil
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	// Length hint lets us reject undersized sources before reading the body.
	if resp.ContentLength >= 0 && resp.ContentLength < l.minBytes {
		return nil, "", fmt.Errorf("%w: length hint %d bytes, need at least %d", ErrTooSmall, resp.ContentLength, l.minBytes)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return data, filepath.Base(req.URL.Path), nil
}

func (l *Loader) fetchFile(path string) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() < l.minBytes {
		return nil, "", fmt.Errorf("%w: %d bytes, need at least %d", ErrTooSmall, fi.Size(), l.minBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, filepath.Base(path), nil
}
