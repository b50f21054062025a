package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBytes caps uploads at 5 MiB.
const DefaultMaxBytes = 5 << 20

var (
	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("file too large")
	// ErrNotImage is returned when the uploaded bytes are not an image.
	ErrNotImage = errors.New("file is not an image")
)

// Storage keeps uploaded images in a local directory.
type Storage struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewStorage creates the directory if needed and returns a Storage rooted at it.
func NewStorage(dir string, maxBytes int64) (*Storage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *Storage) Dir() string {
	return s.dir
}

// MaxBytes returns the upload size cap.
func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// Save writes src under a generated name derived from originalName and
// returns the stored filename (not the full path).
func (s *Storage) Save(originalName string, src io.Reader) (string, error) {
	br := bufio.NewReaderSize(src, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", ErrNotImage
	}

	f, name, err := s.create(originalName)
	if err != nil {
		return "", err
	}

	n, copyErr := io.Copy(f, io.LimitReader(br, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("write upload: %w", copyErr)
	case n > s.maxBytes:
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", ErrTooLarge
	case closeErr != nil:
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("close upload: %w", closeErr)
	}

	return name, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *Storage) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// create opens a new file named <base><unix millis><ext>, falling back to a
// uuid suffix when that name is already taken.
func (s *Storage) create(originalName string) (*os.File, string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := sanitize(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))

	candidates := []string{
		base + strconv.FormatInt(s.now().UnixMilli(), 10) + ext,
		base + uuid.NewString() + ext,
	}
	for _, name := range candidates {
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create upload: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create upload: no free name for %q", originalName)
}

func sanitize(base string) string {
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
