package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FS stores documents on the local filesystem under
// {root}/{documentType}/{registrationNumber}-{timestamp}-{rand}{ext}.
// References are paths relative to the root.
type FS struct {
	root string
}

// NewFS constructs a filesystem store rooted at dir, creating it if
// needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &FS{root: dir}, nil
}

func (s *FS) Put(_ context.Context, registrationNumber, documentType, originalName string, content io.Reader) (string, error) {
	dir := filepath.Join(s.root, documentType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	name := fmt.Sprintf("%s-%d-%s%s",
		registrationNumber,
		time.Now().UnixMilli(),
		uuid.NewString()[:8],
		sanitizeExt(originalName),
	)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close document: %w", err)
	}
	return filepath.Join(documentType, name), nil
}

func (s *FS) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return f, nil
}

func (s *FS) Remove(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// resolve rejects references that would escape the root.
func (s *FS) resolve(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid document reference %q", ref)
	}
	return filepath.Join(s.root, clean), nil
}

func sanitizeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
