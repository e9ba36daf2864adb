package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize bounds uploads at 10MB
const MaxFileSize = 10 << 20

// URLPrefix is the path files are served under, relative to the API origin
const URLPrefix = "/media"

var (
	ErrFileTooLarge   = errors.New("file exceeds the maximum allowed size")
	ErrDisallowedType = errors.New("file type is not allowed")
)

// allowedTypes is the fixed allow-list for uploaded documents
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// SavedFile describes a stored upload
type SavedFile struct {
	Path string // URL path the file is served from, e.g. /media/<id>.pdf
	Name string // original client file name
}

// FileStore saves uploaded documents and removes replaced ones
type FileStore interface {
	Save(fh *multipart.FileHeader) (SavedFile, error)
	Remove(urlPath string) error
}

// DiskStore writes uploads to a local directory served under /media.
// Type detection sniffs content, not the client-supplied extension.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory uploads are written to
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(fh *multipart.FileHeader) (SavedFile, error) {
	if fh.Size > MaxFileSize {
		return SavedFile{}, ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to detect file type: %w", err)
	}

	ext, ok := allowedTypes[mtype.String()]
	if !ok {
		return SavedFile{}, fmt.Errorf("%w: %s", ErrDisallowedType, mtype.String())
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return SavedFile{}, fmt.Errorf("failed to rewind upload: %w", err)
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return SavedFile{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SavedFile{
		Path: URLPrefix + "/" + name,
		Name: fh.Filename,
	}, nil
}

// Remove deletes a previously saved file by its URL path. Missing files
// are not an error, the reference is gone either way.
func (s *DiskStore) Remove(urlPath string) error {
	name := filepath.Base(urlPath)
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
