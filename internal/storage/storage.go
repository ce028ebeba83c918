// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage keeps uploaded event images on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxSize is the largest accepted upload.
const DefaultMaxSize = 5 << 20

// Upload errors.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidName     = errors.New("invalid file name")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// FileStorage stores and removes uploaded assets.
type FileStorage interface {
	Save(r io.Reader, originalName string) (string, error)
	Delete(name string) error
}

// Transformer rewrites an accepted image before it is stored. It returns the
// new content and the extension to store it under.
type Transformer interface {
	Transform(data []byte) ([]byte, string, error)
}

// Local stores files flat in one directory.
type Local struct {
	dir       string
	maxSize   int64
	transform Transformer
}

// Option configures Local.
type Option func(*Local)

// WithTransformer runs every upload through t before it is written.
func WithTransformer(t Transformer) Option {
	return func(l *Local) { l.transform = t }
}

// NewLocal creates the directory if needed. maxSize <= 0 uses DefaultMaxSize.
func NewLocal(dir string, maxSize int64, opts ...Option) (*Local, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	l := &Local{dir: dir, maxSize: maxSize}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the upload directory.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes r under a random name and returns that name. Only JPEG, PNG,
// GIF and WebP images are accepted, checked by extension and by content.
func (l *Local) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return "", ErrTooLarge
	}
	if !allowedTypes[mimetype.Detect(data).String()] {
		return "", ErrUnsupportedType
	}

	if l.transform != nil {
		out, newExt, err := l.transform.Transform(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
		data, ext = out, newExt
	}

	name := uuid.NewString() + ext
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}

	return name, nil
}

// Delete removes a stored file. A file that is already gone is not an error.
func (l *Local) Delete(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// resolve maps a stored name to its path, refusing anything that is not a
// bare file name inside the upload directory.
func (l *Local) resolve(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", ErrInvalidName
	}

	absDir, err := filepath.Abs(l.dir)
	if err != nil {
		return "", fmt.Errorf("invalid upload directory: %w", err)
	}
	path := filepath.Join(absDir, base)
	if !strings.HasPrefix(path, absDir+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	return path, nil
}
