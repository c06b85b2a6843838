// Package storage keeps complaint attachments on the local filesystem.
package storage

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"metronix/internal/config"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// AttachmentStore persists attachment bytes and returns the public reference URL
type AttachmentStore interface {
	Store(ctx context.Context, data []byte, ext string) (string, error)
	MaxBytes() int64
}

// LocalStore writes attachments under a directory and exposes them under a URL prefix
type LocalStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

// Ensure LocalStore implements AttachmentStore
var _ AttachmentStore = (*LocalStore)(nil)

// NewLocalStore creates the upload directory if needed
func NewLocalStore(cfg config.UploadsConfig) (*LocalStore, error) {
	if cfg.Dir == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "upload directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageFailed, "failed to create upload directory %s: %v", cfg.Dir, err)
	}

	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = config.MaxAttachmentBytes
	}
	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix = "/uploads/complaints"
	}

	return &LocalStore{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimRight(prefix, "/"),
		maxBytes:  maxBytes,
	}, nil
}

// Dir is the directory files are written to
func (s *LocalStore) Dir() string { return s.dir }

// MaxBytes is the largest attachment the store accepts
func (s *LocalStore) MaxBytes() int64 { return s.maxBytes }

// Store writes data under a fresh uuid name and returns "<prefix>/<uuid><ext>".
// The file is written to a temporary name first and renamed into place.
func (s *LocalStore) Store(ctx context.Context, data []byte, ext string) (ref string, err error) {
	_, span := observability.TraceFunction(ctx, "storage", "store_attachment",
		attribute.Int("attachment.size", len(data)),
	)
	defer observability.FinishSpan(span, &err)

	if int64(len(data)) > s.maxBytes {
		return "", contextutils.WrapErrorf(contextutils.ErrFileTooLarge,
			"attachment is %d bytes, limit is %d bytes", len(data), s.maxBytes)
	}

	name := uuid.NewString() + NormalizeExt(ext)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageFailed, "failed to create attachment: %v", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", contextutils.WrapErrorf(contextutils.ErrStorageFailed, "failed to write attachment: %v", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", contextutils.WrapErrorf(contextutils.ErrStorageFailed, "failed to close attachment: %v", err)
	}
	if err = os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return "", contextutils.WrapErrorf(contextutils.ErrStorageFailed, "failed to store attachment: %v", err)
	}

	span.SetAttributes(attribute.String("attachment.name", name))
	return path.Join(s.urlPrefix, name), nil
}

// imageTypes maps the accepted attachment extensions to the content type the
// bytes must sniff as.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsImageExt reports whether ext (already normalized) is an accepted image extension
func IsImageExt(ext string) bool {
	_, ok := imageTypes[ext]
	return ok
}

// ValidateImage rejects attachments that are not images. Both the extension and
// the sniffed content must agree, so markup renamed to .png is refused.
func ValidateImage(filename string, data []byte) error {
	ext := NormalizeExt(filepath.Ext(filename))
	want, ok := imageTypes[ext]
	if !ok {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"file %s is not a supported image (jpg, png, gif, webp)", filename)
	}
	if got := http.DetectContentType(data); got != want {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"file %s content is %s, expected %s", filename, got, want)
	}
	return nil
}

// NormalizeExt lower-cases an extension and drops anything that is not a short
// alphanumeric suffix, so client-supplied names cannot escape the upload dir.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}
