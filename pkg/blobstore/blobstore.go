package blobstore

import (
	"context"
	"errors"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when deleting an object that does not exist
var ErrNotFound = errors.New("blob not found")

// Object describes a stored file
type Object struct {
	URL          string
	PublicID     string
	Format       string
	ResourceType string
}

// Store uploads local files and deletes stored ones
type Store interface {
	Upload(ctx context.Context, localPath, folder, resourceType string) (Object, error)
	Delete(ctx context.Context, publicID, resourceType string) error
}

// formatOf returns the lowercased extension without the dot
func formatOf(localPath string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(localPath), "."))
}

// contentTypeOf guesses a content type from the file format
func contentTypeOf(format string) string {
	if ct := mime.TypeByExtension("." + format); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// newPublicID builds a unique object key under folder
func newPublicID(folder, format string) string {
	name := uuid.NewString()
	if format != "" {
		name += "." + format
	}
	return path.Join(strings.Trim(folder, "/"), name)
}
