// Package archive defines where exported backup documents are kept outside
// the local database: a directory on disk or an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Archive errors.
var (
	ErrNotFound   = errors.New("archived backup not found")
	ErrExists     = errors.New("archived backup already exists")
	ErrInvalidKey = errors.New("invalid archive key")
)

// Info describes one archived backup.
type Info struct {
	LastModified time.Time
	Key          string
	Size         int64
}

// Store keeps backup documents by key. Keys are slash separated and never
// overwritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

// Driver names accepted in configuration.
const (
	DriverFilesystem = "fs"
	DriverS3         = "s3"
)

// CleanKey validates a key and returns its normalized form. Keys may not be
// empty, absolute, or climb out of the archive root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// OwnerKey returns the key under which a backup file of ownerID is archived.
func OwnerKey(ownerID, fileName string) string {
	return path.Join(ownerID, fileName)
}

// maxKeySuffix bounds the numbered keys PutNext tries.
const maxKeySuffix = 100

// PutNext stores data under key, or under the first free numbered variant
// (name-2.json, name-3.json, ...) when key is already taken.
func PutNext(ctx context.Context, store Store, key string, data []byte) (Info, error) {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	candidate := key
	for n := 2; ; n++ {
		info, err := store.Put(ctx, candidate, bytes.NewReader(data))
		if !errors.Is(err, ErrExists) {
			return info, err
		}
		if n > maxKeySuffix {
			return Info{}, err
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
}
