// Package cache deduplicates container-to-recording conversions by
// content address. A recording is keyed by the SHA-256 digest of the
// container's full contents, so identical bytes under different file
// names collapse to one cache entry. Presence with nonzero size is
// the sole validity signal; there is no manifest.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// hashChunkSize is the read buffer for streamed hashing; containers
// are never loaded into memory whole.
const hashChunkSize = 1 << 20

// hashPrefixLen is the number of digest hex characters embedded in
// recording file names. Truncated-prefix collisions are accepted as a
// low-probability trade-off; dedup itself is keyed on the full hash.
const hashPrefixLen = 12

// Converter performs one container-to-recording conversion. The
// implementation must leave a nonzero-size file at destPath on
// success.
type Converter interface {
	Convert(containerPath, destPath string) error
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(containerPath, destPath string) error

func (f ConverterFunc) Convert(containerPath, destPath string) error {
	return f(containerPath, destPath)
}

// ConversionCache resolves containers to converted recordings,
// invoking the converter at most once per distinct content hash.
type ConversionCache struct {
	dir      string
	group    singleflight.Group
	hashMemo *gocache.Cache
}

// New creates a conversion cache rooted at dir. The directory is
// created lazily on the first conversion.
func New(dir string) *ConversionCache {
	return &ConversionCache{
		dir:      dir,
		hashMemo: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// Dir returns the cache directory.
func (c *ConversionCache) Dir() string {
	return c.dir
}

// ContentHash computes the streamed SHA-256 digest of the file at
// path. Digests are memoized per (path, size, mtime); a changed file
// is re-hashed.
func (c *ConversionCache) ContentHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	memoKey := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, found := c.hashMemo.Get(memoKey); found {
		return cached.(string), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.CopyBuffer(digest, file, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	hash := hex.EncodeToString(digest.Sum(nil))
	c.hashMemo.Set(memoKey, hash, gocache.DefaultExpiration)
	return hash, nil
}

// RecordingPath returns the cache path for a container with the given
// content hash: a sanitized human-readable stem plus the first 12
// digest hex characters.
func (c *ConversionCache) RecordingPath(containerPath, hash string) string {
	stem := strings.TrimSuffix(filepath.Base(containerPath), filepath.Ext(containerPath))
	stem = strings.ReplaceAll(stem, " ", "_")
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.rec", stem, hash[:hashPrefixLen]))
}

// validRecording reports whether path holds a well-formed cache
// entry: present and nonzero size. Missing or empty files always
// read as "not cached".
func validRecording(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Resolve returns the recording path for the container's content,
// converting if no valid entry exists. Concurrent resolves for the
// same content share one conversion (singleflight on the full hash);
// converter output lands in a temp file and is renamed into place
// only when complete and nonzero, so a failed conversion never leaves
// an entry that passes the validity check.
func (c *ConversionCache) Resolve(containerPath string, converter Converter) (string, error) {
	hash, err := c.ContentHash(containerPath)
	if err != nil {
		return "", err
	}
	dest := c.RecordingPath(containerPath, hash)
	if validRecording(dest) {
		return dest, nil
	}

	result, err, _ := c.group.Do(hash, func() (any, error) {
		// A concurrent flight may have finished while this caller
		// waited on the group.
		if validRecording(dest) {
			return dest, nil
		}

		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}

		tmp := dest + ".tmp"
		if err := converter.Convert(containerPath, tmp); err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("conversion of %s failed: %w", containerPath, err)
		}
		if !validRecording(tmp) {
			os.Remove(tmp)
			return nil, fmt.Errorf("conversion of %s produced no output", containerPath)
		}
		if err := os.Rename(tmp, dest); err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("publishing recording: %w", err)
		}
		return dest, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
