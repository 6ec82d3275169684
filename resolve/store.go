package resolve

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"

	"github.com/geoknoesis/semlift-go/errors"
)

// Entry is a cached HTTP resource.
type Entry struct {
	URI          string
	ETag         string
	LastModified string
	FetchedAt    time.Time
	// Expires is the server-declared expiry, zero when unknown or ignored.
	Expires time.Time
	Data    []byte
}

// entryMeta is the on-disk form of an Entry without its bytes. Size and
// Checksum let readers detect a data file that belongs to another write.
type entryMeta struct {
	URI          string `json:"uri"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	FetchedAt    int64  `json:"fetchedAt"`
	Expires      int64  `json:"expires,omitempty"`
	Size         int    `json:"size"`
	Checksum     string `json:"checksum"`
}

// diskStore keeps entries as <key>.data and <key>.meta pairs.
type diskStore struct {
	dir string
}

func cacheKey(uri string) string {
	sum := blake3.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func (s *diskStore) paths(uri string) (data, meta, lock string) {
	base := filepath.Join(s.dir, cacheKey(uri))
	return base + ".data", base + ".meta", base + ".lock"
}

// read returns the entry for uri. A missing, unreadable or mismatched pair is
// reported as absent rather than as an error.
func (s *diskStore) read(uri string) (*Entry, bool) {
	dataPath, metaPath, _ := s.paths(uri)
	rawMeta, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, false
	}
	var meta entryMeta
	if err := json.Unmarshal(rawMeta, &meta); err != nil || meta.URI != uri {
		return nil, false
	}
	data, err := os.ReadFile(dataPath)
	if err != nil || len(data) != meta.Size || checksum(data) != meta.Checksum {
		return nil, false
	}
	entry := &Entry{
		URI:          meta.URI,
		ETag:         meta.ETag,
		LastModified: meta.LastModified,
		FetchedAt:    time.UnixMilli(meta.FetchedAt),
		Data:         data,
	}
	if meta.Expires > 0 {
		entry.Expires = time.UnixMilli(meta.Expires)
	}
	return entry, true
}

// write persists data then metadata under the per-key lock.
func (s *diskStore) write(ctx context.Context, e *Entry) error {
	return s.locked(ctx, e.URI, func(dataPath, metaPath string) error {
		if err := writeAtomic(dataPath, e.Data); err != nil {
			return err
		}
		return writeAtomic(metaPath, encodeMeta(e))
	})
}

// touch rewrites only the metadata of an existing entry.
func (s *diskStore) touch(ctx context.Context, e *Entry) error {
	return s.locked(ctx, e.URI, func(_, metaPath string) error {
		return writeAtomic(metaPath, encodeMeta(e))
	})
}

func (s *diskStore) locked(ctx context.Context, uri string, fn func(dataPath, metaPath string) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create cache directory %s", s.dir)
	}
	dataPath, metaPath, lockPath := s.paths(uri)
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return errors.Wrapf(err, "lock cache entry %s", uri)
	}
	if !locked {
		return errors.Newf("lock cache entry %s: not acquired", uri)
	}
	defer func() { _ = lock.Unlock() }()
	return fn(dataPath, metaPath)
}

func encodeMeta(e *Entry) []byte {
	meta := entryMeta{
		URI:          e.URI,
		ETag:         e.ETag,
		LastModified: e.LastModified,
		FetchedAt:    e.FetchedAt.UnixMilli(),
		Size:         len(e.Data),
		Checksum:     checksum(e.Data),
	}
	if !e.Expires.IsZero() {
		meta.Expires = e.Expires.UnixMilli()
	}
	data, _ := json.Marshal(meta)
	return data
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp cache file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp cache file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp cache file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "replace cache file")
	}
	return nil
}
