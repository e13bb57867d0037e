package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// diskEntry is the gob payload written per key. Carrying the key inside the
// file lets a read detect hash collisions and partially written files.
type diskEntry struct {
	Key   string
	Value []byte
}

// diskStore is the tier-3 backing store: one file per key under dir, named
// by the SHA-256 of the key so re-runs resolve to the same files.
type diskStore struct {
	dir string
}

func newDiskStore(dir string) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &diskStore{dir: dir}, nil
}

func (d *diskStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".gob")
}

// write persists the entry atomically: encode to a temp file, then rename.
func (d *diskStore) write(key string, value []byte) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(diskEntry{Key: key, Value: value}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	target := d.path(key)
	tmp, err := os.CreateTemp(d.dir, ".cache-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// read loads the entry for key. The second return is false when no file
// exists; a non-nil error means the file exists but is unreadable or
// corrupt, which callers treat as a miss without deleting the file.
func (d *diskStore) read(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry diskEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, false, fmt.Errorf("decode: %w", err)
	}
	if entry.Key != key {
		return nil, false, fmt.Errorf("key mismatch: file holds %q", entry.Key)
	}
	return entry.Value, true, nil
}

func (d *diskStore) remove(key string) error {
	err := os.Remove(d.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *diskStore) has(key string) bool {
	_, err := os.Stat(d.path(key))
	return err == nil
}
