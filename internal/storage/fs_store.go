package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
)

// FSStore is a filesystem-based ObjectStore:
//
//	.shipwright/
//	  objects/
//	    sha256/
//	      ab/
//	        cd1234...            (content)
//	        cd1234....meta.json  (metadata)
//	  refs/
//	    runs/
//	      <run-id>               (newline separated digests)
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a new filesystem-based object store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	for _, dir := range []string{
		filepath.Join(basePath, "objects"),
		filepath.Join(basePath, "refs", "runs"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &FSStore{basePath: basePath}, nil
}

// Put stores data and returns its canonical digest.
func (fs *FSStore) Put(_ context.Context, data []byte, meta Metadata) (digest.Digest, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dgst := digest.FromBytes(data)
	objectPath := fs.objectPath(dgst)
	now := time.Now()

	if _, err := os.Stat(objectPath); err == nil {
		existing, err := fs.readMetadata(dgst)
		if err == nil {
			existing.RefCount++
			existing.LastAccessed = now
			if err := fs.writeMetadata(dgst, existing); err != nil {
				return dgst, fmt.Errorf("update metadata: %w", err)
			}
		}
		return dgst, nil
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	tmp := objectPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp, objectPath); err != nil {
		return "", fmt.Errorf("commit object: %w", err)
	}

	stored := Metadata{
		Kind:         meta.Kind,
		MediaType:    meta.MediaType,
		CreatedAt:    now,
		LastAccessed: now,
		RefCount:     1,
		Custom:       make(map[string]string, len(meta.Custom)),
	}
	maps.Copy(stored.Custom, meta.Custom)
	if err := fs.writeMetadata(dgst, stored); err != nil {
		return dgst, fmt.Errorf("write metadata: %w", err)
	}
	return dgst, nil
}

// Get retrieves an object by digest, verifying the content still matches.
func (fs *FSStore) Get(_ context.Context, dgst digest.Digest) (*Object, error) {
	if err := dgst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", dgst, err)
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - path is derived from a validated digest
	data, err := os.ReadFile(fs.objectPath(dgst))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Digest: dgst}
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	verifier := dgst.Verifier()
	_, _ = verifier.Write(data)
	if !verifier.Verified() {
		return nil, fmt.Errorf("object %s is corrupt", dgst)
	}

	meta, err := fs.readMetadata(dgst)
	if err != nil {
		meta = Metadata{Custom: map[string]string{}}
	}
	return &Object{Digest: dgst, Size: int64(len(data)), Data: data, Metadata: meta}, nil
}

// Path returns the on-disk location of stored content.
func (fs *FSStore) Path(dgst digest.Digest) string {
	return fs.objectPath(dgst)
}

// Exists checks if content with the given digest is stored.
func (fs *FSStore) Exists(_ context.Context, dgst digest.Digest) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := os.Stat(fs.objectPath(dgst)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Delete removes an object by digest.
func (fs *FSStore) Delete(_ context.Context, dgst digest.Digest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.deleteUnlocked(dgst)
}

// List returns stored digests, sorted, filtered by metadata kind when non-empty.
func (fs *FSStore) List(_ context.Context, kind string) ([]digest.Digest, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.listUnlocked(kind)
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

// GC removes every object not referenced by any run ref and returns how many were removed.
func (fs *FSStore) GC(_ context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	referenced := map[digest.Digest]bool{}
	refsDir := filepath.Join(fs.basePath, "refs", "runs")
	entries, err := os.ReadDir(refsDir)
	if err != nil {
		return 0, fmt.Errorf("read refs: %w", err)
	}
	for _, e := range entries {
		dgsts, err := fs.readRef(filepath.Join(refsDir, e.Name()))
		if err != nil {
			return 0, err
		}
		for _, d := range dgsts {
			referenced[d] = true
		}
	}

	all, err := fs.listUnlocked("")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, d := range all {
		if referenced[d] {
			continue
		}
		if err := fs.deleteUnlocked(d); err != nil && !IsNotFound(err) {
			return removed, fmt.Errorf("delete object %s: %w", d, err)
		}
		removed++
	}
	return removed, nil
}

// AddRunRef records the digests produced by a run so GC keeps them.
func (fs *FSStore) AddRunRef(runID string, dgsts []digest.Digest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	lines := make([]string, 0, len(dgsts))
	for _, d := range dgsts {
		lines = append(lines, d.String())
	}
	return os.WriteFile(filepath.Join(fs.basePath, "refs", "runs", filepath.Base(runID)), []byte(strings.Join(lines, "\n")), 0o600)
}

// RunRef returns the digests recorded for a run, or nil when the run is unknown.
func (fs *FSStore) RunRef(runID string) ([]digest.Digest, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dgsts, err := fs.readRef(filepath.Join(fs.basePath, "refs", "runs", filepath.Base(runID)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return dgsts, err
}

func (fs *FSStore) readRef(path string) ([]digest.Digest, error) {
	// #nosec G304 - ref paths are built from the store root and a base name
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []digest.Digest
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d, err := digest.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("ref %s: %w", filepath.Base(path), err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (fs *FSStore) listUnlocked(kind string) ([]digest.Digest, error) {
	objectsDir := filepath.Join(fs.basePath, "objects")
	var out []digest.Digest

	err := filepath.WalkDir(objectsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta.json") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(objectsDir, path)
		if err != nil {
			return nil
		}
		// rel = <algorithm>/<ab>/<rest>
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		dgst := digest.NewDigestFromEncoded(digest.Algorithm(parts[0]), parts[1]+parts[2])
		if dgst.Validate() != nil {
			return nil
		}
		if kind != "" {
			meta, err := fs.readMetadata(dgst)
			if err != nil || meta.Kind != kind {
				return nil
			}
		}
		out = append(out, dgst)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk objects: %w", err)
	}
	slices.Sort(out)
	return out, nil
}

func (fs *FSStore) deleteUnlocked(dgst digest.Digest) error {
	objectPath := fs.objectPath(dgst)
	if err := os.Remove(objectPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Digest: dgst}
		}
		return fmt.Errorf("delete object: %w", err)
	}
	_ = os.Remove(fs.metadataPath(dgst))
	_ = os.Remove(filepath.Dir(objectPath)) // only succeeds when empty
	return nil
}

func (fs *FSStore) objectPath(dgst digest.Digest) string {
	enc := dgst.Encoded()
	if len(enc) < 2 {
		return filepath.Join(fs.basePath, "objects", dgst.Algorithm().String(), enc)
	}
	return filepath.Join(fs.basePath, "objects", dgst.Algorithm().String(), enc[:2], enc[2:])
}

func (fs *FSStore) metadataPath(dgst digest.Digest) string {
	return fs.objectPath(dgst) + ".meta.json"
}

func (fs *FSStore) readMetadata(dgst digest.Digest) (Metadata, error) {
	// #nosec G304 - path is derived from a digest
	data, err := os.ReadFile(fs.metadataPath(dgst))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

func (fs *FSStore) writeMetadata(dgst digest.Digest, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(fs.metadataPath(dgst), data, 0o600)
}
