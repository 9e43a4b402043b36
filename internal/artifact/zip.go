package artifact

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// epoch is stamped on every entry so archives depend only on their content.
var epoch = time.Date(1980, time.February, 1, 0, 0, 0, 0, time.UTC)

// Entry maps an archive name to a file on disk.
type Entry struct {
	Name string // slash-separated name inside the archive
	Path string
}

// Filter decides whether a file (relative, slash-separated) is included.
type Filter func(rel string) bool

// CollectEntries walks roots in order and returns the files accepted by filter,
// sorted by archive name. Missing roots are skipped. When two roots contain the
// same relative path the earlier root wins.
func CollectEntries(roots []string, filter Filter) ([]Entry, error) {
	seen := map[string]bool{}
	var entries []Entry
	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] || (filter != nil && !filter(rel)) {
				return nil
			}
			seen[rel] = true
			entries = append(entries, Entry{Name: rel, Path: path})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Zip writes entries as a reproducible archive: entries in name order with
// fixed timestamps and permissions. Identical inputs produce identical bytes.
func Zip(w io.Writer, entries []Entry) error {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })

	zw := zip.NewWriter(w)
	for _, e := range sorted {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: epoch}
		hdr.SetMode(0o644)
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip header %s: %w", e.Name, err)
		}
		if err := copyFile(fw, e.Path); err != nil {
			return fmt.Errorf("zip %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

// ZipBytes is Zip into memory.
func ZipBytes(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Zip(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyFile(w io.Writer, path string) error {
	// #nosec G304 - paths come from walking declared module directories
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ExtensionFilter accepts files whose extension is in include (all when empty)
// and not in exclude. Comparison is case-insensitive.
func ExtensionFilter(include, exclude []string) Filter {
	norm := func(list []string) map[string]bool {
		out := make(map[string]bool, len(list))
		for _, e := range list {
			e = strings.ToLower(e)
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			out[e] = true
		}
		return out
	}
	inc, exc := norm(include), norm(exclude)
	return func(rel string) bool {
		ext := strings.ToLower(filepath.Ext(rel))
		if exc[ext] {
			return false
		}
		return len(inc) == 0 || inc[ext]
	}
}
