package publication

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileTransport writes a Maven 2 layout repository on the local filesystem.
type FileTransport struct {
	Root string
}

func (t *FileTransport) Publish(ctx context.Context, pub *Publication, files []File) error {
	dir := filepath.Join(t.Root, filepath.FromSlash(pub.Coordinates.Dir()))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range withChecksums(files) {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, f.Name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("commit %s: %w", path, err)
		}
	}
	return nil
}
