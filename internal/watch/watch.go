// Package watch triggers rebuilds when module sources change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// DefaultMaxDelayFactor bounds how long a steady stream of changes can
// postpone a rebuild, as a multiple of the quiet window.
const DefaultMaxDelayFactor = 5

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window after the last change.
	Debounce time.Duration
	// MaxDelay caps the delay after the first change of a burst.
	MaxDelay time.Duration
	// Ignore lists directories whose contents never trigger a rebuild,
	// typically build outputs.
	Ignore []string
}

// Watcher watches directory trees and calls back with debounced batches.
type Watcher struct {
	fs     *fsnotify.Watcher
	roots  []string
	ignore []string
	opts   Options
}

// New watches every directory below roots. Missing roots are skipped.
func New(roots []string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		return nil, ferrors.ValidationError("debounce must be > 0").Build()
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelayFactor * opts.Debounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.FileSystemError("failed to create file watcher").WithCause(err).Build()
	}
	w := &Watcher{fs: fw, opts: opts}
	for _, dir := range opts.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, ferrors.FileSystemError("failed to resolve watch root").WithCause(err).Build()
		}
		if err := w.addTree(abs); err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// Watched lists the directories currently registered with the OS watcher.
func (w *Watcher) Watched() []string { return w.fs.WatchList() }

// Run delivers batches to fn until ctx is done. fn is never called
// concurrently with itself.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, Batch)) error {
	defer func() {
		if err := w.fs.Close(); err != nil {
			slog.Warn("Error closing file watcher", logfields.Error(err))
		}
	}()

	changes := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		newDebouncer(w.opts.Debounce, w.opts.MaxDelay).run(ctx, changes, fn)
	}()

	slog.Info("Watching for changes", logfields.Count(len(w.roots)), slog.Duration("debounce", w.opts.Debounce))
	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				<-done
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						slog.Warn("Cannot watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			slog.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			select {
			case changes <- event.Name:
			default:
				// the pending batch already guarantees a rebuild
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				<-done
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
	if err != nil {
		return ferrors.FileSystemError("failed to watch directory").WithCause(err).
			WithContext("path", root).
			Build()
	}
	return nil
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
