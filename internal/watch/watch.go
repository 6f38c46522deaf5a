// Package watch blocks until a file's contents satisfy a predicate.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrClosed is returned when the underlying watcher shuts down mid-wait.
var ErrClosed = errors.New("file watcher closed")

// Predicate inspects freshly read file content.
type Predicate func(content string) (bool, error)

// FileWatcher waits on filesystem notifications for a single file.
type FileWatcher struct {
	logger *zap.Logger
}

// New creates a FileWatcher.
func New(logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWatcher{logger: logger}
}

// WaitUntil evaluates pred against the file's content once the watch is in
// place and again after every write or create event for path. It returns the
// content that satisfied pred. A predicate error fails the wait. There is no
// timeout besides ctx.
func (w *FileWatcher) WaitUntil(ctx context.Context, path string, pred Predicate) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file by rename are seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return "", fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if content, ok, err := check(abs, pred); err != nil || ok {
		return content, err
	}
	w.logger.Info("waiting for file change", zap.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return "", ErrClosed
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("file changed", zap.String("path", abs), zap.String("op", event.Op.String()))
			content, ok, err := check(abs, pred)
			if err != nil || ok {
				return content, err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return "", ErrClosed
			}
			return "", fmt.Errorf("watch %s: %w", abs, err)
		}
	}
}

func check(path string, pred Predicate) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)
	ok, err := pred(content)
	if err != nil {
		return "", false, fmt.Errorf("check %s: %w", path, err)
	}
	return content, ok, nil
}

// ConflictMarkers are the literal markers left by an unresolved merge.
var ConflictMarkers = []string{"<<<<<<< HEAD", "=======", ">>>>>>>"}

// HasConflictMarkers reports whether content still contains any marker.
func HasConflictMarkers(content string) bool {
	for _, m := range ConflictMarkers {
		if strings.Contains(content, m) {
			return true
		}
	}
	return false
}

// Resolved is a Predicate that holds once the file is non-empty and no
// conflict markers remain. An empty read is treated as a write in progress.
func Resolved(content string) (bool, error) {
	if strings.TrimSpace(content) == "" {
		return false, nil
	}
	return !HasConflictMarkers(content), nil
}
