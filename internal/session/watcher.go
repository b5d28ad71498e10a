package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/crewdeck/crewdeck/internal/model"
)

// Watch monitors the session file for changes made by another process (a
// second terminal logging in or out with the same account) and reloads the
// in-memory credential when one lands. Each reload is signalled on the
// returned channel; slow consumers miss signals rather than blocking the
// watcher.
//
// The watch runs until ctx is cancelled; the channel is closed on exit.
func (s *Session) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create session watcher: %w", err)
	}

	// Watch the directory, not the file: editors and our own Save replace
	// the file, and a watch on the old inode would go stale.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch session directory %s: %w", dir, err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					s.mu.Lock()
					s.token = ""
					s.user = model.User{}
					s.mu.Unlock()
					s.logger.Println("Session file removed, credential dropped")
				} else if err := s.Load(); err != nil {
					s.logger.Printf("Failed to reload session: %v", err)
					continue
				}

				select {
				case changes <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Printf("Session watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}
