package pages

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/euforicio/pagable/internal/route"
)

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.watchRecursive(s.root); err != nil {
		_ = watcher.Close()
		return err
	}

	s.watching.Add(1)
	go s.runWatcher()
	return nil
}

func (s *Service) runWatcher() {
	defer s.watching.Done()
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", slog.Any("err", err))
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) handleEvent(event fsnotify.Event) {
	if event.Name == "" {
		return
	}
	rel := s.relativePath(event.Name)
	op := event.Op
	s.logger.Debug("fsnotify event", slog.String("path", rel), slog.String("op", op.String()))

	if _, ok := route.FromFile(rel); ok {
		if op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
			s.schedule(rel)
		}
		return
	}

	if op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !s.skipDir(info.Name()) {
			if err := s.watchRecursive(event.Name); err != nil {
				s.logger.Warn("failed to watch new directory", slog.String("path", rel), slog.Any("err", err))
			}
			// Files written before the watch was attached produce no events.
			s.scheduleTree(event.Name)
		}
	}
	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		s.scheduleOwnedUnder(rel)
	}
}

// schedule reloads rel once it has been quiet for the debounce interval.
func (s *Service) schedule(rel string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if timer, ok := s.timers[rel]; ok {
		timer.Stop()
	}
	s.timers[rel] = time.AfterFunc(s.opts.Debounce, func() {
		s.timerMu.Lock()
		delete(s.timers, rel)
		s.timerMu.Unlock()
		s.reload(rel)
	})
}

func (s *Service) scheduleTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && s.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := s.relativePath(path)
		if _, ok := route.FromFile(rel); ok {
			s.schedule(rel)
		}
		return nil
	})
}

func (s *Service) scheduleOwnedUnder(dir string) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	s.mu.RLock()
	var owned []string
	for rel := range s.files {
		if strings.HasPrefix(rel, prefix) {
			owned = append(owned, rel)
		}
	}
	s.mu.RUnlock()
	for _, rel := range owned {
		s.schedule(rel)
	}
}

// reload brings the route owned by rel in line with the file on disk.
func (s *Service) reload(rel string) {
	if s.ctx.Err() != nil {
		return
	}
	r, _ := route.FromFile(rel)
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	s.md.Invalidate(rel)

	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		s.drop(rel)
		return
	}

	if s.opts.Reserved(r) {
		s.logger.Warn("ignoring markdown page, route is registered by a component",
			slog.String("route", r), slog.String("path", rel))
		return
	}

	s.mu.RLock()
	owner, taken := s.routes[r]
	s.mu.RUnlock()
	if taken && owner.Path != rel {
		s.logger.Warn("ignoring markdown page, route already provided",
			slog.String("route", r), slog.String("path", rel), slog.String("owner", owner.Path))
		return
	}

	page, err := s.load(s.ctx, abs, rel, r)
	if err != nil {
		s.logger.Error("reload page failed", slog.String("path", rel), slog.Any("err", err))
		return
	}

	s.mu.Lock()
	s.routes[r] = page
	s.files[rel] = r
	s.mu.Unlock()

	ext, badge := route.Badge(rel)
	s.logger.Info("page updated", slog.String("badge", badge), slog.String("ext", ext),
		slog.String("route", r), slog.String("path", rel))
	s.broadcast(Event{Timestamp: time.Now(), Type: EventUpdated, Route: r, Path: rel})
}

func (s *Service) drop(rel string) {
	s.mu.Lock()
	r, ok := s.files[rel]
	if ok {
		delete(s.files, rel)
		delete(s.routes, r)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.logger.Info("page removed", slog.String("route", r), slog.String("path", rel))
	s.broadcast(Event{Timestamp: time.Now(), Type: EventRemoved, Route: r, Path: rel})
}

func (s *Service) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && s.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			s.logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("err", err))
		}
		return nil
	})
}
