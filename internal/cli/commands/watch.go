package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchExtensions are the file types that trigger a rerun.
var watchExtensions = map[string]bool{
	".sql":  true,
	".star": true,
	".yaml": true,
	".yml":  true,
}

// watchAndRun runs once, then reruns after each batch of changes until
// ctx is cancelled. Failed runs are reported and do not stop watching.
func watchAndRun(ctx context.Context, cc *CommandContext, opts *RunOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range watchDirs(cc) {
		if err := watchDir(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	rerun := func() {
		if _, err := runOnce(ctx, cc, opts); err != nil {
			var failed *RunFailedError
			if !errors.As(err, &failed) {
				cc.Renderer.Error(err.Error())
			}
		}
		cc.Renderer.Muted("Watching for changes (Ctrl+C to stop)")
	}
	rerun()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDir(watcher, event.Name)
					continue
				}
			}
			if !watchExtensions[filepath.Ext(event.Name)] {
				continue
			}
			cc.Logger.Debug("change detected", "file", event.Name, "op", event.Op.String())
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDirs lists the directories whose contents affect a run.
func watchDirs(cc *CommandContext) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, dir := range []string{
		cc.Cfg.ModelsDir,
		cc.Cfg.MacrosDir,
		filepath.Dir(cc.Cfg.SourcesFile),
		filepath.Dir(cc.Cfg.AssetsFile),
	} {
		if dir == "" || seen[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// watchDir recursively adds a directory to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
