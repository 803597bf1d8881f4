package editor

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// Watcher следит за каталогами тем и тайлсетов и перечитывает их
// при изменении YAML-файлов. События дребезжат (редакторы пишут
// файл в несколько приемов), поэтому повторы в пределах 100мс
// схлопываются.
type Watcher struct {
	watcher *fsnotify.Watcher
	service *Service
	cfg     Config
	closeCh chan struct{}
	once    sync.Once
}

// NewWatcher включает слежение за непустыми каталогами из конфига.
// Если оба пусты, возвращает nil без ошибки.
func NewWatcher(service *Service, cfg Config) (*Watcher, error) {
	dirs := make([]string, 0, 2)
	if cfg.ThemesDir != "" {
		dirs = append(dirs, cfg.ThemesDir)
	}
	if cfg.TilesetsDir != "" {
		dirs = append(dirs, cfg.TilesetsDir)
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		service: service,
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}
	go watcher.run()
	logger.Log.Infof("Hot reload enabled for: %s", strings.Join(dirs, ", "))
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isYAMLFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < 100*time.Millisecond {
				continue
			}
			last[event.Name] = now
			w.reload(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Log.WithError(err).Warn("Watcher error")

		case <-w.closeCh:
			return
		}
	}
}

// reload перечитывает каталог, которому принадлежит измененный файл.
func (w *Watcher) reload(path string) {
	dir := filepath.Dir(path)
	switch dir {
	case w.cfg.ThemesDir:
		if err := w.service.Themes().LoadDir(dir); err != nil {
			logger.Log.WithError(err).Warn("Theme reload failed")
			return
		}
		logger.Log.Infof("Themes reloaded after change to %s", filepath.Base(path))
	case w.cfg.TilesetsDir:
		if err := w.service.Tilesets().LoadDir(dir); err != nil {
			logger.Log.WithError(err).Warn("Tileset reload failed")
			return
		}
		logger.Log.Infof("Tilesets reloaded after change to %s", filepath.Base(path))
	}
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
