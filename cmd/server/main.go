package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/greysquirr3l/morgan-bevy/internal/assets"
	"github.com/greysquirr3l/morgan-bevy/internal/editor"
	"github.com/greysquirr3l/morgan-bevy/internal/infrastructure/storage"
	"github.com/greysquirr3l/morgan-bevy/internal/server"
	"github.com/greysquirr3l/morgan-bevy/internal/version"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
	"github.com/greysquirr3l/morgan-bevy/pkg/themes"
	"github.com/greysquirr3l/morgan-bevy/pkg/wfc"
)

func init() {
	logger.Init()
}

func main() {
	// 1. Парсинг конфигурации
	cfg := editor.NewConfig()
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP/WebSocket port")
	flag.StringVar(&cfg.ThemesDir, "themes", cfg.ThemesDir, "Directory with custom theme YAMLs (hot reload)")
	flag.StringVar(&cfg.TilesetsDir, "tilesets", cfg.TilesetsDir, "Directory with custom WFC tileset YAMLs (hot reload)")
	flag.StringVar(&cfg.LevelsDir, "levels", cfg.LevelsDir, "Directory for saved levels")
	flag.StringVar(&cfg.AssetDBPath, "asset-db", cfg.AssetDBPath, "Path to the sqlite asset catalog (empty to disable)")
	scanDir := flag.String("scan", "", "Scan this assets directory on startup and exit")
	flag.Parse()

	logger.Log.Info("Starting Morgan-Bevy Level Editor...")
	logger.Log.Info(version.String())

	// 2. Библиотеки тем и тайлсетов
	themeLib, err := themes.NewLibrary()
	if err != nil {
		logger.Log.Fatal("Failed to load built-in themes:", err)
	}
	if cfg.ThemesDir != "" {
		if err := themeLib.LoadDir(cfg.ThemesDir); err != nil {
			logger.Log.WithError(err).Warn("Custom themes not loaded")
		}
	}

	tilesetLib := wfc.NewTilesetLibrary()
	if cfg.TilesetsDir != "" {
		if err := tilesetLib.LoadDir(cfg.TilesetsDir); err != nil {
			logger.Log.WithError(err).Warn("Custom tilesets not loaded")
		}
	}

	// 3. Каталог ассетов (опционален)
	var catalog *assets.Database
	if cfg.AssetDBPath != "" {
		catalog, err = assets.Open(cfg.AssetDBPath)
		if err != nil {
			logger.Log.WithError(err).Warn("Asset catalog unavailable")
			catalog = nil
		} else {
			defer catalog.Close()
		}
	}

	store := storage.NewLevelStore(cfg.LevelsDir)
	svc := editor.NewService(themeLib, tilesetLib, store, catalog)

	// РЕЖИМ РАЗОВОГО СКАНИРОВАНИЯ
	if *scanDir != "" {
		logger.Log.Info("💿 Mode: Asset Scan")
		if catalog == nil {
			logger.Log.Fatal("Asset scan requires a configured asset catalog")
		}
		result, err := assets.NewScanner(catalog).ScanDirectory(context.Background(), *scanDir)
		if err != nil {
			logger.Log.Fatal("Scan failed:", err)
		}
		logger.Log.Infof("Scan done: %d assets, %d errors", result.TotalAssets, len(result.Errors))
		return
	}

	// 4. Hot reload пользовательских тем и тайлсетов
	watcher, err := editor.NewWatcher(svc, cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Hot reload disabled")
	}
	if watcher != nil {
		defer watcher.Close()
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 5. Запуск сервера
	srv := server.New(svc, cfg.Port)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error:", err)
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")
	logger.Log.Info("Done.")
}
