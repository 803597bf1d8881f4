package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// ScanResult — сводка одного прохода сканера по каталогу ассетов.
type ScanResult struct {
	TotalAssets      int            `json:"total_assets"`
	CollectionsFound []string       `json:"collections_found"`
	AssetsByType     map[string]int `json:"assets_by_type"`
	ScanDurationMs   int64          `json:"scan_duration_ms"`
	Errors           []string       `json:"errors"`
}

// Scanner обходит дерево ассетов и регистрирует найденные файлы
// в каталоге. Имя коллекции — верхний каталог относительно корня
// сканирования; файлы прямо в корне попадают в Uncategorized.
type Scanner struct {
	db *Database
}

func NewScanner(db *Database) *Scanner {
	return &Scanner{db: db}
}

// ScanDirectory регистрирует все поддерживаемые файлы под assetsDir.
// Ошибка отдельного файла попадает в ScanResult.Errors и не
// останавливает обход.
func (s *Scanner) ScanDirectory(ctx context.Context, assetsDir string) (*ScanResult, error) {
	start := time.Now()

	if _, err := os.Stat(assetsDir); err != nil {
		return nil, fmt.Errorf("assets directory does not exist: %s", assetsDir)
	}
	logger.Log.Infof("Starting asset scan of directory: %s", assetsDir)

	result := &ScanResult{
		AssetsByType: make(map[string]int),
		Errors:       []string{},
	}
	seenCollections := make(map[string]bool)

	err := filepath.WalkDir(assetsDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if DetermineAssetType(path) == "Unknown" {
			return nil
		}

		collection := collectionFor(path, assetsDir)
		if _, upsertErr := s.db.UpsertAsset(ctx, path, collection); upsertErr != nil {
			msg := fmt.Sprintf("Failed to process %s: %v", path, upsertErr)
			logger.Log.Warn(msg)
			result.Errors = append(result.Errors, msg)
			return nil
		}

		result.TotalAssets++
		result.AssetsByType[DetermineAssetType(path)]++
		if !seenCollections[collection] {
			seenCollections[collection] = true
			result.CollectionsFound = append(result.CollectionsFound, collection)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.ScanDurationMs = time.Since(start).Milliseconds()
	logger.Log.Infof("Asset scan complete: %d assets in %d collections (%d ms, %d errors)",
		result.TotalAssets, len(result.CollectionsFound), result.ScanDurationMs, len(result.Errors))
	return result, nil
}

// collectionFor выводит имя коллекции из первого сегмента пути
// относительно корня сканирования.
func collectionFor(assetPath, rootDir string) string {
	rel, err := filepath.Rel(rootDir, assetPath)
	if err != nil {
		return "Uncategorized"
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "Uncategorized"
	}
	return parts[0]
}
