package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/greysquirr3l/morgan-bevy/internal/assets"
	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/internal/infrastructure/storage"
	"github.com/greysquirr3l/morgan-bevy/pkg/bsp"
	"github.com/greysquirr3l/morgan-bevy/pkg/export"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
	"github.com/greysquirr3l/morgan-bevy/pkg/spatial"
	"github.com/greysquirr3l/morgan-bevy/pkg/themes"
	"github.com/greysquirr3l/morgan-bevy/pkg/wfc"
)

// ErrNoLevel возвращается операциями, требующими загруженный уровень.
var ErrNoLevel = errors.New("no level loaded")

// Service — ядро редактора: текущий уровень, пространственный индекс
// и все операции над ними. Уровень всегда заменяется целиком; индекс
// перестраивается атомарно вместе с заменой. Упавшая генерация
// ничего не устанавливает — прошлый уровень остается как был.
type Service struct {
	mu    sync.RWMutex
	level *domain.Level
	index *spatial.Index

	bspGen   *bsp.Generator
	wfcGen   *wfc.Generator
	themes   *themes.Library
	tilesets *wfc.TilesetLibrary
	store    *storage.LevelStore
	exporter *export.Exporter

	// catalog может быть nil: редактор работает и без каталога ассетов.
	catalog *assets.Database
}

func NewService(themeLib *themes.Library, tilesetLib *wfc.TilesetLibrary, store *storage.LevelStore, catalog *assets.Database) *Service {
	return &Service{
		index:    spatial.NewIndex(),
		bspGen:   bsp.NewGenerator(themeLib),
		wfcGen:   wfc.NewGenerator(tilesetLib),
		themes:   themeLib,
		tilesets: tilesetLib,
		store:    store,
		exporter: export.New(),
		catalog:  catalog,
	}
}

// install заменяет текущий уровень и перестраивает индекс. Только под mu.
func (s *Service) install(level *domain.Level) {
	s.level = level
	s.index.Clear()
	for i := range level.Objects {
		s.index.Insert(level.Objects[i].ID, level.Objects[i].Transform)
	}
}

// snapshotLocked отдает копию уровня с собственным слайсом объектов,
// чтобы сериализация ответа не гонялась с последующими правками.
func (s *Service) snapshotLocked() *domain.Level {
	if s.level == nil {
		return nil
	}
	cp := *s.level
	cp.Objects = append([]domain.Entity(nil), s.level.Objects...)
	return &cp
}

// GenerateBSP генерирует уровень BSP-разбиением и делает его текущим.
func (s *Service) GenerateBSP(params bsp.Params) *domain.Level {
	level := s.bspGen.Generate(params)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(level)
	logger.Log.Infof("BSP level installed: %d objects", len(level.Objects))
	return s.snapshotLocked()
}

// GenerateWFC генерирует уровень волновой функцией. Ошибка генерации
// не трогает текущий уровень.
func (s *Service) GenerateWFC(params wfc.Params) (*domain.Level, error) {
	level, err := s.wfcGen.Generate(params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(level)
	logger.Log.Infof("WFC level installed: %d objects", len(level.Objects))
	return s.snapshotLocked(), nil
}

// CurrentLevel возвращает копию текущего уровня.
func (s *Service) CurrentLevel() (*domain.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.level == nil {
		return nil, ErrNoLevel
	}
	return s.snapshotLocked(), nil
}

// UpdateTransform правит трансформ одного объекта и его запись в индексе.
func (s *Service) UpdateTransform(objectID string, t domain.Transform3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == nil {
		return ErrNoLevel
	}

	obj := s.level.FindObject(objectID)
	if obj == nil {
		return fmt.Errorf("object %s not found", objectID)
	}
	obj.Transform = t
	s.index.Update(objectID, t)
	return nil
}

// QueryBounds возвращает ID объектов, чьи AABB пересекают запрос.
// Касание граней считается пересечением.
func (s *Service) QueryBounds(bounds domain.BoundingBox) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.level == nil {
		return nil, ErrNoLevel
	}
	return s.index.QueryBounds(bounds), nil
}

// SaveLevel сохраняет текущий уровень под именем name.
func (s *Service) SaveLevel(name string) error {
	s.mu.RLock()
	level := s.snapshotLocked()
	s.mu.RUnlock()

	if level == nil {
		return ErrNoLevel
	}
	if err := s.store.Save(name, level); err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	logger.Log.Infof("Level %q saved as %q", level.Name, name)
	return nil
}

// LoadLevel загружает сохраненный уровень и делает его текущим.
func (s *Service) LoadLevel(name string) (*domain.Level, error) {
	level, err := s.store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load level: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(level)
	logger.Log.Infof("Level %q loaded: %d objects", name, len(level.Objects))
	return s.snapshotLocked(), nil
}

// ListLevels возвращает имена сохраненных уровней.
func (s *Service) ListLevels() ([]string, error) {
	return s.store.List()
}

// Export экспортирует текущий уровень в запрошенные форматы.
func (s *Service) Export(formatNames []string, outputPath string) (*export.Result, error) {
	formats := make([]export.Format, 0, len(formatNames))
	for _, name := range formatNames {
		f, err := export.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}

	s.mu.RLock()
	level := s.snapshotLocked()
	s.mu.RUnlock()
	if level == nil {
		return nil, ErrNoLevel
	}

	return s.exporter.ExportMultiFormat(level, formats, outputPath)
}

// Themes возвращает библиотеку тем (для LIST_THEMES / GET_THEME).
func (s *Service) Themes() *themes.Library {
	return s.themes
}

// Tilesets возвращает библиотеку тайлсетов WFC.
func (s *Service) Tilesets() *wfc.TilesetLibrary {
	return s.tilesets
}

// SearchAssets ищет по каталогу ассетов.
func (s *Service) SearchAssets(ctx context.Context, query, assetType, collection string) ([]assets.SearchResult, error) {
	if s.catalog == nil {
		return nil, errors.New("asset catalog is not configured")
	}
	return s.catalog.Search(ctx, query, assetType, collection)
}

// ScanAssets пересканирует каталог ассетов на диске.
func (s *Service) ScanAssets(ctx context.Context, dir string) (*assets.ScanResult, error) {
	if s.catalog == nil {
		return nil, errors.New("asset catalog is not configured")
	}
	return assets.NewScanner(s.catalog).ScanDirectory(ctx, dir)
}
