package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/internal/infrastructure/storage"
	"github.com/greysquirr3l/morgan-bevy/pkg/bsp"
	"github.com/greysquirr3l/morgan-bevy/pkg/themes"
	"github.com/greysquirr3l/morgan-bevy/pkg/wfc"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	themeLib, err := themes.NewLibrary()
	if err != nil {
		t.Fatalf("Failed to load themes: %v", err)
	}
	store := storage.NewLevelStore(t.TempDir())
	return NewService(themeLib, wfc.NewTilesetLibrary(), store, nil)
}

func bspParams(seed int64) bsp.Params {
	return bsp.Params{
		Width:         40,
		Height:        30,
		Depth:         1,
		MinRoomSize:   4,
		MaxRoomSize:   12,
		CorridorWidth: 1,
		Theme:         "dungeon",
		Seed:          &seed,
	}
}

func TestOperationsRequireLevel(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CurrentLevel(); !errors.Is(err, ErrNoLevel) {
		t.Errorf("CurrentLevel without level: %v", err)
	}
	if err := svc.UpdateTransform("x", domain.Transform3D{}); !errors.Is(err, ErrNoLevel) {
		t.Errorf("UpdateTransform without level: %v", err)
	}
	if _, err := svc.QueryBounds(domain.BoundingBox{}); !errors.Is(err, ErrNoLevel) {
		t.Errorf("QueryBounds without level: %v", err)
	}
	if err := svc.SaveLevel("nothing"); !errors.Is(err, ErrNoLevel) {
		t.Errorf("SaveLevel without level: %v", err)
	}
}

func TestGenerateBSPInstallsLevelAndIndex(t *testing.T) {
	svc := newTestService(t)

	level := svc.GenerateBSP(bspParams(42))
	if len(level.Objects) == 0 {
		t.Fatal("Generated level is empty")
	}

	current, err := svc.CurrentLevel()
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != level.ID {
		t.Error("CurrentLevel must return the installed level")
	}

	// Индекс отвечает на запрос, покрывающий весь уровень
	ids, err := svc.QueryBounds(level.Bounds)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != len(level.Objects) {
		t.Errorf("Full-bounds query returned %d of %d objects", len(ids), len(level.Objects))
	}
}

func TestUpdateTransformMovesIndexEntry(t *testing.T) {
	svc := newTestService(t)
	level := svc.GenerateBSP(bspParams(42))
	id := level.Objects[0].ID

	far := domain.Transform3D{
		Position: [3]float32{500, 0, 500},
		Rotation: domain.IdentityRotation(),
		Scale:    [3]float32{1, 1, 1},
	}
	if err := svc.UpdateTransform(id, far); err != nil {
		t.Fatalf("UpdateTransform failed: %v", err)
	}

	ids, err := svc.QueryBounds(domain.BoundingBox{
		Min: [3]float32{499, -1, 499},
		Max: [3]float32{501, 1, 501},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("Moved object not found at new position: %v", ids)
	}

	// И трансформ на уровне тоже обновлен
	current, _ := svc.CurrentLevel()
	if current.FindObject(id).Transform.Position != far.Position {
		t.Error("Level object transform not updated")
	}
}

func TestUpdateTransformUnknownObject(t *testing.T) {
	svc := newTestService(t)
	svc.GenerateBSP(bspParams(42))

	if err := svc.UpdateTransform("no-such-id", domain.Transform3D{}); err == nil {
		t.Error("Unknown object id must be an error")
	}
}

func TestFailedWFCKeepsPreviousLevel(t *testing.T) {
	svc := newTestService(t)
	before := svc.GenerateBSP(bspParams(42))

	seed := int64(7)
	_, err := svc.GenerateWFC(wfc.Params{
		Width:         8,
		Height:        8,
		Tileset:       "dungeon",
		Seed:          &seed,
		MaxIterations: 1, // заведомо мало для 64 клеток
	})
	if err == nil {
		t.Fatal("Expected generation failure with MaxIterations=1")
	}

	current, getErr := svc.CurrentLevel()
	if getErr != nil {
		t.Fatal(getErr)
	}
	if current.ID != before.ID {
		t.Error("Failed generation must not replace the current level")
	}
}

func TestSaveLoadThroughService(t *testing.T) {
	svc := newTestService(t)
	original := svc.GenerateBSP(bspParams(42))

	if err := svc.SaveLevel("backup"); err != nil {
		t.Fatalf("SaveLevel failed: %v", err)
	}

	// Перетираем текущий уровень другим
	svc.GenerateBSP(bspParams(99))

	loaded, err := svc.LoadLevel("backup")
	if err != nil {
		t.Fatalf("LoadLevel failed: %v", err)
	}
	if loaded.ID != original.ID || len(loaded.Objects) != len(original.Objects) {
		t.Error("Loaded level differs from the saved one")
	}

	names, err := svc.ListLevels()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "backup" {
		t.Errorf("ListLevels = %v", names)
	}

	// Индекс перестроен под загруженный уровень
	ids, err := svc.QueryBounds(loaded.Bounds)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != len(loaded.Objects) {
		t.Errorf("Index not rebuilt after load: %d of %d", len(ids), len(loaded.Objects))
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newTestService(t)
	svc.GenerateBSP(bspParams(42))

	if _, err := svc.Export([]string{"stl"}, t.TempDir()+"/out"); err == nil {
		t.Error("Unknown format must be rejected before touching the disk")
	}
}

func TestExportWritesFiles(t *testing.T) {
	svc := newTestService(t)
	svc.GenerateBSP(bspParams(42))

	result, err := svc.Export([]string{"json", "yaml"}, t.TempDir()+"/out")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(result.ExportedFiles) != 2 || len(result.Errors) != 0 {
		t.Errorf("Unexpected export result: %+v", result)
	}
}

func TestAssetsUnavailableWithoutCatalog(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.SearchAssets(context.Background(), "wall", "", ""); err == nil {
		t.Error("SearchAssets must fail when no catalog is configured")
	}
	if _, err := svc.ScanAssets(context.Background(), t.TempDir()); err == nil {
		t.Error("ScanAssets must fail when no catalog is configured")
	}
}
