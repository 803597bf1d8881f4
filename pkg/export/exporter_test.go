package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
)

func testLevel() *domain.Level {
	seed := int64(42)
	return &domain.Level{
		ID:   "level-1",
		Name: "Test Dungeon #1",
		Objects: []domain.Entity{
			{
				ID:   "obj-1",
				Name: "Wall_0_0",
				Transform: domain.Transform3D{
					Position: [3]float32{0.5, 0.5, 0.5},
					Rotation: domain.IdentityRotation(),
					Scale:    [3]float32{1, 1, 1},
				},
				Material: "stone_wall",
				Mesh:     "cube",
				Layer:    "Walls",
				Tags:     []string{"wall", "dungeon"},
			},
		},
		Layers:         []string{"Walls"},
		GenerationSeed: &seed,
		Bounds: domain.BoundingBox{
			Min: [3]float32{0, 0, 0},
			Max: [3]float32{40, 1, 30},
		},
	}
}

func TestExportAllTextFormats(t *testing.T) {
	dir := t.TempDir()
	exp := New()

	result, err := exp.ExportMultiFormat(testLevel(),
		[]Format{FormatJSON, FormatYAML, FormatTOML},
		filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ExportMultiFormat failed: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("Unexpected export errors: %v", result.Errors)
	}
	if len(result.ExportedFiles) != 3 {
		t.Fatalf("Expected 3 exported files, got %d", len(result.ExportedFiles))
	}
	if result.TotalObjects != 1 {
		t.Errorf("TotalObjects = %d, expected 1", result.TotalObjects)
	}

	for _, f := range result.ExportedFiles {
		if !f.Success {
			t.Errorf("Format %s not marked successful", f.Format)
		}
		if f.FileSize == 0 {
			t.Errorf("Format %s produced an empty file", f.Format)
		}
		if !strings.HasSuffix(f.FilePath, "."+f.Format.Extension()) {
			t.Errorf("File %s has wrong extension for format %s", f.FilePath, f.Format)
		}
	}
}

// Каждый текстовый формат должен разбираться обратно своим же
// парсером и нести уровень под ключом level.
func TestExportedFilesParseBack(t *testing.T) {
	dir := t.TempDir()
	exp := New()

	result, err := exp.ExportMultiFormat(testLevel(),
		[]Format{FormatJSON, FormatYAML, FormatTOML},
		filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}

	for _, f := range result.ExportedFiles {
		data, err := os.ReadFile(f.FilePath)
		if err != nil {
			t.Fatalf("Cannot read back %s: %v", f.FilePath, err)
		}

		var doc map[string]any
		switch f.Format {
		case FormatJSON:
			err = json.Unmarshal(data, &doc)
		case FormatYAML:
			err = yaml.Unmarshal(data, &doc)
		case FormatTOML:
			err = toml.Unmarshal(data, &doc)
		}
		if err != nil {
			t.Fatalf("Re-parse of %s failed: %v", f.Format, err)
		}

		levelDoc, ok := doc["level"].(map[string]any)
		if !ok {
			t.Fatalf("%s: missing level section", f.Format)
		}
		if levelDoc["name"] != "Test Dungeon #1" {
			t.Errorf("%s: level name lost: %v", f.Format, levelDoc["name"])
		}
		if _, ok := doc["export_info"]; !ok {
			t.Errorf("%s: missing export_info section", f.Format)
		}
	}
}

func TestBinaryFormatsWarnInsteadOfFailing(t *testing.T) {
	dir := t.TempDir()
	exp := New()

	result, err := exp.ExportMultiFormat(testLevel(),
		[]Format{FormatGLTF, FormatFBX, FormatJSON},
		filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Warnings) != 2 {
		t.Errorf("Expected 2 warnings for gltf/fbx, got %v", result.Warnings)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Warnings must not become errors: %v", result.Errors)
	}
	// JSON при этом все равно записан
	if len(result.ExportedFiles) != 1 || result.ExportedFiles[0].Format != FormatJSON {
		t.Errorf("JSON export must survive binary-format warnings: %+v", result.ExportedFiles)
	}
}

func TestFilenameSanitization(t *testing.T) {
	path := exportFilePath("/tmp/x/out", FormatJSON, "My Level: №7 (draft)")
	base := filepath.Base(path)
	if strings.ContainsAny(base, " :()№") {
		t.Errorf("Filename not sanitized: %q", base)
	}
	if !strings.HasPrefix(base, "my_level") {
		t.Errorf("Sanitized name must keep lowercase letters: %q", base)
	}
	if !strings.HasSuffix(base, ".json") {
		t.Errorf("Missing extension: %q", base)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("YAML"); err != nil || f != FormatYAML {
		t.Errorf("ParseFormat(YAML) = %v, %v", f, err)
	}
	if _, err := ParseFormat("obj"); err == nil {
		t.Error("ParseFormat must reject unknown formats")
	}
}
