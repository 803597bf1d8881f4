package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// Format — формат экспорта уровня.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatGLTF Format = "gltf"
	FormatFBX  Format = "fbx"
)

// ParseFormat разбирает имя формата из запроса клиента.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	case FormatGLTF:
		return FormatGLTF, nil
	case FormatFBX:
		return FormatFBX, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Extension — расширение файла для формата.
func (f Format) Extension() string {
	return string(f)
}

// Description — человекочитаемое описание для UI.
func (f Format) Description() string {
	switch f {
	case FormatJSON:
		return "Universal JSON format for any engine"
	case FormatYAML:
		return "Human-editable YAML format"
	case FormatTOML:
		return "TOML format for config-driven pipelines"
	case FormatGLTF:
		return "glTF 2.0 format with PBR materials"
	case FormatFBX:
		return "Autodesk FBX format for 3D software"
	default:
		return "Unknown format"
	}
}

// ExportInfo — метаданные, вкладываемые в каждый экспортированный файл.
type ExportInfo struct {
	ExportedAt      time.Time `json:"exported_at" yaml:"exported_at"`
	ExporterVersion string    `json:"exporter_version" yaml:"exporter_version"`
	FormatVersion   string    `json:"format_version" yaml:"format_version"`
	ExportedBy      string    `json:"exported_by" yaml:"exported_by"`
}

type envelope struct {
	Level      *domain.Level `json:"level" yaml:"level"`
	ExportInfo ExportInfo    `json:"export_info" yaml:"export_info"`
}

// ExportedFile — результат записи одного файла.
type ExportedFile struct {
	Format   Format `json:"format"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Success  bool   `json:"success"`
}

// Result — сводка мультиформатного экспорта.
type Result struct {
	ExportedFiles []ExportedFile `json:"exported_files"`
	TotalObjects  int            `json:"total_objects"`
	ExportTimeMs  int64          `json:"export_time_ms"`
	Errors        []string       `json:"errors"`
	Warnings      []string       `json:"warnings"`
}

// Exporter пишет уровень на диск в один или несколько форматов.
// Чистая сериализация: про геометрию и движки он ничего не знает.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

// ExportMultiFormat экспортирует уровень во все запрошенные форматы.
// Ошибка отдельного формата не валит остальные — она копится в Result.
func (e *Exporter) ExportMultiFormat(level *domain.Level, formats []Format, outputPath string) (*Result, error) {
	start := time.Now()
	result := &Result{
		ExportedFiles: make([]ExportedFile, 0, len(formats)),
		TotalObjects:  len(level.Objects),
		Errors:        []string{},
		Warnings:      []string{},
	}

	// Каталог назначения должен существовать
	if parent := filepath.Dir(outputPath); parent != "" && parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	for _, format := range formats {
		switch format {
		case FormatGLTF, FormatFBX:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s export not yet implemented", format))
			continue
		}

		path := exportFilePath(outputPath, format, level.Name)
		err := e.exportOne(level, format, path)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to export %s: %v", format, err))
			result.ExportedFiles = append(result.ExportedFiles, ExportedFile{
				Format: format, FilePath: path, Success: false,
			})
			continue
		}

		info, err := os.Stat(path)
		var size int64
		if err == nil {
			size = info.Size()
		}
		result.ExportedFiles = append(result.ExportedFiles, ExportedFile{
			Format: format, FilePath: path, FileSize: size, Success: true,
		})
		logger.Log.Infof("Exported %s to %s (%d bytes)", format, path, size)
	}

	result.ExportTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (e *Exporter) exportOne(level *domain.Level, format Format, path string) error {
	env := envelope{
		Level: level,
		ExportInfo: ExportInfo{
			ExportedAt:      time.Now().UTC(),
			ExporterVersion: "0.1.0",
			FormatVersion:   "1.0",
			ExportedBy:      "Morgan-Bevy Level Editor",
		},
	}

	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(env, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(env)
	case FormatTOML:
		// TOML сериализуется через JSON-представление, чтобы ключи
		// совпадали с JSON-экспортом и не зависели от Go-имен полей
		var generic map[string]any
		var jsonData []byte
		if jsonData, err = json.Marshal(env); err == nil {
			if err = json.Unmarshal(jsonData, &generic); err == nil {
				// TOML не умеет null — выкидываем их
				stripNulls(generic)
				data, err = toml.Marshal(generic)
			}
		}
	default:
		return fmt.Errorf("no serializer for format %s", format)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// stripNulls рекурсивно удаляет null-значения из JSON-дерева.
func stripNulls(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			stripNulls(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					stripNulls(sub)
				}
			}
		}
	}
}

// exportFilePath строит путь вида <dir>/<safe-name>_<timestamp>.<ext>.
// Имя уровня чистится до [a-z0-9_-], чтобы годиться в имя файла.
func exportFilePath(basePath string, format Format, levelName string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")

	var sb strings.Builder
	for _, r := range strings.ToLower(levelName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}

	dir := filepath.Dir(basePath)
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", sb.String(), timestamp, format.Extension()))
}
