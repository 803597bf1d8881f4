package editor

import "os"

// Config хранит параметры запуска редактора.
type Config struct {
	// Port — HTTP/WebSocket порт сервера.
	Port string

	// ThemesDir и TilesetsDir — каталоги с пользовательскими YAML-файлами.
	// Пустая строка значит "только встроенные", hot reload не включается.
	ThemesDir   string
	TilesetsDir string

	// LevelsDir — каталог сохраненных уровней (.mblv).
	LevelsDir string

	// ExportDir — каталог по умолчанию для экспорта.
	ExportDir string

	// AssetDBPath — путь к sqlite-каталогу ассетов.
	AssetDBPath string
}

// NewConfig создает конфиг по умолчанию с оглядкой на окружение.
func NewConfig() Config {
	return Config{
		Port:        envOr("MB_PORT", "8080"),
		ThemesDir:   os.Getenv("MB_THEMES_DIR"),
		TilesetsDir: os.Getenv("MB_TILESETS_DIR"),
		LevelsDir:   envOr("MB_LEVELS_DIR", "data/levels"),
		ExportDir:   envOr("MB_EXPORT_DIR", "data/exports"),
		AssetDBPath: envOr("MB_ASSET_DB", "data/db/assets.db"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
