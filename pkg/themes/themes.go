package themes

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

//go:embed defaults/*.yaml
var defaultThemes embed.FS

// TileTemplate описывает, как один тип тайла превращается в 3D-объект.
// Scale и Offset задают габариты и вертикальное смещение плейсхолдера:
// полы и коридоры тонкие и низкие, стены высокие и центрированные.
type TileTemplate struct {
	Name      string         `yaml:"name" json:"name"`
	Icon      string         `yaml:"icon" json:"icon"`
	Mesh      string         `yaml:"mesh" json:"mesh"`
	Material  string         `yaml:"material" json:"material"`
	Layer     string         `yaml:"layer" json:"layer"`
	Scale     [3]float32     `yaml:"scale" json:"scale"`
	Offset    [3]float32     `yaml:"offset" json:"offset"`
	Collision bool           `yaml:"collision" json:"collision"`
	Walkable  bool           `yaml:"walkable" json:"walkable"`
	Tags      []string       `yaml:"tags" json:"tags"`
	Metadata  map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Theme — именованный набор шаблонов тайлов.
// Это статические данные: материалы и меши здесь — строковые ссылки,
// резолвит их движок на стороне клиента, а не мы.
type Theme struct {
	ID          string                  `yaml:"id" json:"id"`
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description"`
	Author      string                  `yaml:"author" json:"author"`
	Version     string                  `yaml:"version" json:"version"`
	WallHeight  float32                 `yaml:"wall_height" json:"wall_height"`
	Tiles       map[string]TileTemplate `yaml:"tiles" json:"tiles"`
}

// Tile возвращает шаблон тайла по имени (floor, wall, corridor, door).
func (t *Theme) Tile(kind string) (TileTemplate, bool) {
	tpl, ok := t.Tiles[kind]
	return tpl, ok
}

// Library хранит все известные темы. Встроенные темы загружаются
// из embed при создании; LoadDir может добавить/переопределить темы
// с диска (используется hot reload в сервере).
type Library struct {
	mu     sync.RWMutex
	themes map[string]*Theme
}

// NewLibrary создает библиотеку со встроенными темами.
func NewLibrary() (*Library, error) {
	lib := &Library{themes: make(map[string]*Theme)}

	entries, err := defaultThemes.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded themes: %w", err)
	}
	for _, entry := range entries {
		data, err := defaultThemes.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, err
		}
		theme, err := parseTheme(data)
		if err != nil {
			return nil, fmt.Errorf("embedded theme %s: %w", entry.Name(), err)
		}
		lib.themes[theme.ID] = theme
	}
	return lib, nil
}

func parseTheme(data []byte) (*Theme, error) {
	var theme Theme
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, err
	}
	if theme.ID == "" {
		return nil, fmt.Errorf("theme has no id")
	}
	if len(theme.Tiles) == 0 {
		return nil, fmt.Errorf("theme %q has no tiles", theme.ID)
	}
	return &theme, nil
}

// LoadDir читает все *.yaml из каталога и добавляет их в библиотеку.
// Темы с существующими ID перезаписываются — так работает hot reload.
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Log.WithError(err).Warnf("Skipping unreadable theme file %s", path)
			continue
		}
		theme, err := parseTheme(data)
		if err != nil {
			logger.Log.WithError(err).Warnf("Skipping invalid theme file %s", path)
			continue
		}

		l.mu.Lock()
		l.themes[theme.ID] = theme
		l.mu.Unlock()
		logger.Log.Infof("Loaded theme %q from %s", theme.ID, path)
	}
	return nil
}

// Get возвращает тему по ID. Неизвестная тема откатывается на "dungeon" —
// генераторы никогда не падают из-за опечатки в имени темы.
func (l *Library) Get(id string) *Theme {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if theme, ok := l.themes[id]; ok {
		return theme
	}
	return l.themes["dungeon"]
}

// Lookup — как Get, но без фолбэка.
func (l *Library) Lookup(id string) (*Theme, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	theme, ok := l.themes[id]
	return theme, ok
}

// All возвращает все темы, отсортированные по ID.
func (l *Library) All() []*Theme {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Theme, 0, len(l.themes))
	for _, theme := range l.themes {
		out = append(out, theme)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
