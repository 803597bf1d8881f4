package wfc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// Direction — четыре стороны света для 2D-распространения ограничений.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Directions возвращает все направления в фиксированном порядке обхода.
func Directions() [4]Direction {
	return [4]Direction{North, East, South, West}
}

func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// Offset — смещение соседа в координатах сетки (y растет вниз).
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	default:
		return -1, 0
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	default:
		return "west"
	}
}

// ParseDirection разбирает имя направления из YAML/JSON.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "north":
		return North, nil
	case "east":
		return East, nil
	case "south":
		return South, nil
	case "west":
		return West, nil
	default:
		return North, fmt.Errorf("unknown direction %q", s)
	}
}

// UnmarshalYAML позволяет писать направления словами в файлах тайлсетов.
func (d *Direction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Direction) MarshalYAML() (any, error) {
	return d.String(), nil
}

// TileType — один тип тайла каталога: вес выбора, допустимые повороты
// и тег меша для 3D-представления.
type TileType struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Rotations []int   `yaml:"rotations" json:"rotations"`
	MeshType  string  `yaml:"mesh" json:"mesh"`
}

// ConstraintRule — правило смежности: какие тайлы допустимы соседями
// данного тайла в данном направлении.
//
// Таблица НЕ симметризуется автоматически: если нужна симметрия,
// автор тайлсета обязан объявить оба направления явно.
type ConstraintRule struct {
	TileID           string    `yaml:"tile" json:"tile"`
	Direction        Direction `yaml:"direction" json:"direction"`
	AllowedNeighbors []string  `yaml:"allowed" json:"allowed"`
}

// Tileset — именованный каталог тайлов плюс его правила смежности.
type Tileset struct {
	ID    string           `yaml:"id" json:"id"`
	Tiles []TileType       `yaml:"tiles" json:"tiles"`
	Rules []ConstraintRule `yaml:"rules" json:"rules"`
}

// TilesetLibrary хранит встроенные и загруженные с диска тайлсеты.
type TilesetLibrary struct {
	mu   sync.RWMutex
	sets map[string]*Tileset
}

// NewTilesetLibrary создает библиотеку со встроенными тайлсетами.
func NewTilesetLibrary() *TilesetLibrary {
	lib := &TilesetLibrary{sets: make(map[string]*Tileset)}
	for _, ts := range []*Tileset{dungeonTileset(), officeTileset(), scifiTileset()} {
		lib.sets[ts.ID] = ts
	}
	return lib
}

// Get возвращает тайлсет по имени с откатом на "dungeon" —
// так же, как темы: опечатка в имени не валит генерацию.
func (l *TilesetLibrary) Get(id string) *Tileset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ts, ok := l.sets[id]; ok {
		return ts
	}
	return l.sets["dungeon"]
}

// Lookup — как Get, но без фолбэка.
func (l *TilesetLibrary) Lookup(id string) (*Tileset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ts, ok := l.sets[id]
	return ts, ok
}

// All возвращает все тайлсеты, отсортированные по ID.
func (l *TilesetLibrary) All() []*Tileset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Tileset, 0, len(l.sets))
	for _, ts := range l.sets {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDir подхватывает *.yaml тайлсеты из каталога,
// перезаписывая существующие ID (hot reload).
func (l *TilesetLibrary) LoadDir(dir string) error {
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
			logger.Log.WithError(err).Warnf("Skipping unreadable tileset file %s", path)
			continue
		}

		var ts Tileset
		if err := yaml.Unmarshal(data, &ts); err != nil {
			logger.Log.WithError(err).Warnf("Skipping invalid tileset file %s", path)
			continue
		}
		if ts.ID == "" || len(ts.Tiles) == 0 {
			logger.Log.Warnf("Skipping tileset file %s: missing id or tiles", path)
			continue
		}

		l.mu.Lock()
		l.sets[ts.ID] = &ts
		l.mu.Unlock()
		logger.Log.Infof("Loaded tileset %q from %s", ts.ID, path)
	}
	return nil
}

// --- Встроенные тайлсеты ---

// rulesForAll объявляет одинаковый набор соседей во всех четырех
// направлениях — частый случай для простых тайлсетов.
func rulesForAll(tileID string, allowed ...string) []ConstraintRule {
	rules := make([]ConstraintRule, 0, 4)
	for _, dir := range Directions() {
		rules = append(rules, ConstraintRule{
			TileID:           tileID,
			Direction:        dir,
			AllowedNeighbors: allowed,
		})
	}
	return rules
}

func dungeonTileset() *Tileset {
	ts := &Tileset{
		ID: "dungeon",
		Tiles: []TileType{
			{ID: "wall", Name: "Wall", Weight: 1.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "floor", Name: "Floor", Weight: 2.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "door", Name: "Door", Weight: 0.1, Rotations: []int{0, 90}, MeshType: "cube"},
			{ID: "corner", Name: "Corner", Weight: 0.5, Rotations: []int{0, 90, 180, 270}, MeshType: "cube"},
		},
	}
	ts.Rules = append(ts.Rules, rulesForAll("wall", "wall", "door", "corner")...)
	ts.Rules = append(ts.Rules, rulesForAll("floor", "floor", "door", "corner")...)
	ts.Rules = append(ts.Rules, rulesForAll("door", "wall", "floor", "door")...)
	ts.Rules = append(ts.Rules, rulesForAll("corner", "wall", "floor", "corner")...)
	return ts
}

func officeTileset() *Tileset {
	ts := &Tileset{
		ID: "office",
		Tiles: []TileType{
			{ID: "carpet", Name: "Carpet", Weight: 2.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "wall", Name: "Office Wall", Weight: 1.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "desk", Name: "Desk", Weight: 0.3, Rotations: []int{0, 90, 180, 270}, MeshType: "cube"},
		},
	}
	// У wall и desk правил нет: отсутствие правила значит
	// "сосед не ограничен", а не "соседей быть не может".
	ts.Rules = append(ts.Rules, rulesForAll("carpet", "carpet", "desk")...)
	return ts
}

func scifiTileset() *Tileset {
	ts := &Tileset{
		ID: "scifi",
		Tiles: []TileType{
			{ID: "metal_floor", Name: "Metal Floor", Weight: 2.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "hull_wall", Name: "Hull Wall", Weight: 1.0, Rotations: []int{0}, MeshType: "cube"},
			{ID: "console", Name: "Control Console", Weight: 0.2, Rotations: []int{0, 90, 180, 270}, MeshType: "cube"},
		},
	}
	ts.Rules = append(ts.Rules, rulesForAll("metal_floor", "metal_floor", "console")...)
	return ts
}
