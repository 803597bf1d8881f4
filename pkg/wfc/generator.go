package wfc

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// Три различимых вида отказа генерации. Вызывающий слой должен уметь
// их отличать: исчерпанный бюджет бэктрекинга лечится другим сидом,
// постоянные противоречия — более свободным тайлсетом.
var (
	ErrBacktrackExhausted = errors.New("wfc: backtrack budget exhausted")
	ErrNoAdmissibleTile   = errors.New("wfc: no admissible tile for cell")
	ErrIterationLimit     = errors.New("wfc: iteration limit exceeded")
)

// Params — параметры запроса генерации методом коллапса волновой функции.
// Depth зарезервирован, алгоритм двумерный.
type Params struct {
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Depth   int    `json:"depth" yaml:"depth"`
	Tileset string `json:"tileset" yaml:"tileset"`
	Seed    *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// MaxIterations и BacktrackLimit — единственные ограничители
	// работы: они детерминированно ограничивают объем вычислений,
	// но не время на стенных часах.
	MaxIterations  int `json:"max_iterations" yaml:"max_iterations"`
	BacktrackLimit int `json:"backtrack_limit" yaml:"backtrack_limit"`
}

// DefaultParams — разумные значения для интерактивного редактора.
func DefaultParams() Params {
	return Params{
		Width:          24,
		Height:         24,
		Depth:          1,
		Tileset:        "dungeon",
		MaxIterations:  10000,
		BacktrackLimit: 100,
	}
}

// Cell — одна клетка волновой сетки: множество еще допустимых тайлов,
// флаг коллапса и итоговый тайл. Домен хранится ОТСОРТИРОВАННЫМ
// слайсом: порядок обхода при выборке должен быть стабильным, иначе
// детерминизм по сиду не выдержать.
//
// Домен уменьшается монотонно, кроме отката из снапшота при бэктрекинге.
type Cell struct {
	domain    []string
	collapsed bool
	tile      string
}

// Entropy — число еще допустимых тайлов; ноль после коллапса.
func (c *Cell) Entropy() int {
	if c.collapsed {
		return 0
	}
	return len(c.domain)
}

// Collapsed возвращает итоговый тайл, если клетка уже схлопнута.
func (c *Cell) Collapsed() (string, bool) {
	return c.tile, c.collapsed
}

type ruleKey struct {
	tile string
	dir  Direction
}

// snapshot — запись журнала отката: координата клетки и ее домен
// до коллапса.
type snapshot struct {
	x, y   int
	domain []string
}

// Generator генерирует уровни коллапсом волновой функции.
// Потокобезопасен в том же смысле, что и bsp.Generator: все состояние
// запуска живет в run, rng принадлежит одному запуску.
type Generator struct {
	tilesets *TilesetLibrary
}

func NewGenerator(lib *TilesetLibrary) *Generator {
	return &Generator{tilesets: lib}
}

type run struct {
	rng         *rand.Rand
	tiles       []TileType
	tileByID    map[string]*TileType
	constraints map[ruleKey]map[string]struct{}
	grid        [][]Cell
	width       int
	height      int
	stack       []snapshot
}

// Generate решает сетку и возвращает уровень либо одну из трех ошибок.
// В отличие от BSP этот генератор может честно отказать — асимметрия
// сохранена намеренно.
func (g *Generator) Generate(params Params) (*domain.Level, error) {
	seed := time.Now().UnixNano()
	if params.Seed != nil {
		seed = *params.Seed
	}

	ts := g.tilesets.Get(params.Tileset)
	logger.Log.Infof("Starting WFC generation %dx%d, tileset %q (seed %d)",
		params.Width, params.Height, ts.ID, seed)

	r := newRun(ts, params, seed)
	if err := r.solve(params.MaxIterations, params.BacktrackLimit); err != nil {
		logger.Log.WithError(err).Warn("WFC generation failed")
		return nil, err
	}

	level := r.buildLevel(seed, ts.ID, params)
	logger.Log.Infof("WFC generation complete: %d objects", len(level.Objects))
	return level, nil
}

func newRun(ts *Tileset, params Params, seed int64) *run {
	r := &run{
		rng:         rand.New(rand.NewSource(seed)),
		tiles:       ts.Tiles,
		tileByID:    make(map[string]*TileType, len(ts.Tiles)),
		constraints: make(map[ruleKey]map[string]struct{}, len(ts.Rules)),
		width:       params.Width,
		height:      params.Height,
	}

	// Таблица ограничений строится один раз на запуск.
	// Повторное правило для той же пары (тайл, направление)
	// перезаписывает предыдущее — как и в карте.
	for i := range ts.Tiles {
		r.tileByID[ts.Tiles[i].ID] = &ts.Tiles[i]
	}
	for _, rule := range ts.Rules {
		allowed := make(map[string]struct{}, len(rule.AllowedNeighbors))
		for _, id := range rule.AllowedNeighbors {
			allowed[id] = struct{}{}
		}
		r.constraints[ruleKey{rule.TileID, rule.Direction}] = allowed
	}

	// Каждая клетка стартует с полным каталогом — максимальная энтропия
	full := make([]string, 0, len(ts.Tiles))
	for _, tile := range ts.Tiles {
		full = append(full, tile.ID)
	}
	sort.Strings(full)

	r.grid = make([][]Cell, params.Height)
	for y := range r.grid {
		r.grid[y] = make([]Cell, params.Width)
		for x := range r.grid[y] {
			r.grid[y][x] = Cell{domain: append([]string(nil), full...)}
		}
	}
	return r
}

// solve — основной итеративный цикл с явными бюджетами.
func (r *run) solve(maxIterations, backtrackLimit int) error {
	iteration := 0
	backtracks := 0

	for iteration < maxIterations {
		x, y, found := r.lowestEntropyCell()
		if !found {
			// Несхлопнутых клеток нет — решение полное
			return nil
		}

		cell := &r.grid[y][x]
		tileID, ok := r.chooseTile(cell)
		if !ok {
			// Пустой домен у выбранной клетки. Снапшота для нее нет,
			// поэтому откат снимает ПРЕДЫДУЩИЙ коллапс, а не ее саму.
			if backtracks < backtrackLimit {
				r.backtrack()
				backtracks++
				continue
			}
			if backtracks > 0 {
				// Пустота — следствие противоречий, на которые
				// не хватило бюджета
				return fmt.Errorf("%w: cell (%d,%d) still empty after %d backtracks",
					ErrBacktrackExhausted, x, y, backtracks)
			}
			return fmt.Errorf("%w: cell (%d,%d)", ErrNoAdmissibleTile, x, y)
		}

		// Снапшот ДО коллапса: (координата, прежний домен)
		r.stack = append(r.stack, snapshot{
			x: x, y: y,
			domain: append([]string(nil), cell.domain...),
		})

		cell.collapsed = true
		cell.tile = tileID
		cell.domain = []string{tileID}

		if !r.propagate(x, y) {
			// Противоречие: у какого-то соседа домен опустел
			if backtracks < backtrackLimit {
				r.backtrack()
				backtracks++
				continue
			}
			return fmt.Errorf("%w: contradiction at frontier of (%d,%d)",
				ErrBacktrackExhausted, x, y)
		}

		iteration++
	}

	return fmt.Errorf("%w: %d iterations", ErrIterationLimit, maxIterations)
}

// lowestEntropyCell выбирает несхлопнутую клетку с минимальной
// энтропией, разрывая ничьи равновероятно. Клетка с пустым доменом
// имеет энтропию 0 и будет выбрана первой — так пустой домен уходит
// в ветку "нет допустимого тайла", а не в молчаливо-частичный результат.
func (r *run) lowestEntropyCell() (int, int, bool) {
	minEntropy := int(^uint(0) >> 1)
	var candidates [][2]int

	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			cell := &r.grid[y][x]
			if cell.collapsed {
				continue
			}
			entropy := len(cell.domain)
			if entropy < minEntropy {
				minEntropy = entropy
				candidates = candidates[:0]
				candidates = append(candidates, [2]int{x, y})
			} else if entropy == minEntropy {
				candidates = append(candidates, [2]int{x, y})
			}
		}
	}

	if len(candidates) == 0 {
		return 0, 0, false
	}
	pick := candidates[r.rng.Intn(len(candidates))]
	return pick[0], pick[1], true
}

// chooseTile — выборка по кумулятивным весам поверх отсортированного
// домена. Остаток из-за округления достается первому тайлу в порядке
// сортировки (явный и проверяемый тай-брейк).
func (r *run) chooseTile(cell *Cell) (string, bool) {
	if len(cell.domain) == 0 {
		return "", false
	}

	total := 0.0
	for _, id := range cell.domain {
		if tile, ok := r.tileByID[id]; ok {
			total += tile.Weight
		}
	}
	if total <= 0 {
		return cell.domain[0], true
	}

	rv := r.rng.Float64() * total
	for _, id := range cell.domain {
		if tile, ok := r.tileByID[id]; ok {
			rv -= tile.Weight
		}
		if rv <= 0 {
			return id, true
		}
	}
	return cell.domain[0], true
}

// propagate — поиск в ширину от схлопнутой клетки по 4-соседям.
// Обрабатываются только схлопнутые элементы очереди: ограничение
// ключуется конкретным тайлом, у несхлопнутой клетки его нет.
// Сосед с уменьшившимся доменом ставится в очередь повторно.
func (r *run) propagate(startX, startY int) bool {
	queue := [][2]int{{startX, startY}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		cell := &r.grid[cur[1]][cur[0]]
		if !cell.collapsed {
			continue
		}

		for _, dir := range Directions() {
			dx, dy := dir.Offset()
			nx, ny := cur[0]+dx, cur[1]+dy
			if nx < 0 || nx >= r.width || ny < 0 || ny >= r.height {
				continue
			}

			neighbor := &r.grid[ny][nx]
			if neighbor.collapsed {
				continue
			}

			allowed, ok := r.constraints[ruleKey{cell.tile, dir}]
			if !ok {
				// Правила нет — сосед в этом направлении не ограничен
				continue
			}

			before := len(neighbor.domain)
			filtered := neighbor.domain[:0]
			for _, id := range neighbor.domain {
				if _, ok := allowed[id]; ok {
					filtered = append(filtered, id)
				}
			}
			neighbor.domain = filtered

			if len(neighbor.domain) == 0 {
				return false
			}
			if len(neighbor.domain) < before {
				queue = append(queue, [2]int{nx, ny})
			}
		}
	}
	return true
}

// backtrack снимает верхний снапшот и восстанавливает ровно состояние
// клетки до коллапса. Откат одноуровневый: урезанные при распространении
// домены СОСЕДЕЙ не восстанавливаются — известное ограничение,
// воспроизведенное сознательно.
func (r *run) backtrack() {
	if len(r.stack) == 0 {
		return
	}
	snap := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]

	cell := &r.grid[snap.y][snap.x]
	cell.collapsed = false
	cell.tile = ""
	cell.domain = snap.domain
}

// buildLevel превращает решенную сетку в уровень: каждая схлопнутая
// клетка — одна сущность единичного масштаба без поворота.
func (r *run) buildLevel(seed int64, tilesetID string, params Params) *domain.Level {
	objects := make([]domain.Entity, 0, r.width*r.height)

	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			cell := &r.grid[y][x]
			if !cell.collapsed {
				continue
			}
			tile, ok := r.tileByID[cell.tile]
			if !ok {
				continue
			}

			objects = append(objects, domain.Entity{
				ID:   uuid.NewString(),
				Name: fmt.Sprintf("%s_%s_%d_%d", tilesetID, tile.Name, x, y),
				Transform: domain.Transform3D{
					Position: [3]float32{float32(x), 0, float32(y)},
					Rotation: domain.IdentityRotation(),
					Scale:    [3]float32{1, 1, 1},
				},
				Material: fmt.Sprintf("%s_%s", tilesetID, tile.ID),
				Mesh:     tile.MeshType,
				Layer:    "Generated",
				Tags:     []string{"wfc", tilesetID},
				Metadata: map[string]any{
					"tile_type": tile.ID,
					"algorithm": "WFC",
				},
			})
		}
	}

	return &domain.Level{
		ID:               uuid.NewString(),
		Name:             fmt.Sprintf("WFC Level %d (%s)", seed, tilesetID),
		Objects:          objects,
		Layers:           []string{"Generated"},
		GenerationSeed:   &seed,
		GenerationParams: params,
		Bounds: domain.BoundingBox{
			Min: [3]float32{0, 0, 0},
			Max: [3]float32{float32(r.width), 1, float32(r.height)},
		},
	}
}
