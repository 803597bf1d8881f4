package bsp

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
	"github.com/greysquirr3l/morgan-bevy/pkg/themes"
)

// Params — параметры запроса генерации уровня методом BSP.
// Depth зарезервирован на будущее: сам алгоритм двумерный,
// Depth влияет только на высоту bounds результата.
type Params struct {
	Width         int    `json:"width" yaml:"width"`
	Height        int    `json:"height" yaml:"height"`
	Depth         int    `json:"depth" yaml:"depth"`
	MinRoomSize   int    `json:"min_room_size" yaml:"min_room_size"`
	MaxRoomSize   int    `json:"max_room_size" yaml:"max_room_size"`
	CorridorWidth int    `json:"corridor_width" yaml:"corridor_width"`
	Theme         string `json:"theme" yaml:"theme"`

	// Seed nil означает "возьми текущее время" — такой запуск
	// намеренно невоспроизводим.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Tile — состояние одной клетки тайловой сетки.
type Tile uint8

const (
	TileEmpty Tile = iota
	TileWall
	TileFloor
	TileDoor
	TileCorridor
)

// Kind возвращает имя тайла для поиска шаблона в теме.
func (t Tile) Kind() string {
	switch t {
	case TileWall:
		return "wall"
	case TileFloor:
		return "floor"
	case TileDoor:
		return "door"
	case TileCorridor:
		return "corridor"
	default:
		return ""
	}
}

// Room — прямоугольник комнаты, полезная нагрузка листа дерева.
type Room struct {
	X, Y, W, H int
	ID         string
}

// Node — узел дерева разбиения. Узел либо внутренний (ровно два
// ребенка, Room == nil), либо терминальный (детей нет, Room может
// отсутствовать, если лист оказался меньше минимального размера).
type Node struct {
	Bounds      Room
	Left, Right *Node
	Room        *Room
}

// Generator генерирует уровни методом рекурсивного разбиения
// пространства. Сам Generator не хранит состояния запуска и безопасен
// для повторного использования; каждое состояние живет в run.
type Generator struct {
	themes *themes.Library
}

func NewGenerator(lib *themes.Library) *Generator {
	return &Generator{themes: lib}
}

// Состояние одного запуска: собственный rng и тайловая сетка.
// rng принадлежит исключительно этому запуску — никакого глобального
// рандома, иначе воспроизводимость по сидy развалится.
type run struct {
	rng    *rand.Rand
	grid   [][]Tile
	width  int
	height int
}

// Generate строит уровень. Алгоритм определен так, что вычислительно
// он не падает никогда: патологические параметры (min > max, min
// больше половины сетки) дают разреженный или пустой результат,
// валидация параметров — забота вызывающего слоя.
func (g *Generator) Generate(params Params) *domain.Level {
	seed := time.Now().UnixNano()
	if params.Seed != nil {
		seed = *params.Seed
	}

	logger.Log.Infof("Starting BSP generation %dx%dx%d (seed %d)",
		params.Width, params.Height, params.Depth, seed)

	r := &run{
		rng:    rand.New(rand.NewSource(seed)),
		width:  params.Width,
		height: params.Height,
	}

	// 1. Пустая сетка
	r.grid = make([][]Tile, params.Height)
	for y := range r.grid {
		r.grid[y] = make([]Tile, params.Width)
	}

	// 2. Дерево разбиения: один проход сверху вниз, без бэктрекинга
	root := r.buildTree(Room{
		X: 0, Y: 0, W: params.Width, H: params.Height,
		ID: uuid.NewString(),
	}, params)

	// 3. Комнаты, затем коридоры поверх них
	r.placeRooms(root)
	r.carveCorridors(root, params.CorridorWidth)

	// 4. Сетка -> сущности по шаблонам темы
	theme := g.themes.Get(params.Theme)
	objects := r.gridToEntities(theme)

	level := &domain.Level{
		ID:               uuid.NewString(),
		Name:             fmt.Sprintf("BSP Level %d", seed),
		Objects:          objects,
		Layers:           []string{"Walls", "Floors", "Doors", "Collision"},
		GenerationSeed:   &seed,
		GenerationParams: params,
		Bounds: domain.BoundingBox{
			Min: [3]float32{0, 0, 0},
			Max: [3]float32{float32(params.Width), float32(params.Depth), float32(params.Height)},
		},
	}

	logger.Log.Infof("BSP generation complete: %d objects", len(level.Objects))
	return level
}

// buildTree рекурсивно разбивает прямоугольник.
func (r *run) buildTree(bounds Room, params Params) *Node {
	node := &Node{Bounds: bounds}

	// Достаточно маленький прямоугольник — терминал.
	// Комнатой он становится только если дорос до минимума,
	// слишком мелкие листья молча выбрасываются.
	if bounds.W <= params.MaxRoomSize && bounds.H <= params.MaxRoomSize {
		if bounds.W >= params.MinRoomSize && bounds.H >= params.MinRoomSize {
			room := bounds
			node.Room = &room
		}
		return node
	}

	// Выбор оси: 80/20 в пользу длинной стороны, 50/50 для квадрата
	var splitVertical bool
	switch {
	case bounds.W > bounds.H:
		splitVertical = r.rng.Float64() < 0.8
	case bounds.H > bounds.W:
		splitVertical = r.rng.Float64() < 0.2
	default:
		splitVertical = r.rng.Float64() < 0.5
	}

	// Резать можно только если обе половины доживут до минимума,
	// иначе откатываемся к логике терминала.
	if splitVertical && bounds.W >= params.MinRoomSize*2 {
		split := params.MinRoomSize + r.rng.Intn(bounds.W-params.MinRoomSize*2+1)
		node.Left = r.buildTree(Room{
			X: bounds.X, Y: bounds.Y, W: split, H: bounds.H,
			ID: uuid.NewString(),
		}, params)
		node.Right = r.buildTree(Room{
			X: bounds.X + split, Y: bounds.Y, W: bounds.W - split, H: bounds.H,
			ID: uuid.NewString(),
		}, params)
	} else if !splitVertical && bounds.H >= params.MinRoomSize*2 {
		split := params.MinRoomSize + r.rng.Intn(bounds.H-params.MinRoomSize*2+1)
		node.Left = r.buildTree(Room{
			X: bounds.X, Y: bounds.Y, W: bounds.W, H: split,
			ID: uuid.NewString(),
		}, params)
		node.Right = r.buildTree(Room{
			X: bounds.X, Y: bounds.Y + split, W: bounds.W, H: bounds.H - split,
			ID: uuid.NewString(),
		}, params)
	} else {
		// Выбранная ось не режется — узел становится терминалом.
		// Комната обязана уложиться в [min, max] по обеим осям,
		// иначе лист выбрасывается, как и слишком мелкий.
		if bounds.W >= params.MinRoomSize && bounds.H >= params.MinRoomSize &&
			bounds.W <= params.MaxRoomSize && bounds.H <= params.MaxRoomSize {
			room := bounds
			node.Room = &room
		}
	}

	return node
}

// placeRooms растеризует комнаты: внутренность — пол, граница — стена.
// Стена не перезаписывает уже положенный пол (при наложениях
// последняя запись пола выигрывает).
func (r *run) placeRooms(node *Node) {
	if node == nil {
		return
	}

	if room := node.Room; room != nil {
		for y := room.Y; y < room.Y+room.H; y++ {
			for x := room.X; x < room.X+room.W; x++ {
				if x < 0 || x >= r.width || y < 0 || y >= r.height {
					continue
				}
				border := x == room.X || x == room.X+room.W-1 ||
					y == room.Y || y == room.Y+room.H-1
				if border {
					if r.grid[y][x] != TileFloor {
						r.grid[y][x] = TileWall
					}
				} else {
					r.grid[y][x] = TileFloor
				}
			}
		}
	}

	r.placeRooms(node.Left)
	r.placeRooms(node.Right)
}

// carveCorridors идет снизу вверх: сперва коридоры внутри поддеревьев,
// затем соединяются сами поддеревья.
func (r *run) carveCorridors(node *Node, width int) {
	if node == nil || node.Left == nil || node.Right == nil {
		return
	}

	r.carveCorridors(node.Left, width)
	r.carveCorridors(node.Right, width)

	left := findRoom(node.Left)
	right := findRoom(node.Right)
	if left != nil && right != nil {
		r.connectRooms(left, right, width)
	}
}

// findRoom — представитель поддерева: первая найденная комната
// в порядке DFS (сам узел, потом левый, потом правый ребенок).
// Не ближайшая — именно первая найденная, это осознанная семантика.
func findRoom(node *Node) *Room {
	if node == nil {
		return nil
	}
	if node.Room != nil {
		return node.Room
	}
	if room := findRoom(node.Left); room != nil {
		return room
	}
	return findRoom(node.Right)
}

// interiorPoint — случайная внутренняя точка комнаты. Для вырожденно
// узких комнат (ширина/высота <= 2) берется центр, чтобы генератор
// не падал на патологических параметрах.
func (r *run) interiorPoint(room *Room) (int, int) {
	x := room.X + room.W/2
	y := room.Y + room.H/2
	if room.W > 2 {
		x = room.X + 1 + r.rng.Intn(room.W-2)
	}
	if room.H > 2 {
		y = room.Y + 1 + r.rng.Intn(room.H-2)
	}
	return x, y
}

func (r *run) connectRooms(a, b *Room, width int) {
	x1, y1 := r.interiorPoint(a)
	x2, y2 := r.interiorPoint(b)

	// Два кандидата угла L-образного коридора: (x2,y1) или (x1,y2).
	// Выбираем один случайно и режем два перпендикулярных сегмента.
	if r.rng.Float64() < 0.5 {
		r.carveHorizontal(x1, x2, y1, width)
		r.carveVertical(y1, y2, x2, width)
	} else {
		r.carveVertical(y1, y2, x1, width)
		r.carveHorizontal(x1, x2, y2, width)
	}
}

// carveHorizontal кладет коридор между x1 и x2 на строке y,
// безусловно перезаписывая что угодно, включая стены. Да, это может
// стереть сознательно поставленную стену — поведение сохранено как есть.
func (r *run) carveHorizontal(x1, x2, y, width int) {
	start, end := min(x1, x2), max(x1, x2)
	for x := start; x <= end; x++ {
		for w := 0; w < width; w++ {
			r.setCorridor(x, y+w)
		}
	}
}

func (r *run) carveVertical(y1, y2, x, width int) {
	start, end := min(y1, y2), max(y1, y2)
	for y := start; y <= end; y++ {
		for w := 0; w < width; w++ {
			r.setCorridor(x+w, y)
		}
	}
}

func (r *run) setCorridor(x, y int) {
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.grid[y][x] = TileCorridor
	}
}

// gridToEntities превращает каждый непустой тайл в одну сущность.
// Позиция — из координат сетки, вертикальное смещение и масштаб —
// из шаблона темы для данного типа тайла.
func (r *run) gridToEntities(theme *themes.Theme) []domain.Entity {
	objects := make([]domain.Entity, 0, r.width*r.height/2)

	for y, row := range r.grid {
		for x, tile := range row {
			kind := tile.Kind()
			if kind == "" {
				continue
			}
			tpl, ok := theme.Tile(kind)
			if !ok {
				continue
			}
			objects = append(objects, tileEntity(kind, x, y, theme, tpl))
		}
	}
	return objects
}

func tileEntity(kind string, x, y int, theme *themes.Theme, tpl themes.TileTemplate) domain.Entity {
	tags := make([]string, 0, len(tpl.Tags)+1)
	tags = append(tags, tpl.Tags...)
	tags = append(tags, theme.ID)

	metadata := make(map[string]any, len(tpl.Metadata))
	for k, v := range tpl.Metadata {
		metadata[k] = v
	}

	return domain.Entity{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("%s_%d_%d", kind, x, y),
		Transform: domain.Transform3D{
			Position: [3]float32{
				float32(x) + tpl.Offset[0],
				tpl.Offset[1],
				float32(y) + tpl.Offset[2],
			},
			Rotation: domain.IdentityRotation(),
			Scale:    tpl.Scale,
		},
		Material: tpl.Material,
		Mesh:     tpl.Mesh,
		Layer:    tpl.Layer,
		Tags:     tags,
		Metadata: metadata,
	}
}
