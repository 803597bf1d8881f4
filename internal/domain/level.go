package domain

// Transform3D описывает положение объекта в 3D-сцене.
// Rotation хранится как кватернион [x, y, z, w], identity = [0,0,0,1].
type Transform3D struct {
	Position [3]float32 `json:"position" yaml:"position"`
	Rotation [4]float32 `json:"rotation" yaml:"rotation"`
	Scale    [3]float32 `json:"scale" yaml:"scale"`
}

// IdentityRotation возвращает кватернион без поворота.
func IdentityRotation() [4]float32 {
	return [4]float32{0, 0, 0, 1}
}

// BoundingBox — осевой ограничивающий параллелепипед (AABB).
type BoundingBox struct {
	Min [3]float32 `json:"min" yaml:"min"`
	Max [3]float32 `json:"max" yaml:"max"`
}

// BoundsFromTransform строит AABB вокруг центра объекта.
// Габариты берутся из Scale: центр ± половина масштаба по каждой оси.
func BoundsFromTransform(t Transform3D) BoundingBox {
	var b BoundingBox
	for i := 0; i < 3; i++ {
		half := t.Scale[i] * 0.5
		b.Min[i] = t.Position[i] - half
		b.Max[i] = t.Position[i] + half
	}
	return b
}

// Intersects проверяет пересечение двух AABB.
// Интервалы закрытые: касание граней считается пересечением.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.Max[0] >= other.Min[0] && b.Min[0] <= other.Max[0] &&
		b.Max[1] >= other.Min[1] && b.Min[1] <= other.Max[1] &&
		b.Max[2] >= other.Min[2] && b.Min[2] <= other.Max[2]
}

// Entity — один объект сцены: плитка пола, стена, дверь и т.д.
// Material и Mesh — строковые ссылки на ассеты, здесь они никогда
// не резолвятся (каталогом ассетов занимается internal/assets).
type Entity struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Transform Transform3D    `json:"transform" yaml:"transform"`
	Material  string         `json:"material,omitempty" yaml:"material,omitempty"`
	Mesh      string         `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	Layer     string         `json:"layer" yaml:"layer"`
	Tags      []string       `json:"tags" yaml:"tags"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata"`
}

// Bounds возвращает AABB сущности, вычисленный из её трансформа.
func (e *Entity) Bounds() BoundingBox {
	return BoundsFromTransform(e.Transform)
}

// Level — общий контракт вывода обоих генераторов.
// Создается целиком одним вызовом генерации или загрузкой из файла,
// при повторной генерации заменяется целиком.
//
// Инварианта "Bounds содержит все сущности" при ручных правках
// трансформов никто не форсирует — это осознанное упрощение.
type Level struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Objects []Entity `json:"objects" yaml:"objects"`
	Layers  []string `json:"layers" yaml:"layers"`

	// GenerationSeed и GenerationParams сохраняются для воспроизводимости:
	// клиент может повторить генерацию с тем же зерном.
	GenerationSeed   *int64 `json:"generation_seed,omitempty" yaml:"generation_seed,omitempty"`
	GenerationParams any    `json:"generation_params,omitempty" yaml:"generation_params,omitempty"`

	Bounds BoundingBox `json:"bounds" yaml:"bounds"`
}

// FindObject ищет сущность по ID. Возвращает nil, если её нет.
func (l *Level) FindObject(id string) *Entity {
	for i := range l.Objects {
		if l.Objects[i].ID == id {
			return &l.Objects[i]
		}
	}
	return nil
}
