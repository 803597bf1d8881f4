package spatial

import (
	"github.com/greysquirr3l/morgan-bevy/internal/domain"
)

// Index — плоский пространственный индекс: ID объекта -> его AABB.
// Запросы линейные, что на масштабе редактора (сотни — низкие тысячи
// объектов) дешевле, чем поддержка дерева. Если когда-нибудь станет
// тесно, можно заменить на сетку или R-дерево, сохранив семантику.
//
// Индекс НЕ потокобезопасен: сериализацию мутаций обеспечивает
// вызывающий слой (editor.Service держит общий мьютекс).
type Index struct {
	objects map[string]domain.BoundingBox
}

func NewIndex() *Index {
	return &Index{
		objects: make(map[string]domain.BoundingBox),
	}
}

// Insert вычисляет AABB из трансформа и сохраняет его под данным ID.
// Повторный Insert с тем же ID просто перезаписывает запись.
func (idx *Index) Insert(objectID string, t domain.Transform3D) {
	idx.objects[objectID] = domain.BoundsFromTransform(t)
}

// Update идентичен Insert. Отдельное имя оставлено,
// чтобы вызывающий код читался по смыслу операции.
func (idx *Index) Update(objectID string, t domain.Transform3D) {
	idx.Insert(objectID, t)
}

// Remove удаляет запись. Отсутствие ID — не ошибка.
func (idx *Index) Remove(objectID string) {
	delete(idx.objects, objectID)
}

// Clear очищает индекс целиком.
func (idx *Index) Clear() {
	idx.objects = make(map[string]domain.BoundingBox)
}

// Len возвращает количество проиндексированных объектов.
func (idx *Index) Len() int {
	return len(idx.objects)
}

// QueryBounds возвращает ID всех объектов, чьи AABB пересекают bounds.
// Касание граней считается пересечением (закрытые интервалы по всем осям).
func (idx *Index) QueryBounds(bounds domain.BoundingBox) []string {
	results := make([]string, 0)
	for id, objBounds := range idx.objects {
		if bounds.Intersects(objBounds) {
			results = append(results, id)
		}
	}
	return results
}
