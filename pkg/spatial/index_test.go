package spatial

import (
	"fmt"
	"sort"
	"testing"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
)

func unitTransform(x, y, z float32) domain.Transform3D {
	return domain.Transform3D{
		Position: [3]float32{x, y, z},
		Rotation: domain.IdentityRotation(),
		Scale:    [3]float32{1, 1, 1},
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	idx := NewIndex()

	// Вставляем N объектов вдоль оси X
	const n = 50
	for i := 0; i < n; i++ {
		idx.Insert(fmt.Sprintf("obj_%d", i), unitTransform(float32(i)*2, 0, 0))
	}

	if idx.Len() != n {
		t.Fatalf("Expected %d objects in index, got %d", n, idx.Len())
	}

	// Запрос объединения всех AABB должен вернуть все N объектов
	all := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{-1, -1, -1},
		Max: [3]float32{float32(n) * 2, 1, 1},
	})
	if len(all) != n {
		t.Errorf("Query over union of bounds returned %d ids, expected %d", len(all), n)
	}
}

func TestQueryTouchingFacesCount(t *testing.T) {
	idx := NewIndex()
	// Единичный куб с центром в (0,0,0): AABB [-0.5, 0.5]
	idx.Insert("cube", unitTransform(0, 0, 0))

	// Запрос, касающийся грани куба ровно в x=0.5
	touching := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{0.5, -0.5, -0.5},
		Max: [3]float32{1.5, 0.5, 0.5},
	})
	if len(touching) != 1 {
		t.Errorf("Touching faces must count as intersecting, got %d results", len(touching))
	}

	// А чуть дальше — уже нет
	apart := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{0.51, -0.5, -0.5},
		Max: [3]float32{1.5, 0.5, 0.5},
	})
	if len(apart) != 0 {
		t.Errorf("Disjoint boxes must not intersect, got %d results", len(apart))
	}
}

func TestRemoveExcludesFromQueries(t *testing.T) {
	idx := NewIndex()
	idx.Insert("a", unitTransform(0, 0, 0))
	idx.Insert("b", unitTransform(1, 0, 0))

	idx.Remove("a")
	// Повторное удаление — не ошибка
	idx.Remove("a")

	got := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{-10, -10, -10},
		Max: [3]float32{10, 10, 10},
	})
	sort.Strings(got)
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("Expected only [b] after remove, got %v", got)
	}
}

func TestUpdateMovesBounds(t *testing.T) {
	idx := NewIndex()
	idx.Insert("mover", unitTransform(0, 0, 0))
	idx.Update("mover", unitTransform(100, 0, 0))

	near := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{-2, -2, -2},
		Max: [3]float32{2, 2, 2},
	})
	if len(near) != 0 {
		t.Errorf("Object should have moved out of the old region, got %v", near)
	}

	far := idx.QueryBounds(domain.BoundingBox{
		Min: [3]float32{99, -1, -1},
		Max: [3]float32{101, 1, 1},
	})
	if len(far) != 1 {
		t.Errorf("Object should be found at its new position, got %v", far)
	}
}

func TestClear(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 10; i++ {
		idx.Insert(fmt.Sprintf("e%d", i), unitTransform(float32(i), 0, 0))
	}
	idx.Clear()
	if idx.Len() != 0 {
		t.Errorf("Index not empty after Clear: %d entries", idx.Len())
	}
}

func TestBoundsScaleHalving(t *testing.T) {
	// AABB = центр ± половина масштаба
	tr := domain.Transform3D{
		Position: [3]float32{10, 20, 30},
		Rotation: domain.IdentityRotation(),
		Scale:    [3]float32{2, 4, 6},
	}
	b := domain.BoundsFromTransform(tr)

	expectMin := [3]float32{9, 18, 27}
	expectMax := [3]float32{11, 22, 33}
	if b.Min != expectMin || b.Max != expectMax {
		t.Errorf("Wrong AABB: min=%v max=%v", b.Min, b.Max)
	}
}
