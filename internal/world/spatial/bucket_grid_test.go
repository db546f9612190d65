package spatial

import (
	"testing"

	"github.com/annel0/tilegrid/internal/physics"
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketGrid_Dimensions(t *testing.T) {
	g := NewBucketGrid[string](12, 10, 5, 16, 16)
	assert.Equal(t, 3, g.Rows())
	assert.Equal(t, 2, g.Cols())
	assert.Equal(t, 5, g.RegionSize())
	assert.Equal(t, 6, g.Stats().Regions)
}

func TestBucketGrid_RegionsOf(t *testing.T) {
	g := NewBucketGrid[string](20, 20, 5, 16, 16) // регион = 80 единиц

	// Целиком внутри одного региона
	assert.Equal(t, []vec.Coord{vec.C(0, 0)}, g.RegionsOf(physics.Box{X: 10, Y: 10, W: 8, H: 8}))

	// Пересекает вертикальную границу
	assert.Equal(t, []vec.Coord{vec.C(0, 0), vec.C(0, 1)},
		g.RegionsOf(physics.Box{X: 76, Y: 10, W: 8, H: 8}))

	// Пересекает угол четырёх регионов
	assert.Equal(t, []vec.Coord{vec.C(0, 0), vec.C(0, 1), vec.C(1, 0), vec.C(1, 1)},
		g.RegionsOf(physics.Box{X: 76, Y: 76, W: 8, H: 8}))

	// Правая грань ровно на границе не заходит в следующий регион
	assert.Equal(t, []vec.Coord{vec.C(0, 0)}, g.RegionsOf(physics.Box{X: 72, Y: 0, W: 8, H: 8}))
}

func TestBucketGrid_AddRemoveIdempotent(t *testing.T) {
	g := NewBucketGrid[string](10, 10, 5, 16, 16)

	g.Add("a", vec.C(0, 0))
	g.Add("a", vec.C(0, 0))
	assert.True(t, g.Contains("a", vec.C(0, 0)))
	assert.Equal(t, 1, g.Stats().References)

	assert.True(t, g.Remove("a", vec.C(0, 0)))
	assert.False(t, g.Remove("a", vec.C(0, 0)), "повторное удаление: not found")

	// Вне сетки
	g.Add("a", vec.C(5, 5))
	assert.False(t, g.Contains("a", vec.C(5, 5)))
	assert.False(t, g.Remove("a", vec.C(-1, 0)))
	assert.Equal(t, 0, g.Stats().References)
}

func TestBucketGrid_QueryUnion(t *testing.T) {
	g := NewBucketGrid[string](10, 10, 5, 16, 16)
	g.Add("a", vec.C(0, 0))
	g.Add("b", vec.C(0, 1))
	g.Add("a", vec.C(0, 1))
	g.Add("c", vec.C(1, 1))

	got := g.Query([]vec.Coord{vec.C(0, 0), vec.C(0, 1), vec.C(7, 7)})
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "b")
}

func TestBucketGrid_CrossingRegionBoundary(t *testing.T) {
	// Хитбокс шириной 8, регион 5 тайлов по 16 единиц
	g := NewBucketGrid[string](10, 10, 5, 16, 16)
	box := physics.Box{X: 60, Y: 20, W: 8, H: 8}

	current := g.RegionsOf(box)
	for _, r := range current {
		g.Add("mover", r)
	}

	step := vec.V(8, 0)
	for i := 0; i < 4; i++ {
		next := box.Translate(step)
		regions := g.RegionsOf(next)
		g.Move("mover", current, regions)
		current, box = regions, next
	}

	// 60 + 32 = 92: полностью в регионе (0,1)
	require.Equal(t, 92.0, box.Left())
	assert.Contains(t, g.Query([]vec.Coord{vec.C(0, 1)}), "mover")
	assert.NotContains(t, g.Query([]vec.Coord{vec.C(0, 0)}), "mover")
	assert.Equal(t, []vec.Coord{vec.C(0, 1)}, g.RegionsOfItem("mover"))
}

func TestBucketGrid_MoveLeavesSharedRegions(t *testing.T) {
	g := NewBucketGrid[int](10, 10, 5, 16, 16)
	before := []vec.Coord{vec.C(0, 0), vec.C(0, 1)}
	after := []vec.Coord{vec.C(0, 1), vec.C(1, 1)}
	for _, r := range before {
		g.Add(1, r)
	}

	g.Move(1, before, after)
	assert.ElementsMatch(t, after, g.RegionsOfItem(1))
	assert.Contains(t, g.Stats().String(), "2 occupied")
}
