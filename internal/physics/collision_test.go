package physics

import (
	"testing"

	"github.com/annel0/tilegrid/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestBox_Intersects(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 10, H: 10}

	assert.True(t, a.Intersects(Box{X: 5, Y: 5, W: 10, H: 10}))
	// Касание краями не считается пересечением
	assert.False(t, a.Intersects(Box{X: 10, Y: 0, W: 10, H: 10}))
	assert.False(t, a.Intersects(Box{X: 0, Y: 10, W: 10, H: 10}))
}

func TestBox_ClampAgainst_Horizontal(t *testing.T) {
	mover := Box{X: 0, Y: 0, W: 8, H: 8}
	wall := Box{X: 20, Y: 2, W: 8, H: 8}

	// Далеко, касания нет
	v, touched := mover.ClampAgainst(wall, vec.V(5, 0))
	assert.False(t, touched)
	assert.Equal(t, vec.V(5, 0), v)

	// Пересечёт грань, останавливаемся вплотную
	v, touched = mover.ClampAgainst(wall, vec.V(30, 0))
	assert.True(t, touched)
	assert.Equal(t, 12.0, v.X, "должны пройти ровно до контакта")

	// Движение влево к правой грани
	right := Box{X: 40, Y: 0, W: 8, H: 8}
	v, touched = right.ClampAgainst(wall, vec.V(-30, 0))
	assert.True(t, touched)
	assert.Equal(t, -12.0, v.X)
}

func TestBox_ClampAgainst_Vertical(t *testing.T) {
	mover := Box{X: 0, Y: 0, W: 8, H: 8}
	floor := Box{X: 4, Y: 16, W: 8, H: 8}

	v, touched := mover.ClampAgainst(floor, vec.V(0, 100))
	assert.True(t, touched)
	assert.Equal(t, 8.0, v.Y)

	below := Box{X: 0, Y: 40, W: 8, H: 8}
	v, touched = below.ClampAgainst(floor, vec.V(0, -100))
	assert.True(t, touched)
	assert.Equal(t, -16.0, v.Y)
}

func TestBox_ClampAgainst_NoPerpendicularOverlap(t *testing.T) {
	mover := Box{X: 0, Y: 0, W: 8, H: 8}
	// Стоит ниже: по вертикали касания краями нет, строгие неравенства
	other := Box{X: 10, Y: 8, W: 8, H: 8}

	v, touched := mover.ClampAgainst(other, vec.V(20, 0))
	assert.False(t, touched)
	assert.Equal(t, 20.0, v.X)
}

func TestBox_ClampAgainst_Diagonal(t *testing.T) {
	mover := Box{X: 0, Y: 0, W: 8, H: 8}
	other := Box{X: 12, Y: 12, W: 8, H: 8}

	// По X касания нет, но после сдвига по X прямоугольник упирается в верхнюю грань
	v, touched := mover.ClampAgainst(other, vec.V(10, 10))
	assert.True(t, touched)
	assert.Equal(t, vec.V(10, 4), v)
	assert.False(t, mover.Translate(v).Intersects(other))

	// Зеркально: движение влево вверх к правой нижней грани
	mirrored := Box{X: 24, Y: 24, W: 8, H: 8}
	v, touched = mirrored.ClampAgainst(other, vec.V(-10, -10))
	assert.True(t, touched)
	assert.Equal(t, vec.V(-10, -4), v)
	assert.False(t, mirrored.Translate(v).Intersects(other))
}

func TestBox_ClampAgainst_AlreadyOverlappingNeverReverses(t *testing.T) {
	mover := Box{X: 0, Y: 0, W: 8, H: 8}
	other := Box{X: 4, Y: 2, W: 8, H: 8}

	v, touched := mover.ClampAgainst(other, vec.V(5, 0))
	assert.True(t, touched)
	assert.Equal(t, 0.0, v.X, "вглубь не двигаемся, но и назад не выталкиваемся")

	v, touched = other.ClampAgainst(mover, vec.V(-5, 0))
	assert.True(t, touched)
	assert.Equal(t, 0.0, v.X)

	v, touched = mover.ClampAgainst(other, vec.V(0, 5))
	assert.True(t, touched)
	assert.Equal(t, 0.0, v.Y)

	// Движение из пересечения наружу не ограничивается
	v, touched = mover.ClampAgainst(other, vec.V(-5, -5))
	assert.False(t, touched)
	assert.Equal(t, vec.V(-5, -5), v)
}

func TestCellRange(t *testing.T) {
	first, last := CellRange(0, 16, 16)
	assert.Equal(t, 0, first)
	assert.Equal(t, 0, last, "правая грань на границе не занимает следующую клетку")

	first, last = CellRange(10, 20, 16)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, last)

	first, last = CellRange(-4, 4, 16)
	assert.Equal(t, -1, first)
	assert.Equal(t, 0, last)

	first, last = CellRange(32, 32, 16)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, last)
}
