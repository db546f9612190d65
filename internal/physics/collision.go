package physics

import (
	"math"

	"github.com/annel0/tilegrid/internal/vec"
)

// Box осевой прямоугольник в непрерывных координатах мира.
// X, Y задают левый верхний угол, ось Y направлена вниз.
type Box struct {
	X, Y float64
	W, H float64
}

// NewBox создаёт прямоугольник по позиции и размеру
func NewBox(pos, size vec.Vec2Float) Box {
	return Box{X: pos.X, Y: pos.Y, W: size.X, H: size.Y}
}

func (b Box) Left() float64   { return b.X }
func (b Box) Right() float64  { return b.X + b.W }
func (b Box) Top() float64    { return b.Y }
func (b Box) Bottom() float64 { return b.Y + b.H }

// Translate возвращает прямоугольник, сдвинутый на d
func (b Box) Translate(d vec.Vec2Float) Box {
	return Box{X: b.X + d.X, Y: b.Y + d.Y, W: b.W, H: b.H}
}

// Intersects проверяет строгое пересечение (касание краями пересечением не считается)
func (b Box) Intersects(o Box) bool {
	return b.Right() > o.Left() &&
		b.Left() < o.Right() &&
		b.Bottom() > o.Top() &&
		b.Top() < o.Bottom()
}

// overlapsVertically: проекции на ось Y пересекаются
func (b Box) overlapsVertically(o Box) bool {
	return b.Bottom() > o.Top() && b.Top() < o.Bottom()
}

// overlapsHorizontally: проекции на ось X пересекаются
func (b Box) overlapsHorizontally(o Box) bool {
	return b.Right() > o.Left() && b.Left() < o.Right()
}

// IsTouchingLeft: двигаясь вправо со скоростью v, b упрётся в левую грань o.
// Передний край пересечёт грань, задний ещё не прошёл её.
func (b Box) IsTouchingLeft(o Box, v vec.Vec2Float) bool {
	return v.X > 0 &&
		b.Right()+v.X > o.Left() &&
		b.Left() < o.Left() &&
		b.overlapsVertically(o)
}

// IsTouchingRight: двигаясь влево, b упрётся в правую грань o
func (b Box) IsTouchingRight(o Box, v vec.Vec2Float) bool {
	return v.X < 0 &&
		b.Left()+v.X < o.Right() &&
		b.Right() > o.Right() &&
		b.overlapsVertically(o)
}

// IsTouchingTop: двигаясь вниз, b упрётся в верхнюю грань o
func (b Box) IsTouchingTop(o Box, v vec.Vec2Float) bool {
	return v.Y > 0 &&
		b.Bottom()+v.Y > o.Top() &&
		b.Top() < o.Top() &&
		b.overlapsHorizontally(o)
}

// IsTouchingBottom: двигаясь вверх, b упрётся в нижнюю грань o
func (b Box) IsTouchingBottom(o Box, v vec.Vec2Float) bool {
	return v.Y < 0 &&
		b.Top()+v.Y < o.Bottom() &&
		b.Bottom() > o.Bottom() &&
		b.overlapsHorizontally(o)
}

// ClampAgainst ограничивает скорость v так, чтобы b остановился вплотную к o.
// Возвращает скорректированную скорость и признак касания хотя бы с одной стороны.
// Оси разрешаются по очереди: сначала X по текущему положению, затем Y для
// прямоугольника, уже сдвинутого на ограниченное v.X. Поэтому диагональный
// подход тоже упирается в грань. Ограничение никогда не меняет знак скорости:
// уже пересекающийся прямоугольник останавливается, а не выталкивается назад.
func (b Box) ClampAgainst(o Box, v vec.Vec2Float) (vec.Vec2Float, bool) {
	touched := false

	if b.IsTouchingLeft(o, v) {
		v.X = max(0, o.Left()-b.Right())
		touched = true
	} else if b.IsTouchingRight(o, v) {
		v.X = min(0, o.Right()-b.Left())
		touched = true
	}

	moved := b.Translate(vec.V(v.X, 0))
	if moved.IsTouchingTop(o, v) {
		v.Y = max(0, o.Top()-moved.Bottom())
		touched = true
	} else if moved.IsTouchingBottom(o, v) {
		v.Y = min(0, o.Bottom()-moved.Top())
		touched = true
	}

	return v, touched
}

// FirstCell возвращает индекс клетки, в которую попадает начальная (левая/верхняя) грань
func FirstCell(edge, cellSize float64) int {
	return int(math.Floor(edge / cellSize))
}

// LastCell возвращает индекс клетки, в которую попадает конечная (правая/нижняя) грань.
// Грань, лежащая ровно на границе клеток, к следующей клетке не относится.
func LastCell(edge, cellSize float64) int {
	return int(math.Ceil(edge/cellSize)) - 1
}

// CellRange возвращает диапазон клеток [first, last], покрываемых отрезком [lo, hi).
// Для вырожденного отрезка возвращается одна клетка.
func CellRange(lo, hi, cellSize float64) (int, int) {
	first := FirstCell(lo, cellSize)
	last := LastCell(hi, cellSize)
	if last < first {
		last = first
	}
	return first, last
}
