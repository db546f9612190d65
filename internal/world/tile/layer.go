package tile

import (
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
)

// NullPointer значение ячейки указателей, не ссылающейся ни на какой объект
const NullPointer = -1

// Layer представляет одну плоскость статических объектов.
//
// Объект хранится один раз, в клетке своего начала (slots). Параллельная сетка
// pointers для каждой клетки его Span хранит плоский индекс начала, поэтому
// многоклеточный объект находится из любой занятой им клетки.
type Layer struct {
	rows, cols int
	slots      []*entity.Object
	pointers   []int
	count      int
}

// NewLayer создаёт пустой слой rows x cols
func NewLayer(rows, cols int) *Layer {
	pointers := make([]int, rows*cols)
	for i := range pointers {
		pointers[i] = NullPointer
	}
	return &Layer{
		rows:     rows,
		cols:     cols,
		slots:    make([]*entity.Object, rows*cols),
		pointers: pointers,
	}
}

func (l *Layer) Rows() int { return l.rows }
func (l *Layer) Cols() int { return l.cols }

// Count возвращает количество размещённых объектов
func (l *Layer) Count() int { return l.count }

// InBounds проверяет, лежит ли клетка внутри слоя
func (l *Layer) InBounds(c vec.Coord) bool {
	return c.InRange(l.rows-1, l.cols-1)
}

// Place записывает объект в клетку origin и направляет на неё указатели всех клеток Span.
// Возвращает клетки хитбоксов, которые должны стать непроходимыми.
//
// origin не проверяется на выход за границы: это ошибка вызывающего кода.
// Клетки Span за пределами слоя пропускаются.
func (l *Layer) Place(obj *entity.Object, origin vec.Coord) []vec.Coord {
	if obj == nil {
		return nil
	}

	originIdx := origin.Index(l.cols)
	l.slots[originIdx] = obj
	l.pointers[originIdx] = originIdx
	l.count++

	for _, p := range obj.Span {
		cell := origin.Add(p)
		if !l.InBounds(cell) {
			continue
		}
		l.pointers[cell.Index(l.cols)] = originIdx
	}

	return translate(origin, obj.Hitboxes)
}

// Remove удаляет объект, занимающий клетку cell (начало находится через указатель).
// Возвращает удалённый объект и клетки хитбоксов, которые снова становятся проходимыми.
// Пустая клетка или клетка вне слоя игнорируется.
func (l *Layer) Remove(cell vec.Coord) (*entity.Object, []vec.Coord) {
	origin, ok := l.OriginOf(cell)
	if !ok {
		return nil, nil
	}

	originIdx := origin.Index(l.cols)
	obj := l.slots[originIdx]
	if obj == nil {
		return nil, nil
	}

	l.slots[originIdx] = nil
	l.pointers[originIdx] = NullPointer
	l.count--

	for _, p := range obj.Span {
		c := origin.Add(p)
		if !l.InBounds(c) {
			continue
		}
		idx := c.Index(l.cols)
		if l.pointers[idx] == originIdx {
			l.pointers[idx] = NullPointer
		}
	}

	return obj, translate(origin, obj.Hitboxes)
}

// OriginOf возвращает клетку начала объекта, занимающего cell
func (l *Layer) OriginOf(cell vec.Coord) (vec.Coord, bool) {
	if !l.InBounds(cell) {
		return vec.Coord{}, false
	}
	ptr := l.pointers[cell.Index(l.cols)]
	if ptr == NullPointer {
		return vec.Coord{}, false
	}
	return vec.CoordOf(ptr, l.cols), true
}

// PointerAt возвращает сырое значение указателя клетки (NullPointer для пустых и внешних клеток)
func (l *Layer) PointerAt(cell vec.Coord) int {
	if !l.InBounds(cell) {
		return NullPointer
	}
	return l.pointers[cell.Index(l.cols)]
}

// ObjectAt возвращает объект, хранящийся в клетке напрямую или через указатель.
// Для пустых клеток и клеток вне слоя возвращает nil.
func (l *Layer) ObjectAt(cell vec.Coord) *entity.Object {
	if !l.InBounds(cell) {
		return nil
	}
	idx := cell.Index(l.cols)
	if obj := l.slots[idx]; obj != nil {
		return obj
	}
	if ptr := l.pointers[idx]; ptr != NullPointer {
		return l.slots[ptr]
	}
	return nil
}

// IsOccupied булева форма ObjectAt
func (l *Layer) IsOccupied(cell vec.Coord) bool {
	return l.ObjectAt(cell) != nil
}

// Each обходит клетки начала объектов в построчном порядке.
// Объект читается из слота в момент обхода, поэтому изменения слоя внутри fn
// видны для ещё не пройденных клеток.
func (l *Layer) Each(fn func(origin vec.Coord, obj *entity.Object)) {
	for idx, obj := range l.slots {
		if obj == nil {
			continue
		}
		fn(vec.CoordOf(idx, l.cols), obj)
	}
}

func translate(origin vec.Coord, offsets []vec.Coord) []vec.Coord {
	if len(offsets) == 0 {
		return nil
	}
	cells := make([]vec.Coord, len(offsets))
	for i, p := range offsets {
		cells[i] = origin.Add(p)
	}
	return cells
}
