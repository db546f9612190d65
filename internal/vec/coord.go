package vec

import "fmt"

// Coord целочисленная координата клетки сетки (строка, столбец).
// Все операции покомпонентные, нормализация не выполняется.
type Coord struct {
	Row, Col int
}

// C короткий конструктор координаты.
func C(row, col int) Coord {
	return Coord{Row: row, Col: col}
}

// String возвращает координату в виде "(row,col)"
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Add складывает координаты
func (c Coord) Add(o Coord) Coord {
	return Coord{Row: c.Row + o.Row, Col: c.Col + o.Col}
}

// Sub вычитает координаты
func (c Coord) Sub(o Coord) Coord {
	return Coord{Row: c.Row - o.Row, Col: c.Col - o.Col}
}

// Mul умножает покомпонентно
func (c Coord) Mul(o Coord) Coord {
	return Coord{Row: c.Row * o.Row, Col: c.Col * o.Col}
}

// Div делит покомпонентно. Деление на ноль остаётся на совести вызывающего кода.
func (c Coord) Div(o Coord) Coord {
	return Coord{Row: c.Row / o.Row, Col: c.Col / o.Col}
}

// Mod возвращает покомпонентный остаток от деления
func (c Coord) Mod(o Coord) Coord {
	return Coord{Row: c.Row % o.Row, Col: c.Col % o.Col}
}

func (c Coord) AddScalar(s int) Coord { return Coord{Row: c.Row + s, Col: c.Col + s} }
func (c Coord) SubScalar(s int) Coord { return Coord{Row: c.Row - s, Col: c.Col - s} }
func (c Coord) MulScalar(s int) Coord { return Coord{Row: c.Row * s, Col: c.Col * s} }
func (c Coord) DivScalar(s int) Coord { return Coord{Row: c.Row / s, Col: c.Col / s} }
func (c Coord) ModScalar(s int) Coord { return Coord{Row: c.Row % s, Col: c.Col % s} }

// ClampLower поднимает обе компоненты как минимум до lower (включительно)
func (c Coord) ClampLower(lower int) Coord {
	return Coord{Row: max(c.Row, lower), Col: max(c.Col, lower)}
}

// ClampUpper ограничивает обе компоненты сверху значением upper (включительно)
func (c Coord) ClampUpper(upper int) Coord {
	return Coord{Row: min(c.Row, upper), Col: min(c.Col, upper)}
}

// Clamp ограничивает обе компоненты диапазоном [lower, upper]
func (c Coord) Clamp(lower, upper int) Coord {
	return c.ClampLower(lower).ClampUpper(upper)
}

// ClampLowerCoord ограничивает снизу покомпонентно границей lower
func (c Coord) ClampLowerCoord(lower Coord) Coord {
	return Coord{Row: max(c.Row, lower.Row), Col: max(c.Col, lower.Col)}
}

// ClampUpperCoord ограничивает сверху покомпонентно границей upper
func (c Coord) ClampUpperCoord(upper Coord) Coord {
	return Coord{Row: min(c.Row, upper.Row), Col: min(c.Col, upper.Col)}
}

// ClampCoord ограничивает покомпонентно диапазоном [lower, upper]
func (c Coord) ClampCoord(lower, upper Coord) Coord {
	return c.ClampLowerCoord(lower).ClampUpperCoord(upper)
}

// InRange сообщает, лежит ли координата в [0, rowBound] x [0, colBound].
// Границы включительные.
func (c Coord) InRange(rowBound, colBound int) bool {
	return c.Row >= 0 && c.Row <= rowBound && c.Col >= 0 && c.Col <= colBound
}

// Index переводит координату в индекс плоского массива с шириной cols
func (c Coord) Index(cols int) int {
	return c.Row*cols + c.Col
}

// CoordOf обратное к Index преобразование
func CoordOf(index, cols int) Coord {
	return Coord{Row: index / cols, Col: index % cols}
}
