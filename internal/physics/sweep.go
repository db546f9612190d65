package physics

import (
	"github.com/annel0/tilegrid/internal/vec"
)

// BlockChecker сообщает, является ли тайл непроходимым.
// Тайлы за пределами сетки должны считаться проходимыми.
type BlockChecker func(tile vec.Coord) bool

// SweepVertical проверяет вертикальное перемещение box на dy против сетки тайлов.
// Если край пересекает новые строки, проверяются все столбцы, занятые box,
// в каждой пересекаемой строке (от ближней к дальней). Первый непроходимый
// тайл ограничивает dy так, чтобы край встал ровно на границу тайла.
func SweepVertical(box Box, dy, tileW, tileH float64, blocked BlockChecker) (float64, bool) {
	if dy == 0 {
		return 0, false
	}

	firstCol, lastCol := CellRange(box.Left(), box.Right(), tileW)

	if dy > 0 {
		cur := LastCell(box.Bottom(), tileH)
		dest := LastCell(box.Bottom()+dy, tileH)
		for row := cur + 1; row <= dest; row++ {
			for col := firstCol; col <= lastCol; col++ {
				if blocked(vec.C(row, col)) {
					return float64(row)*tileH - box.Bottom(), true
				}
			}
		}
		return dy, false
	}

	cur := FirstCell(box.Top(), tileH)
	dest := FirstCell(box.Top()+dy, tileH)
	for row := cur - 1; row >= dest; row-- {
		for col := firstCol; col <= lastCol; col++ {
			if blocked(vec.C(row, col)) {
				return float64(row+1)*tileH - box.Top(), true
			}
		}
	}
	return dy, false
}

// SweepHorizontal: симметричная проверка по оси X
func SweepHorizontal(box Box, dx, tileW, tileH float64, blocked BlockChecker) (float64, bool) {
	if dx == 0 {
		return 0, false
	}

	firstRow, lastRow := CellRange(box.Top(), box.Bottom(), tileH)

	if dx > 0 {
		cur := LastCell(box.Right(), tileW)
		dest := LastCell(box.Right()+dx, tileW)
		for col := cur + 1; col <= dest; col++ {
			for row := firstRow; row <= lastRow; row++ {
				if blocked(vec.C(row, col)) {
					return float64(col)*tileW - box.Right(), true
				}
			}
		}
		return dx, false
	}

	cur := FirstCell(box.Left(), tileW)
	dest := FirstCell(box.Left()+dx, tileW)
	for col := cur - 1; col >= dest; col-- {
		for row := firstRow; row <= lastRow; row++ {
			if blocked(vec.C(row, col)) {
				return float64(col+1)*tileW - box.Left(), true
			}
		}
	}
	return dx, false
}
