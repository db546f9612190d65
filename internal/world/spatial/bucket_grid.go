package spatial

import (
	"fmt"

	"github.com/annel0/tilegrid/internal/physics"
	"github.com/annel0/tilegrid/internal/vec"
)

// BucketGrid пространственный индекс для быстрого поиска подвижных сущностей.
// Мир разбит на регионы по RegionSize x RegionSize тайлов; каждый регион хранит
// неупорядоченное множество сущностей, хитбокс которых его пересекает.
type BucketGrid[T comparable] struct {
	rows, cols int // размер сетки в регионах
	regionSize int // размер региона в тайлах
	regionW    float64
	regionH    float64
	buckets    []map[T]struct{}
}

// NewBucketGrid создаёт сетку регионов, покрывающую tileRows x tileCols тайлов
func NewBucketGrid[T comparable](tileRows, tileCols, regionSize int, tileW, tileH float64) *BucketGrid[T] {
	if regionSize <= 0 {
		regionSize = 1
	}
	rows := (tileRows + regionSize - 1) / regionSize
	cols := (tileCols + regionSize - 1) / regionSize

	buckets := make([]map[T]struct{}, rows*cols)
	for i := range buckets {
		buckets[i] = make(map[T]struct{})
	}

	return &BucketGrid[T]{
		rows:       rows,
		cols:       cols,
		regionSize: regionSize,
		regionW:    float64(regionSize) * tileW,
		regionH:    float64(regionSize) * tileH,
		buckets:    buckets,
	}
}

func (g *BucketGrid[T]) Rows() int       { return g.rows }
func (g *BucketGrid[T]) Cols() int       { return g.cols }
func (g *BucketGrid[T]) RegionSize() int { return g.regionSize }

// InBounds проверяет, существует ли регион
func (g *BucketGrid[T]) InBounds(region vec.Coord) bool {
	return region.InRange(g.rows-1, g.cols-1)
}

// RegionsOf возвращает регионы, покрываемые углами прямоугольника, без повторов,
// в построчном порядке. Диапазон между углами заполняется целиком, поэтому
// прямоугольник крупнее региона тоже учитывается корректно.
// Регионы за пределами сетки не отбрасываются: Add/Remove/Query их игнорируют.
func (g *BucketGrid[T]) RegionsOf(box physics.Box) []vec.Coord {
	top, bottom := physics.CellRange(box.Top(), box.Bottom(), g.regionH)
	left, right := physics.CellRange(box.Left(), box.Right(), g.regionW)

	regions := make([]vec.Coord, 0, (bottom-top+1)*(right-left+1))
	for row := top; row <= bottom; row++ {
		for col := left; col <= right; col++ {
			regions = append(regions, vec.C(row, col))
		}
	}
	return regions
}

// Add добавляет элемент в регион. Регион вне сетки игнорируется.
func (g *BucketGrid[T]) Add(item T, region vec.Coord) {
	if !g.InBounds(region) {
		return
	}
	g.buckets[region.Index(g.cols)][item] = struct{}{}
}

// Remove удаляет элемент из региона. Возвращает false, если регион вне сетки
// или элемента в нём не было.
func (g *BucketGrid[T]) Remove(item T, region vec.Coord) bool {
	if !g.InBounds(region) {
		return false
	}
	bucket := g.buckets[region.Index(g.cols)]
	if _, ok := bucket[item]; !ok {
		return false
	}
	delete(bucket, item)
	return true
}

// Contains проверяет наличие элемента в регионе
func (g *BucketGrid[T]) Contains(item T, region vec.Coord) bool {
	if !g.InBounds(region) {
		return false
	}
	_, ok := g.buckets[region.Index(g.cols)][item]
	return ok
}

// Query возвращает объединение содержимого перечисленных регионов.
// Ожидается список без повторов; внешние регионы пропускаются.
func (g *BucketGrid[T]) Query(regions []vec.Coord) map[T]struct{} {
	result := make(map[T]struct{})
	for _, region := range regions {
		if !g.InBounds(region) {
			continue
		}
		for item := range g.buckets[region.Index(g.cols)] {
			result[item] = struct{}{}
		}
	}
	return result
}

// Move переносит элемент из регионов before в регионы after.
// Регионы, присутствующие в обоих списках, не трогаются.
func (g *BucketGrid[T]) Move(item T, before, after []vec.Coord) {
	for _, region := range difference(before, after) {
		g.Remove(item, region)
	}
	for _, region := range difference(after, before) {
		g.Add(item, region)
	}
}

// RegionsOfItem возвращает все регионы, в которых зарегистрирован элемент.
// Полный обход сетки, только для отладки и тестов.
func (g *BucketGrid[T]) RegionsOfItem(item T) []vec.Coord {
	var regions []vec.Coord
	for idx, bucket := range g.buckets {
		if _, ok := bucket[item]; ok {
			regions = append(regions, vec.CoordOf(idx, g.cols))
		}
	}
	return regions
}

// Stats статистика заполненности сетки
type Stats struct {
	Regions      int // всего регионов
	Occupied     int // непустых регионов
	References   int // сумма размеров всех множеств
	MaxPerRegion int
}

// Stats возвращает статистику индекса
func (g *BucketGrid[T]) Stats() Stats {
	stats := Stats{Regions: len(g.buckets)}
	for _, bucket := range g.buckets {
		n := len(bucket)
		if n == 0 {
			continue
		}
		stats.Occupied++
		stats.References += n
		if n > stats.MaxPerRegion {
			stats.MaxPerRegion = n
		}
	}
	return stats
}

// String возвращает краткое описание статистики
func (s Stats) String() string {
	avg := 0.0
	if s.Occupied > 0 {
		avg = float64(s.References) / float64(s.Occupied)
	}
	return fmt.Sprintf("BucketGrid Stats: %d regions, %d occupied, avg %.2f refs/region, max %d refs/region",
		s.Regions, s.Occupied, avg, s.MaxPerRegion)
}

// difference возвращает элементы a, отсутствующие в b
func difference(a, b []vec.Coord) []vec.Coord {
	var out []vec.Coord
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}
