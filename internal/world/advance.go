package world

import (
	"time"

	"github.com/annel0/tilegrid/internal/physics"
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
)

// TickStats содержит итоги одного тика
type TickStats struct {
	Tick          uint64
	StaticUpdates int           // вызовы OnTick статических объектов
	MoversMoved   int           // сущности, сдвинувшиеся за тик
	MoverContacts int           // столкновения сущность-сущность, ограничившие скорость
	TileContacts  int           // столкновения с непроходимыми тайлами
	Rebucketed    int           // смены набора регионов
	Dispatches    int           // вызовы OnCollide статических объектов
	Duration      time.Duration // время обработки тика
}

// staticEntry объект с OnTick, собранный в начале тика
type staticEntry struct {
	layer  int
	origin vec.Coord
	obj    *entity.Object
}

// Advance выполняет один тик симуляции:
// поведение статических объектов, затем для каждой сущности поведение,
// столкновения с сущностями и тайлами, перемещение, перерегистрация
// в регионах и вызов OnCollide у соседних объектов.
func (g *Grid) Advance(elapsed time.Duration) TickStats {
	start := time.Now()

	g.tick++
	g.inTick = true
	stats := TickStats{Tick: g.tick}

	g.tickStatics(elapsed, &stats)

	// Набор сущностей фиксируется на начало тика
	snapshot := append([]*moverRecord(nil), g.order...)
	for _, rec := range snapshot {
		g.stepMover(rec, elapsed, &stats)
	}

	g.inTick = false
	g.flushPending()

	stats.Duration = time.Since(start)
	g.metrics.observe(stats)
	g.logger.Trace("Тик %d: объекты %d, сдвинуто %d, контакты %d/%d, регионы %d, OnCollide %d за %v",
		stats.Tick, stats.StaticUpdates, stats.MoversMoved, stats.MoverContacts,
		stats.TileContacts, stats.Rebucketed, stats.Dispatches, stats.Duration)
	return stats
}

// tickStatics вызывает OnTick объектов: слои по возрастанию, клетки построчно.
// Объект, удалённый во время прохода, пропускается.
func (g *Grid) tickStatics(elapsed time.Duration, stats *TickStats) {
	var entries []staticEntry
	for li, l := range g.layers {
		l.Each(func(origin vec.Coord, obj *entity.Object) {
			if obj.OnTick != nil {
				entries = append(entries, staticEntry{layer: li, origin: origin, obj: obj})
			}
		})
	}

	for _, e := range entries {
		if g.layers[e.layer].ObjectAt(e.origin) != e.obj {
			continue
		}
		e.obj.OnTick(g, e.obj, e.origin, elapsed)
		stats.StaticUpdates++
	}
}

func (g *Grid) stepMover(rec *moverRecord, elapsed time.Duration, stats *TickStats) {
	m := rec.mover

	if m.OnTick != nil {
		m.OnTick(g, m, elapsed)
		// Поведение могло переставить сущность напрямую
		if g.rebucket(rec) {
			stats.Rebucketed++
		}
	}

	if !m.Velocity.IsZero() {
		g.move(rec, stats)
	}

	g.dispatchStatic(rec, stats)
}

// maxResolvePasses ограничивает число проходов разрешения столкновений за тик
const maxResolvePasses = 4

// move разрешает столкновения и перемещает сущность.
// Итоговое смещение записывается в Velocity.
func (g *Grid) move(rec *moverRecord, stats *TickStats) {
	m := rec.mover
	start := m.Box()
	v := m.Velocity

	// Широкая фаза по области, заметаемой за тик
	swept := sweptBox(start, v)
	candidates := sortedRecords(g.buckets.Query(g.buckets.RegionsOf(swept)), rec)

	// Тайлы и соседние сущности только укорачивают смещение по осям,
	// поэтому проходы повторяются, пока смещение не перестанет меняться.
	var dx, dy float64
	var hitX, hitY bool
	for pass := 0; pass < maxResolvePasses; pass++ {
		for _, other := range candidates {
			var touched bool
			v, touched = start.ClampAgainst(other.mover.Box(), v)
			if touched && pass == 0 {
				stats.MoverContacts++
			}
		}

		var hy, hx bool
		dy, hy = physics.SweepVertical(start, v.Y, g.tileW, g.tileH, g.blocked)
		dx, hx = physics.SweepHorizontal(start.Translate(vec.V(0, dy)), v.X, g.tileW, g.tileH, g.blocked)
		hitY = hitY || hy
		hitX = hitX || hx

		next := vec.V(dx, dy)
		if next == v {
			break
		}
		v = next
	}

	if overlapsNew(start, start.Translate(vec.V(dx, dy)), candidates) {
		dx, dy = 0, 0
	}
	box := start.Translate(vec.V(dx, dy))

	if hitY {
		stats.TileContacts++
	}
	if hitX {
		stats.TileContacts++
	}

	m.Position = vec.V(box.X, box.Y)
	m.Velocity = vec.V(dx, dy)
	if dx != 0 || dy != 0 {
		stats.MoversMoved++
	}

	if g.rebucket(rec) {
		stats.Rebucketed++
	}
}

// rebucket приводит регистрацию сущности в регионах к её текущему хитбоксу
func (g *Grid) rebucket(rec *moverRecord) bool {
	after := g.buckets.RegionsOf(rec.mover.Box())
	if sameRegions(rec.regions, after) {
		return false
	}
	g.buckets.Move(rec, rec.regions, after)
	rec.regions = after
	return true
}

// dispatchStatic вызывает OnCollide объектов под хитбоксом и в кольце тайлов вокруг него.
// Кольцо строится от всех строк и столбцов, которые занимает хитбокс, поэтому
// его угловые тайлы никогда не пересекаются с хитбоксом и пропускаются.
// Каждый объект вызывается не более одного раза за тик.
func (g *Grid) dispatchStatic(rec *moverRecord, stats *TickStats) {
	m := rec.mover
	box := m.Box()

	firstRow, lastRow := physics.CellRange(box.Top(), box.Bottom(), g.tileH)
	firstCol, lastCol := physics.CellRange(box.Left(), box.Right(), g.tileW)

	seen := make(map[*entity.Object]struct{})
	for row := firstRow - 1; row <= lastRow+1; row++ {
		for col := firstCol - 1; col <= lastCol+1; col++ {
			outerRow := row < firstRow || row > lastRow
			outerCol := col < firstCol || col > lastCol
			if outerRow && outerCol {
				continue
			}

			at := vec.C(row, col)
			if !g.IsInBounds(at) {
				continue
			}
			for li := len(g.layers) - 1; li >= 0; li-- {
				obj := g.layers[li].ObjectAt(at)
				if obj == nil || obj.OnCollide == nil {
					continue
				}
				if _, done := seen[obj]; done {
					continue
				}
				seen[obj] = struct{}{}

				obj.OnCollide(g, obj, at, m)
				stats.Dispatches++
				g.emit(Event{Type: EventCollision, Layer: li, At: at, Object: obj, Mover: m})
			}
		}
	}
}

// flushPending применяет добавления и удаления сущностей, запрошенные во время тика
func (g *Grid) flushPending() {
	if len(g.pending) == 0 {
		return
	}
	ops := g.pending
	g.pending = nil

	for _, op := range ops {
		if op.add {
			g.addMover(op.mover)
		} else {
			g.removeMover(op.mover)
		}
	}
	g.logger.Debug("Тик %d: применено отложенных изменений сущностей: %d", g.tick, len(ops))
}

// sweptBox возвращает прямоугольник, покрывающий box до и после смещения на v
func sweptBox(box physics.Box, v vec.Vec2Float) physics.Box {
	moved := box.Translate(v)
	left := min(box.Left(), moved.Left())
	top := min(box.Top(), moved.Top())
	right := max(box.Right(), moved.Right())
	bottom := max(box.Bottom(), moved.Bottom())
	return physics.Box{X: left, Y: top, W: right - left, H: bottom - top}
}

func sameRegions(a, b []vec.Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// overlapsNew проверяет, пересекает ли moved сущность, с которой start не пересекался
func overlapsNew(start, moved physics.Box, candidates []*moverRecord) bool {
	for _, other := range candidates {
		ob := other.mover.Box()
		if moved.Intersects(ob) && !start.Intersects(ob) {
			return true
		}
	}
	return false
}
