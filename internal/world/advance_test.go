package world

import (
	"fmt"
	"testing"
	"time"

	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantVelocity возвращает поведение, которое каждый тик задаёт одну и ту же скорость
func constantVelocity(v vec.Vec2Float) entity.MoverTickFunc {
	return func(_ entity.World, self *entity.Mover, _ time.Duration) {
		self.Velocity = v
	}
}

// assertBucketInvariant проверяет, что каждая сущность зарегистрирована ровно в регионах своего хитбокса
func assertBucketInvariant(t *testing.T, g *Grid) {
	t.Helper()
	for _, m := range g.Movers() {
		assert.ElementsMatch(t, g.RegionsOf(m), g.MemberRegions(m), "регионы сущности %s", m.ID)
	}
}

// newCorridor строит горизонтальный коридор высотой в один тайл (строка 1) со стеной в столбце wallCol
func newCorridor(t *testing.T, cols, wallCol int) *Grid {
	t.Helper()
	passable := make([]bool, 3*cols)
	for col := 0; col < cols; col++ {
		passable[vec.C(1, col).Index(cols)] = col != wallCol
	}
	g, err := NewGrid(Options{Rows: 3, Cols: cols, TileWidth: 16, TileHeight: 16, RegionSize: 5, Passable: passable})
	require.NoError(t, err)
	return g
}

func TestAdvance_CorridorStopsFlush(t *testing.T) {
	for _, speed := range []float64{1, 3, 5, 16, 37, 100} {
		t.Run(fmt.Sprintf("speed_%v", speed), func(t *testing.T) {
			g := newCorridor(t, 20, 15)
			m := entity.NewMover("runner", vec.V(0, 16), vec.V(16, 16))
			m.OnTick = constantVelocity(vec.V(speed, 0))
			g.AddMover(m)

			for i := 0; i < 300; i++ {
				g.Advance(time.Millisecond)
				require.LessOrEqual(t, m.Box().Right(), 240.0, "проникновение в стену на тике %d", i)
			}

			assert.Equal(t, 240.0, m.Box().Right(), "правая грань вплотную к стене")
			assert.Equal(t, 16.0, m.Position.Y, "вертикаль не меняется")
			assert.Equal(t, vec.V(0, 0), m.Velocity, "скорость обнуляется упором")
			assertBucketInvariant(t, g)
		})
	}
}

func TestAdvance_CorridorStopsFlushMovingLeft(t *testing.T) {
	for _, speed := range []float64{2, 16, 45} {
		t.Run(fmt.Sprintf("speed_%v", speed), func(t *testing.T) {
			g := newCorridor(t, 20, 2)
			m := entity.NewMover("runner", vec.V(280, 20), vec.V(8, 8))
			m.OnTick = constantVelocity(vec.V(-speed, 0))
			g.AddMover(m)

			for i := 0; i < 300; i++ {
				g.Advance(time.Millisecond)
			}
			assert.Equal(t, 48.0, m.Box().Left(), "левая грань вплотную к стене")
		})
	}
}

func TestAdvance_VerticalStopsFlush(t *testing.T) {
	// Вертикальная шахта: столбец 1 проходим, в строке 12 пол
	rows, cols := 16, 3
	passable := make([]bool, rows*cols)
	for row := 0; row < rows; row++ {
		passable[vec.C(row, 1).Index(cols)] = row != 12
	}
	g, err := NewGrid(Options{Rows: rows, Cols: cols, TileWidth: 16, TileHeight: 16, Passable: passable})
	require.NoError(t, err)

	m := entity.NewMover("faller", vec.V(18, 0), vec.V(12, 10))
	m.OnTick = constantVelocity(vec.V(0, 23))
	g.AddMover(m)

	for i := 0; i < 50; i++ {
		g.Advance(time.Millisecond)
	}
	assert.Equal(t, 192.0, m.Box().Bottom())
	assert.Equal(t, 18.0, m.Position.X)
}

func TestAdvance_WideMoverChecksEveryColumn(t *testing.T) {
	// Хитбокс перекрывает столбцы 1 и 2; непроходим только (5,2)
	g := newTestGrid(t, 10, 10)
	g.SetPassable(vec.C(5, 2), false)

	m := entity.NewMover("wide", vec.V(20, 0), vec.V(20, 10))
	m.OnTick = constantVelocity(vec.V(0, 7))
	g.AddMover(m)

	for i := 0; i < 30; i++ {
		g.Advance(time.Millisecond)
	}
	assert.Equal(t, 80.0, m.Box().Bottom())
}

func TestAdvance_DiagonalSlidesAlongWall(t *testing.T) {
	g := newTestGrid(t, 10, 10)
	for col := 0; col < 10; col++ {
		g.SetPassable(vec.C(4, col), false)
	}

	m := entity.NewMover("slider", vec.V(0, 40), vec.V(8, 8))
	m.OnTick = constantVelocity(vec.V(5, 5))
	g.AddMover(m)

	for i := 0; i < 5; i++ {
		g.Advance(time.Millisecond)
	}
	assert.Equal(t, 64.0, m.Box().Bottom(), "упор в стену снизу")
	assert.Equal(t, 25.0, m.Position.X, "движение вдоль стены продолжается")
	assert.Equal(t, vec.V(5, 0), m.Velocity)
}

func TestAdvance_HeadOnMoversNeverOverlap(t *testing.T) {
	for _, speed := range []float64{1, 4, 15, 30} {
		t.Run(fmt.Sprintf("speed_%v", speed), func(t *testing.T) {
			g := newTestGrid(t, 10, 20)

			a := entity.NewMover("a", vec.V(20, 20), vec.V(8, 8))
			a.OnTick = constantVelocity(vec.V(speed, 0))
			b := entity.NewMover("b", vec.V(90, 20), vec.V(8, 8))
			b.OnTick = constantVelocity(vec.V(-speed, 0))
			g.AddMover(a)
			g.AddMover(b)

			for i := 0; i < 100; i++ {
				g.Advance(time.Millisecond)
				require.False(t, a.Box().Intersects(b.Box()), "пересечение на тике %d", i)
			}
			assert.Equal(t, a.Box().Right(), b.Box().Left(), "сущности стоят вплотную")
			assertBucketInvariant(t, g)
		})
	}
}

func TestAdvance_VerticalHeadOn(t *testing.T) {
	g := newTestGrid(t, 20, 10)

	a := entity.NewMover("a", vec.V(30, 10), vec.V(10, 10))
	a.OnTick = constantVelocity(vec.V(0, 9))
	b := entity.NewMover("b", vec.V(35, 200), vec.V(10, 10))
	b.OnTick = constantVelocity(vec.V(0, -9))
	g.AddMover(a)
	g.AddMover(b)

	for i := 0; i < 60; i++ {
		g.Advance(time.Millisecond)
		require.False(t, a.Box().Intersects(b.Box()), "пересечение на тике %d", i)
	}
	assert.Equal(t, a.Box().Bottom(), b.Box().Top())
}

func TestAdvance_DiagonalApproachStopsFlush(t *testing.T) {
	g := newTestGrid(t, 10, 10)

	a := entity.NewMover("a", vec.V(20, 20), vec.V(8, 8))
	a.OnTick = constantVelocity(vec.V(10, 10))
	b := entity.NewMover("b", vec.V(50, 50), vec.V(8, 8))
	g.AddMover(a)
	g.AddMover(b)

	g.Advance(time.Millisecond)
	g.Advance(time.Millisecond)
	assert.Equal(t, vec.V(40, 40), a.Position)

	// По X препятствия нет, после сдвига по X упираемся в верхнюю грань
	stats := g.Advance(time.Millisecond)
	assert.Equal(t, 1, stats.MoverContacts)
	assert.Equal(t, vec.V(50, 42), a.Position)
	assert.Equal(t, b.Box().Top(), a.Box().Bottom(), "сущности стоят вплотную")
	assert.Equal(t, vec.V(10, 2), a.Velocity)
	assert.False(t, a.Box().Intersects(b.Box()))
}

func TestAdvance_DiagonalMoversNeverOverlap(t *testing.T) {
	for _, speed := range []float64{1, 3, 7, 10, 25} {
		t.Run(fmt.Sprintf("speed_%v", speed), func(t *testing.T) {
			g := newTestGrid(t, 10, 10)

			a := entity.NewMover("a", vec.V(20, 20), vec.V(8, 8))
			a.OnTick = constantVelocity(vec.V(speed, speed))
			b := entity.NewMover("b", vec.V(50, 50), vec.V(8, 8))
			c := entity.NewMover("c", vec.V(100, 20), vec.V(8, 8))
			c.OnTick = constantVelocity(vec.V(-speed, speed))
			g.AddMover(a)
			g.AddMover(b)
			g.AddMover(c)

			for i := 0; i < 40; i++ {
				g.Advance(time.Millisecond)
				require.False(t, a.Box().Intersects(b.Box()), "a и b пересеклись на тике %d", i)
				require.False(t, c.Box().Intersects(b.Box()), "c и b пересеклись на тике %d", i)
				require.False(t, a.Box().Intersects(c.Box()), "a и c пересеклись на тике %d", i)
			}
			assertBucketInvariant(t, g)
		})
	}
}

func TestAdvance_OverlappingMoverNeverPushedBack(t *testing.T) {
	g := newTestGrid(t, 10, 10)

	a := entity.NewMover("a", vec.V(20, 20), vec.V(8, 8))
	a.OnTick = constantVelocity(vec.V(5, 5))
	b := entity.NewMover("b", vec.V(24, 22), vec.V(8, 8))
	g.AddMover(a)
	g.AddMover(b)

	for i := 0; i < 5; i++ {
		before := a.Position
		g.Advance(time.Millisecond)
		require.GreaterOrEqual(t, a.Position.X, before.X, "выталкивание назад по X на тике %d", i)
		require.GreaterOrEqual(t, a.Position.Y, before.Y, "выталкивание назад по Y на тике %d", i)
		require.GreaterOrEqual(t, a.Velocity.X, 0.0)
		require.GreaterOrEqual(t, a.Velocity.Y, 0.0)
	}
	assert.Equal(t, vec.V(20, 20), a.Position, "вглубь пересечения не двигаемся")

	// Наружу из пересечения движение свободно
	a.OnTick = constantVelocity(vec.V(-5, -5))
	g.Advance(time.Millisecond)
	assert.Equal(t, vec.V(15, 15), a.Position)
}

func TestAdvance_RegionCrossing(t *testing.T) {
	g := newTestGrid(t, 10, 10)

	m := entity.NewMover("crosser", vec.V(60, 20), vec.V(8, 8))
	m.OnTick = constantVelocity(vec.V(8, 0))
	g.AddMover(m)
	assert.Equal(t, []*entity.Mover{m}, g.MoversInRegion(vec.C(0, 0)))

	g.Advance(time.Millisecond) // 68..76
	g.Advance(time.Millisecond) // 76..84 на границе регионов
	assert.Contains(t, g.MoversInRegion(vec.C(0, 0)), m)
	assert.Contains(t, g.MoversInRegion(vec.C(0, 1)), m)

	g.Advance(time.Millisecond) // 84..92
	g.Advance(time.Millisecond) // 92..100
	require.Equal(t, 92.0, m.Box().Left())
	assert.Contains(t, g.MoversInRegion(vec.C(0, 1)), m)
	assert.NotContains(t, g.MoversInRegion(vec.C(0, 0)), m)
	assertBucketInvariant(t, g)
}

func TestAdvance_BucketInvariantManyMovers(t *testing.T) {
	g := newTestGrid(t, 30, 30)
	velocities := []vec.Vec2Float{
		vec.V(7, 0), vec.V(0, -11), vec.V(-3, 5), vec.V(13, 13), vec.V(-20, 2), vec.V(1, -17),
	}
	for i, v := range velocities {
		m := entity.NewMover(fmt.Sprintf("m%d", i), vec.V(float64(60+i*50), float64(200+i*20)), vec.V(10, 12))
		velocity := v
		m.OnTick = func(w entity.World, self *entity.Mover, _ time.Duration) {
			// Разворот у края карты
			if self.Position.X < 10 || self.Position.X > 440 {
				velocity.X = -velocity.X
			}
			if self.Position.Y < 10 || self.Position.Y > 440 {
				velocity.Y = -velocity.Y
			}
			self.Velocity = velocity
		}
		g.AddMover(m)
	}

	for i := 0; i < 200; i++ {
		g.Advance(time.Millisecond)
		assertBucketInvariant(t, g)
	}
}

func TestAdvance_TeleportRebuckets(t *testing.T) {
	g := newTestGrid(t, 20, 20)

	m := entity.NewMover("jumper", vec.V(10, 10), vec.V(8, 8))
	m.OnTick = func(_ entity.World, self *entity.Mover, _ time.Duration) {
		self.Position = vec.V(250, 250)
	}
	g.AddMover(m)

	stats := g.Advance(time.Millisecond)
	assert.Equal(t, 1, stats.Rebucketed)
	assert.Equal(t, 0, stats.MoversMoved, "без скорости перемещения нет")
	assert.Equal(t, []vec.Coord{vec.C(3, 3)}, g.MemberRegions(m))
	assert.Empty(t, g.MoversInRegion(vec.C(0, 0)))
}

func TestAdvance_StaticTickOrder(t *testing.T) {
	g := newTestGrid(t, 4, 4)
	var order []string

	ticker := func(name string) *entity.Object {
		obj := entity.NewObject(name, 1, 1)
		obj.OnTick = func(_ entity.World, self *entity.Object, at vec.Coord, _ time.Duration) {
			order = append(order, fmt.Sprintf("%s@%v", self.Kind, at))
		}
		return obj
	}

	require.NoError(t, g.Place(1, ticker("c"), vec.C(0, 0)))
	require.NoError(t, g.Place(0, ticker("b"), vec.C(1, 0)))
	require.NoError(t, g.Place(0, ticker("a"), vec.C(0, 1)))
	require.NoError(t, g.Place(0, entity.NewObject("plain", 1, 1), vec.C(2, 2)))

	stats := g.Advance(time.Millisecond)
	assert.Equal(t, []string{"a@(0,1)", "b@(1,0)", "c@(0,0)"}, order, "слои по возрастанию, клетки построчно")
	assert.Equal(t, 3, stats.StaticUpdates)
	assert.Equal(t, uint64(1), stats.Tick)
}

func TestAdvance_StaticTickSkipsRemoved(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	called := 0

	victim := entity.NewObject("victim", 1, 1)
	victim.OnTick = func(entity.World, *entity.Object, vec.Coord, time.Duration) { called++ }

	killer := entity.NewObject("killer", 1, 1)
	killer.OnTick = func(w entity.World, _ *entity.Object, _ vec.Coord, _ time.Duration) {
		w.Remove(0, vec.C(0, 1))
	}

	require.NoError(t, g.Place(0, killer, vec.C(0, 0)))
	require.NoError(t, g.Place(0, victim, vec.C(0, 1)))

	g.Advance(time.Millisecond)
	assert.Equal(t, 0, called)
	assert.Nil(t, g.ObjectAt(0, vec.C(0, 1)))
}

func TestAdvance_CollideDispatch(t *testing.T) {
	g := newTestGrid(t, 5, 5)
	var hits []string

	trap := func(name string, rows, cols int) *entity.Object {
		obj := entity.NewObject(name, rows, cols)
		obj.OnCollide = func(_ entity.World, self *entity.Object, at vec.Coord, m *entity.Mover) {
			hits = append(hits, fmt.Sprintf("%s@%v", self.Kind, at))
		}
		return obj
	}

	// Сущность занимает ровно тайл (1,1)
	m := entity.NewMover("visitor", vec.V(16, 16), vec.V(16, 16))
	g.AddMover(m)

	require.NoError(t, g.Place(0, trap("bottom", 1, 1), vec.C(1, 0)))
	require.NoError(t, g.Place(1, trap("top", 1, 1), vec.C(1, 0)))
	require.NoError(t, g.Place(0, trap("under", 1, 1), vec.C(1, 1)))
	require.NoError(t, g.Place(0, trap("corner", 1, 1), vec.C(2, 2)))
	require.NoError(t, g.Place(0, trap("far", 1, 1), vec.C(4, 4)))
	require.NoError(t, g.Place(0, trap("pillar", 2, 1), vec.C(0, 2))) // (0,2) угол, (1,2) сбоку

	stats := g.Advance(time.Millisecond)
	assert.Equal(t, []string{"top@(1,0)", "bottom@(1,0)", "under@(1,1)", "pillar@(1,2)"}, hits)
	assert.Equal(t, 4, stats.Dispatches)
}

func TestAdvance_CollideDispatchOncePerObject(t *testing.T) {
	g := newTestGrid(t, 5, 5)
	calls := 0

	wall := entity.NewObject("wall", 1, 3)
	wall.OnCollide = func(entity.World, *entity.Object, vec.Coord, *entity.Mover) { calls++ }
	require.NoError(t, g.Place(0, wall, vec.C(3, 1)))

	m := entity.NewMover("visitor", vec.V(16, 16), vec.V(48, 32)) // тайлы (1..2, 1..3)
	g.AddMover(m)

	var events []Event
	g.SetListener(func(ev Event) { events = append(events, ev) })

	g.Advance(time.Millisecond)
	assert.Equal(t, 1, calls, "объект из нескольких клеток вызывается один раз")
	require.Len(t, events, 1)
	assert.Equal(t, EventCollision, events[0].Type)
	assert.Same(t, m, events[0].Mover)
	assert.Equal(t, uint64(1), events[0].Tick)
}

func TestAdvance_CollideCanRemoveObject(t *testing.T) {
	g := newTestGrid(t, 5, 5)

	coin := entity.NewObject("coin", 1, 1)
	coin.OnCollide = func(w entity.World, _ *entity.Object, at vec.Coord, _ *entity.Mover) {
		w.Remove(LayerActive, at)
	}
	require.NoError(t, g.Place(LayerActive, coin, vec.C(1, 3)))

	m := entity.NewMover("collector", vec.V(16, 16), vec.V(16, 16))
	m.OnTick = constantVelocity(vec.V(16, 0))
	g.AddMover(m)

	g.Advance(time.Millisecond)
	assert.Nil(t, g.ObjectAt(LayerActive, vec.C(1, 3)), "монета подобрана")
}

func TestAdvance_DeferredMoverChanges(t *testing.T) {
	g := newTestGrid(t, 10, 10)

	spawned := entity.NewMover("spawned", vec.V(100, 100), vec.V(8, 8))
	spawnedTicks := 0
	spawned.OnTick = func(entity.World, *entity.Mover, time.Duration) { spawnedTicks++ }

	parent := entity.NewMover("parent", vec.V(10, 10), vec.V(8, 8))
	parent.OnTick = func(w entity.World, self *entity.Mover, _ time.Duration) {
		w.AddMover(spawned)
		w.RemoveMover(self)
	}

	victimTicks := 0
	victim := entity.NewMover("victim", vec.V(50, 50), vec.V(8, 8))
	victim.OnTick = func(entity.World, *entity.Mover, time.Duration) { victimTicks++ }

	killer := entity.NewMover("killer", vec.V(30, 30), vec.V(8, 8))
	killer.OnTick = func(w entity.World, _ *entity.Mover, _ time.Duration) {
		w.RemoveMover(victim)
	}

	g.AddMover(parent)
	g.AddMover(killer)
	g.AddMover(victim)

	g.Advance(time.Millisecond)
	assert.Equal(t, 0, spawnedTicks, "добавленная во время тика сущность ждёт следующего тика")
	assert.Equal(t, 1, victimTicks, "удаление применяется после тика")
	assert.True(t, g.HasMover(spawned))
	assert.False(t, g.HasMover(parent))
	assert.False(t, g.HasMover(victim))
	assert.Equal(t, []*entity.Mover{killer, spawned}, g.Movers())
	assertBucketInvariant(t, g)

	g.Advance(time.Millisecond)
	assert.Equal(t, 1, spawnedTicks)
	assert.Equal(t, 1, victimTicks)
}

func TestAdvance_ZeroVelocitySkipsMovement(t *testing.T) {
	g := newTestGrid(t, 5, 5)
	m := entity.NewMover("idle", vec.V(20, 20), vec.V(8, 8))
	g.AddMover(m)

	stats := g.Advance(time.Millisecond)
	assert.Equal(t, vec.V(20, 20), m.Position)
	assert.Equal(t, 0, stats.MoversMoved)
	assert.Equal(t, 0, stats.MoverContacts)
	assert.Equal(t, 0, stats.TileContacts)
}

func TestAdvance_LeavesMapWithoutObstruction(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	m := entity.NewMover("wanderer", vec.V(30, 10), vec.V(8, 8))
	m.OnTick = constantVelocity(vec.V(10, 0))
	g.AddMover(m)

	for i := 0; i < 5; i++ {
		g.Advance(time.Millisecond)
	}
	assert.Equal(t, 80.0, m.Position.X, "за краем карты препятствий нет")
	assert.Empty(t, g.MemberRegions(m), "вне сетки регионов сущность не зарегистрирована")
	assert.True(t, g.HasMover(m))
}
