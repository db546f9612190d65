package generator

import (
	"math/rand"
	"time"

	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
)

// directions: восемь направлений и остановка
var directions = []vec.Vec2Float{
	{X: 0, Y: 0},
	{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1},
	{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1},
}

const (
	minWanderTicks = 20
	maxWanderTicks = 60
)

// Wanderer реализует простое поведение: идти в случайном направлении,
// сменить его по таймеру или при упоре в препятствие
type Wanderer struct {
	speed     float64 // единиц в секунду
	rng       *rand.Rand
	direction vec.Vec2Float
	ticksLeft int
}

// NewWanderer создаёт поведение с собственным источником случайности
func NewWanderer(speed float64, seed int64) *Wanderer {
	return &Wanderer{
		speed: speed,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Direction возвращает текущее направление движения
func (w *Wanderer) Direction() vec.Vec2Float {
	return w.direction
}

// Tick выставляет скорость сущности на текущий тик
func (w *Wanderer) Tick(_ entity.World, self *entity.Mover, elapsed time.Duration) {
	// Скорость после предыдущего тика равна фактическому смещению.
	// Если шли, но не сдвинулись, значит упёрлись.
	blocked := !w.direction.IsZero() && self.Velocity.IsZero()

	w.ticksLeft--
	if w.ticksLeft <= 0 || blocked {
		w.turn()
	}

	step := w.speed * elapsed.Seconds()
	self.Velocity = w.direction.Normalized().Mul(step)
}

func (w *Wanderer) turn() {
	previous := w.direction
	for i := 0; i < len(directions); i++ {
		w.direction = directions[w.rng.Intn(len(directions))]
		if w.direction != previous {
			break
		}
	}
	w.ticksLeft = minWanderTicks + w.rng.Intn(maxWanderTicks-minWanderTicks)
}
