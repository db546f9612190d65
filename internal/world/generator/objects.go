package generator

import (
	"errors"
	"time"

	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world"
	"github.com/annel0/tilegrid/internal/world/entity"
)

// ErrNoRoom: на карте не хватило свободных клеток для сущностей
var ErrNoRoom = errors.New("not enough free tiles")

// BushRipeAfter время созревания ягод на кусте
const BushRipeAfter = 20 * time.Second

// Ключи Payload
const (
	PayloadGrowth  = "growth"
	PayloadRipe    = "ripe"
	PayloadBerries = "berries"
	PayloadFlowers = "flowers"
)

// NewRock создаёт камень 2x2: верхняя половина проходима (за камень можно зайти),
// нижняя блокирует движение
func NewRock() *entity.Object {
	return entity.NewObject(KindRock, 2, 2).WithHitboxes(vec.C(1, 0), vec.C(1, 1))
}

// NewTrunk создаёт ствол дерева
func NewTrunk() *entity.Object {
	return entity.NewObject(KindTrunk, 1, 1).Solid()
}

// NewCanopy создаёт крону дерева, она лежит в верхнем слое и не мешает движению
func NewCanopy() *entity.Object {
	return entity.NewObject(KindCanopy, 1, 1)
}

// NewBush создаёт куст, на котором со временем созревают ягоды.
// Сущность рядом со зрелым кустом собирает ягоды.
func NewBush() *entity.Object {
	bush := entity.NewObject(KindBush, 1, 1).Solid()
	bush.Payload[PayloadGrowth] = time.Duration(0)
	bush.Payload[PayloadRipe] = false

	bush.OnTick = func(_ entity.World, self *entity.Object, _ vec.Coord, elapsed time.Duration) {
		if ripe, _ := self.Payload[PayloadRipe].(bool); ripe {
			return
		}
		growth, _ := self.Payload[PayloadGrowth].(time.Duration)
		growth += elapsed
		self.Payload[PayloadGrowth] = growth
		if growth >= BushRipeAfter {
			self.Payload[PayloadRipe] = true
		}
	}

	bush.OnCollide = func(_ entity.World, self *entity.Object, _ vec.Coord, m *entity.Mover) {
		if ripe, _ := self.Payload[PayloadRipe].(bool); !ripe {
			return
		}
		self.Payload[PayloadRipe] = false
		self.Payload[PayloadGrowth] = time.Duration(0)
		increment(m.Payload, PayloadBerries)
	}
	return bush
}

// NewFlower создаёт цветок: первая подошедшая сущность срывает его
func NewFlower() *entity.Object {
	flower := entity.NewObject(KindFlower, 1, 1)
	flower.OnCollide = func(w entity.World, self *entity.Object, at vec.Coord, m *entity.Mover) {
		if w.Remove(world.LayerActive, at) == self {
			increment(m.Payload, PayloadFlowers)
		}
	}
	return flower
}

func increment(payload map[string]interface{}, key string) {
	if payload == nil {
		return
	}
	n, _ := payload[key].(int)
	payload[key] = n + 1
}
