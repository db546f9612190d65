package entity

import (
	"time"

	"github.com/annel0/tilegrid/internal/physics"
	"github.com/annel0/tilegrid/internal/vec"
)

// MoverTickFunc задаёт поведение подвижной сущности на тике.
// Обычно выставляет Velocity; перемещение выполняет мир.
type MoverTickFunc func(w World, self *Mover, elapsed time.Duration)

// Mover представляет подвижную сущность с непрерывной позицией.
// Сущности не хранятся в слоях тайлов, мир держит их в пространственной сетке регионов.
type Mover struct {
	ID       string                 // Уникальный идентификатор
	Kind     string                 // Тип сущности
	Position vec.Vec2Float          // Левый верхний угол хитбокса (в единицах мира)
	Velocity vec.Vec2Float          // Смещение за тик
	Size     vec.Vec2Float          // Размер хитбокса
	Payload  map[string]interface{} // Дополнительные данные

	OnTick   MoverTickFunc
	Drawable Drawable
}

// NewMover создаёт сущность в позиции pos с хитбоксом size
func NewMover(id string, pos, size vec.Vec2Float) *Mover {
	return &Mover{
		ID:       id,
		Position: pos,
		Size:     size,
		Payload:  make(map[string]interface{}),
	}
}

// Box возвращает текущий хитбокс сущности
func (m *Mover) Box() physics.Box {
	return physics.NewBox(m.Position, m.Size)
}

// Capabilities возвращает набор возможностей сущности
func (m *Mover) Capabilities() Capability {
	var caps Capability
	if m.OnTick != nil {
		caps |= CapTick
	}
	if m.Drawable != nil {
		caps |= CapDraw
	}
	return caps
}
