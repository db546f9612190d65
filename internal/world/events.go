package world

import (
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
)

// EventType определяет тип изменения мира
type EventType uint8

const (
	EventObjectPlaced  EventType = iota // Объект размещён в слое
	EventObjectRemoved                  // Объект удалён из слоя
	EventCollision                      // Сущность столкнулась со статическим объектом
	EventMoverAdded                     // Сущность добавлена
	EventMoverRemoved                   // Сущность удалена
)

// String возвращает имя типа события, используется как тип в шине событий
func (t EventType) String() string {
	switch t {
	case EventObjectPlaced:
		return "world.object_placed"
	case EventObjectRemoved:
		return "world.object_removed"
	case EventCollision:
		return "world.collision"
	case EventMoverAdded:
		return "world.mover_added"
	case EventMoverRemoved:
		return "world.mover_removed"
	default:
		return "world.unknown"
	}
}

// Event описывает одно изменение мира
type Event struct {
	Type   EventType
	Tick   uint64         // Тик, на котором произошло изменение
	Layer  int            // Слой (для событий объектов)
	At     vec.Coord      // Клетка
	Object *entity.Object // Объект, если есть
	Mover  *entity.Mover  // Сущность, если есть
}

// Listener получает изменения мира синхронно, в потоке тика.
// Обработчик не должен изменять мир.
type Listener func(ev Event)
