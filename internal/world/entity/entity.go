package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tilegrid/internal/vec"
)

// ErrHitboxOutsideSpan: хитбокс объекта не входит в его Span
var ErrHitboxOutsideSpan = errors.New("hitbox outside object span")

// Capability набор возможностей объекта/сущности, используется для фильтрации
type Capability uint8

const (
	CapTick    Capability = 1 << iota // есть OnTick
	CapCollide                        // есть OnCollide
	CapDraw                           // есть Drawable
	CapSolid                          // есть непроходимые клетки
)

// DrawContext внешний контекст отрисовки, ядро его не интерпретирует
type DrawContext interface{}

// Drawable внешняя возможность отрисовки. Вызывается не чаще раза за тик.
type Drawable interface {
	Draw(dc DrawContext, at vec.Vec2Float)
}

// TickFunc вызывается для статического объекта на каждом тике
type TickFunc func(w World, self *Object, at vec.Coord, elapsed time.Duration)

// CollideFunc вызывается, когда подвижная сущность оказывается рядом с объектом
type CollideFunc func(w World, self *Object, at vec.Coord, m *Mover)

// Object представляет статический объект, размещаемый в слое тайлов.
// Может занимать несколько клеток (Span) и блокировать часть из них (Hitboxes).
type Object struct {
	Kind       string                 // Тип объекта ("rock", "grass", ...)
	Span       []vec.Coord            // Смещения занимаемых клеток от точки размещения
	Hitboxes   []vec.Coord            // Непроходимые клетки, подмножество Span
	Dimensions vec.Coord              // Размер в тайлах (строки, столбцы)
	Payload    map[string]interface{} // Дополнительные данные объекта

	// Необязательные возможности
	OnTick    TickFunc
	OnCollide CollideFunc
	Drawable  Drawable
}

// NewObject создаёт объект прямоугольной формы rows x cols без хитбоксов
func NewObject(kind string, rows, cols int) *Object {
	return &Object{
		Kind:       kind,
		Span:       RectSpan(rows, cols),
		Dimensions: vec.C(rows, cols),
		Payload:    make(map[string]interface{}),
	}
}

// RectSpan возвращает смещения прямоугольника rows x cols в построчном порядке
func RectSpan(rows, cols int) []vec.Coord {
	span := make([]vec.Coord, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			span = append(span, vec.C(r, c))
		}
	}
	return span
}

// WithHitboxes задаёт непроходимые клетки и возвращает объект для цепочки вызовов
func (o *Object) WithHitboxes(cells ...vec.Coord) *Object {
	o.Hitboxes = append([]vec.Coord(nil), cells...)
	return o
}

// Solid делает непроходимым весь Span
func (o *Object) Solid() *Object {
	return o.WithHitboxes(o.Span...)
}

// Capabilities возвращает набор возможностей объекта
func (o *Object) Capabilities() Capability {
	if o == nil {
		return 0
	}
	var caps Capability
	if o.OnTick != nil {
		caps |= CapTick
	}
	if o.OnCollide != nil {
		caps |= CapCollide
	}
	if o.Drawable != nil {
		caps |= CapDraw
	}
	if len(o.Hitboxes) > 0 {
		caps |= CapSolid
	}
	return caps
}

// Has сообщает, обладает ли объект всеми перечисленными возможностями
func (o *Object) Has(caps Capability) bool {
	return o.Capabilities()&caps == caps
}

// Validate проверяет инвариант Hitboxes ⊆ Span
func (o *Object) Validate() error {
	inSpan := make(map[vec.Coord]struct{}, len(o.Span))
	for _, p := range o.Span {
		inSpan[p] = struct{}{}
	}
	for _, h := range o.Hitboxes {
		if _, ok := inSpan[h]; !ok {
			return fmt.Errorf("%s: hitbox %v: %w", o.Kind, h, ErrHitboxOutsideSpan)
		}
	}
	return nil
}

// World предоставляет объектам и сущностям доступ к миру из обратных вызовов
type World interface {
	// Place размещает объект в слое с началом в at
	Place(layer int, obj *Object, at vec.Coord) error

	// Remove удаляет объект, занимающий клетку at в слое
	Remove(layer int, at vec.Coord) *Object

	// AddMover добавляет подвижную сущность
	AddMover(m *Mover)

	// RemoveMover удаляет подвижную сущность
	RemoveMover(m *Mover)

	// ObjectAt возвращает объект слоя, занимающий клетку
	ObjectAt(layer int, at vec.Coord) *Object

	// Slice возвращает объекты всех слоёв в клетке, начиная с нижнего
	Slice(at vec.Coord, caps ...Capability) []*Object

	// IsInBounds проверяет, лежит ли клетка внутри сетки
	IsInBounds(at vec.Coord) bool

	// IsPassable проверяет проходимость клетки
	IsPassable(at vec.Coord) bool

	// MoversOverlapping возвращает сущности, пересекающие тайл
	MoversOverlapping(at vec.Coord) []*Mover

	// TileAt переводит координату тайла в координаты мира
	TileAt(at vec.Coord) vec.Vec2Float

	// Tick возвращает номер текущего тика
	Tick() uint64
}
