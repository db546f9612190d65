package sim

import (
	"github.com/annel0/tilegrid/internal/world"
)

// WorldEventPayload полезная нагрузка событий мира в шине
type WorldEventPayload struct {
	Tick    uint64 `json:"tick"`
	Layer   int    `json:"layer"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Kind    string `json:"kind,omitempty"`     // тип объекта
	MoverID string `json:"mover_id,omitempty"` // сущность, если есть
}

// TickPayload полезная нагрузка события sim.tick
type TickPayload struct {
	Tick          uint64 `json:"tick"`
	MoversMoved   int    `json:"movers_moved"`
	MoverContacts int    `json:"mover_contacts"`
	TileContacts  int    `json:"tile_contacts"`
	Dispatches    int    `json:"dispatches"`
	DurationUS    int64  `json:"duration_us"`
}

func payloadOf(ev world.Event) WorldEventPayload {
	p := WorldEventPayload{
		Tick:  ev.Tick,
		Layer: ev.Layer,
		Row:   ev.At.Row,
		Col:   ev.At.Col,
	}
	if ev.Object != nil {
		p.Kind = ev.Object.Kind
	}
	if ev.Mover != nil {
		p.MoverID = ev.Mover.ID
	}
	return p
}

func tickPayloadOf(s world.TickStats) TickPayload {
	return TickPayload{
		Tick:          s.Tick,
		MoversMoved:   s.MoversMoved,
		MoverContacts: s.MoverContacts,
		TileContacts:  s.TileContacts,
		Dispatches:    s.Dispatches,
		DurationUS:    s.Duration.Microseconds(),
	}
}
