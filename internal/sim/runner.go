package sim

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/tilegrid/internal/eventbus"
	"github.com/annel0/tilegrid/internal/logging"
	"github.com/annel0/tilegrid/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/annel0/tilegrid/internal/sim"

// Options содержит параметры цикла симуляции
type Options struct {
	Interval       time.Duration     // длительность тика
	Source         string            // источник событий в шине
	Bus            eventbus.EventBus // nil: события не публикуются
	TickEventEvery uint64            // публиковать sim.tick каждые N тиков (0 выключает)
	Tracer         trace.Tracer      // nil: глобальный провайдер OpenTelemetry
	Logger         *logging.Logger
}

// Runner владеет миром и продвигает его с фиксированным шагом.
// Все обращения к миру идут через Runner под мьютексом.
type Runner struct {
	mu      sync.Mutex
	grid    *world.Grid
	pending []*eventbus.Envelope // изменения мира, ещё не отправленные в шину
	last    world.TickStats

	interval time.Duration
	source   string
	bus      eventbus.EventBus
	every    uint64
	tracer   trace.Tracer
	logger   *logging.Logger
}

// NewRunner создаёт цикл симуляции и подписывается на изменения мира
func NewRunner(grid *world.Grid, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	if opts.Source == "" {
		opts.Source = "tilegrid"
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	r := &Runner{
		grid:     grid,
		interval: opts.Interval,
		source:   opts.Source,
		bus:      opts.Bus,
		every:    opts.TickEventEvery,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
	}
	grid.SetListener(r.onWorldEvent)
	return r
}

// Interval возвращает длительность тика
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Run продвигает мир каждые Interval до отмены ctx
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("▶️ Симуляция запущена, тик %v", r.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("⏹️ Симуляция остановлена на тике %d", r.LastStats().Tick)
			return nil
		case now := <-ticker.C:
			r.Step(ctx, now.Sub(last))
			last = now
		}
	}
}

// Step выполняет один тик и отправляет накопленные изменения мира в шину
func (r *Runner) Step(ctx context.Context, elapsed time.Duration) world.TickStats {
	ctx, span := r.tracer.Start(ctx, "sim.tick")
	defer span.End()

	r.mu.Lock()
	stats := r.grid.Advance(elapsed)
	r.last = stats
	events := r.pending
	r.pending = nil
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("sim.tick", int64(stats.Tick)),
		attribute.Int("sim.static_updates", stats.StaticUpdates),
		attribute.Int("sim.movers_moved", stats.MoversMoved),
		attribute.Int("sim.mover_contacts", stats.MoverContacts),
		attribute.Int("sim.tile_contacts", stats.TileContacts),
		attribute.Int("sim.dispatches", stats.Dispatches),
		attribute.Int("sim.events", len(events)),
	)

	if r.every > 0 && stats.Tick%r.every == 0 {
		if ev := r.envelope(eventbus.TypeTick, tickPayloadOf(stats)); ev != nil {
			events = append(events, ev)
		}
	}
	r.publish(ctx, events)
	return stats
}

// View даёт доступ к миру только для чтения
func (r *Runner) View(fn func(g *world.Grid)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.grid)
}

// Update изменяет мир между тиками. Изменения уходят в шину вместе со следующим тиком.
func (r *Runner) Update(fn func(g *world.Grid) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.grid)
}

// LastStats возвращает статистику последнего тика
func (r *Runner) LastStats() world.TickStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// onWorldEvent вызывается миром синхронно, под мьютексом Runner
func (r *Runner) onWorldEvent(ev world.Event) {
	if r.bus == nil {
		return
	}
	env := r.envelope(ev.Type.String(), payloadOf(ev))
	if env == nil {
		return
	}
	if ev.Type == world.EventObjectPlaced || ev.Type == world.EventObjectRemoved {
		env.Priority = 5
	}
	r.pending = append(r.pending, env)
}

func (r *Runner) envelope(eventType string, payload interface{}) *eventbus.Envelope {
	if r.bus == nil {
		return nil
	}
	env, err := eventbus.NewEnvelope(r.source, eventType, payload)
	if err != nil {
		r.logger.Warn("Событие %s не сериализовано: %v", eventType, err)
		return nil
	}
	return env
}

func (r *Runner) publish(ctx context.Context, events []*eventbus.Envelope) {
	for _, ev := range events {
		if err := r.bus.Publish(ctx, ev); err != nil {
			r.logger.Warn("Не удалось опубликовать %s: %v", ev.EventType, err)
		}
	}
}
