package eventbus

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/tilegrid/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collisionPayload struct {
	Kind string `json:"kind"`
	Row  int    `json:"row"`
}

func mustEnvelope(t *testing.T, eventType string, payload interface{}) *Envelope {
	t.Helper()
	ev, err := NewEnvelope("test", eventType, payload)
	require.NoError(t, err)
	return ev
}

func TestNewEnvelope(t *testing.T) {
	ev := mustEnvelope(t, TypeCollision, collisionPayload{Kind: "rock", Row: 3})

	assert.Len(t, ev.ID, 36, "UUID")
	assert.Equal(t, "test", ev.Source)
	assert.Equal(t, TypeCollision, ev.EventType)
	assert.Equal(t, 1, ev.Version)
	assert.JSONEq(t, `{"kind":"rock","row":3}`, string(ev.Payload))

	var decoded collisionPayload
	require.NoError(t, ev.Decode(&decoded))
	assert.Equal(t, "rock", decoded.Kind)

	other := mustEnvelope(t, TypeCollision, nil)
	assert.NotEqual(t, ev.ID, other.ID)

	_, err := NewEnvelope("test", TypeTick, make(chan int))
	assert.Error(t, err, "канал не сериализуется")
}

func TestMemoryBus_DeliversInOrderWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var all, collisions []string
	_, err := bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, ev *Envelope) {
		mu.Lock()
		all = append(all, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{TypeCollision}}, func(_ context.Context, ev *Envelope) {
		mu.Lock()
		collisions = append(collisions, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeObjectPlaced, nil)))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeCollision, nil)))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeTick, nil)))
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{TypeObjectPlaced, TypeCollision, TypeTick}, all)
	assert.Equal(t, []string{TypeCollision}, collisions)

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(4), stats.Consumed)
	assert.Equal(t, 0, stats.InFlight)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	calls := 0
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { calls++ })
	require.NoError(t, err)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, TypeTick, nil)))
	require.NoError(t, bus.Close())
	assert.Zero(t, calls)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeTick, nil)))
	<-started // первое событие у подписчика, буфер пуст

	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeTick, nil))) // заполняет буфер
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, TypeTick, nil))) // отброшено

	high := mustEnvelope(t, TypeCollision, nil)
	high.Priority = 9
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(cctx, high), context.DeadlineExceeded, "высокий приоритет ждёт места")

	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	close(release)
	require.NoError(t, bus.Close())
	assert.Equal(t, uint64(2), bus.Metrics().Published)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")

	assert.ErrorIs(t, bus.Publish(context.Background(), mustEnvelope(t, TypeTick, nil)), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoggingListener(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger("eventbus", &buf, logging.DEBUG)
	bus := NewMemoryBus(4)

	_, err := StartLoggingListener(bus, logger, Filter{Types: []string{TypeCollision}})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, TypeCollision, nil)))
	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, TypeTick, nil)))
	require.NoError(t, bus.Close())

	out := buf.String()
	assert.Contains(t, out, "LoggingListener")
	assert.Contains(t, out, TypeCollision)
	assert.NotContains(t, out, TypeTick)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	exporter := NewMetricsExporter(bus, reg)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, TypeTick, nil)))
	}
	require.NoError(t, bus.Close())

	exporter.Collect()
	exporter.Collect() // повторный сбор не удваивает счётчики

	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.published))
	assert.Equal(t, 0.0, testutil.ToFloat64(exporter.inflight))

	exporter.Start()
	exporter.Stop()
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tilegrid.world.collision", Subject(TypeCollision))
}
