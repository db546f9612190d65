package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed возвращается после закрытия шины
var ErrClosed = errors.New("event bus closed")

// Типы событий, которые публикует симуляция
const (
	TypeObjectPlaced  = "world.object_placed"
	TypeObjectRemoved = "world.object_removed"
	TypeCollision     = "world.collision"
	TypeMoverAdded    = "world.mover_added"
	TypeMoverRemoved  = "world.mover_removed"
	TypeTick          = "sim.tick"
)

// Envelope описывает универсальный контейнер события.
// Все поля фиксированы для версионирования и трассировки.
type Envelope struct {
	ID            string            `json:"id"`                       // Глобально уникальный идентификатор (UUID).
	Timestamp     time.Time         `json:"timestamp"`                // Время создания события (UTC).
	Source        string            `json:"source"`                   // Имя сервиса-источника.
	EventType     string            `json:"event_type"`               // Тип события (world.collision, sim.tick…).
	Version       int               `json:"version"`                  // Схема полезной нагрузки.
	CorrelationID string            `json:"correlation_id,omitempty"` // Для связывания цепочек.
	Priority      int               `json:"priority"`                 // 0=Low … 9=Critical (для backpressure).
	Payload       []byte            `json:"payload"`                  // Полезная нагрузка в JSON.
	Metadata      map[string]string `json:"metadata,omitempty"`       // Произвольные метаданные.
}

// NewEnvelope создаёт конверт с новым ID и сериализует payload в JSON
func NewEnvelope(source, eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку в v
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто, все типы.
	Sources []string // Если пусто, все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
// Реализации: в памяти процесса и NATS JetStream.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex // подписчики
	subscribers map[int]subscriber
	nextID      int

	statsMu sync.Mutex
	stats   Stats

	closeMu sync.RWMutex // отправка в buffer и его закрытие
	closed  bool
	buffer  chan *Envelope
	done    chan struct{}
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory Bus с указанным буфером.
// Подписчики получают события по одному, в порядке публикации.
func NewMemoryBus(capacity int) EventBus {
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return ErrClosed
	}

	select {
	case mb.buffer <- ev:
		mb.countPublished()
		return nil
	default:
		// Буфер заполнен — дропаём низкий приоритет (<5)
		if ev.Priority < 5 {
			mb.countDropped()
			return nil
		}
		// Для High-priority блокируем до освобождения места или отмены контекста
		select {
		case mb.buffer <- ev:
			mb.countPublished()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if mb.isClosed() {
		return nil, ErrClosed
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.statsMu.Lock()
	defer mb.statsMu.Unlock()
	s := mb.stats
	s.InFlight = len(mb.buffer)
	return s
}

// Close прекращает приём событий и дожидается доставки уже принятых
func (mb *memoryBus) Close() error {
	mb.closeMu.Lock()
	if mb.closed {
		mb.closeMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.closeMu.Unlock()

	<-mb.done
	return nil
}

func (mb *memoryBus) isClosed() bool {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	return mb.closed
}

func (mb *memoryBus) countPublished() {
	mb.statsMu.Lock()
	mb.stats.Published++
	mb.statsMu.Unlock()
}

func (mb *memoryBus) countDropped() {
	mb.statsMu.Lock()
	mb.stats.Dropped++
	mb.statsMu.Unlock()
}

// dispatchLoop рассылает события подписчикам.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)

	for ev := range mb.buffer {
		mb.mu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			subs = append(subs, sub)
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			if !matchFilter(ev, sub.filter) {
				continue
			}
			if sub.ctx.Err() != nil {
				continue
			}
			sub.handler(sub.ctx, ev)

			mb.statsMu.Lock()
			mb.stats.Consumed++
			mb.statsMu.Unlock()
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
