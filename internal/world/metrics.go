package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics инкапсулирует Prometheus-метрики симуляции мира.
// Все методы безопасны для nil: мир без метрик работает без изменений.
type Metrics struct {
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	movers         prometheus.Gauge
	objectsPlaced  prometheus.Counter
	objectsRemoved prometheus.Counter
	contacts       *prometheus.CounterVec
	dispatches     prometheus.Counter
	rebucketed     prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "ticks_total",
			Help:      "Общее число обработанных тиков.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика симуляции.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		movers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "movers",
			Help:      "Количество подвижных сущностей в мире.",
		}),
		objectsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "objects_placed_total",
			Help:      "Сколько объектов размещено в слоях.",
		}),
		objectsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "objects_removed_total",
			Help:      "Сколько объектов удалено из слоёв.",
		}),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "contacts_total",
			Help:      "Столкновения, ограничившие перемещение сущностей.",
		}, []string{"kind"}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "collide_dispatches_total",
			Help:      "Вызовы OnCollide статических объектов.",
		}),
		rebucketed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "rebucketed_total",
			Help:      "Сколько раз сущность сменила набор регионов.",
		}),
	}

	reg.MustRegister(m.ticks, m.tickDuration, m.movers, m.objectsPlaced,
		m.objectsRemoved, m.contacts, m.dispatches, m.rebucketed)
	return m
}

func (m *Metrics) objectPlaced() {
	if m == nil {
		return
	}
	m.objectsPlaced.Inc()
}

func (m *Metrics) objectRemoved() {
	if m == nil {
		return
	}
	m.objectsRemoved.Inc()
}

func (m *Metrics) setMovers(n int) {
	if m == nil {
		return
	}
	m.movers.Set(float64(n))
}

// observe переносит статистику тика в метрики
func (m *Metrics) observe(s TickStats) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(s.Duration.Seconds())
	m.contacts.WithLabelValues("mover").Add(float64(s.MoverContacts))
	m.contacts.WithLabelValues("tile").Add(float64(s.TileContacts))
	m.dispatches.Add(float64(s.Dispatches))
	m.rebucketed.Add(float64(s.Rebucketed))
}
