package eventbus

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/tilegrid/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsExporter управляет Prometheus-метриками шины и периодически обновляет Gauge/Counter.
// Экспортер не делает предположений о конкретной реализации шины,
// он опирается только на EventBus.Metrics().
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	server   *http.Server

	mu      sync.Mutex
	prev    Stats
	started bool

	// Prometheus metrics
	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) *MetricsExporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	me := &MetricsExporter{
		bus:      bus,
		interval: time.Second,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ошибок или ограничения back-pressure.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений, находящихся в очереди (не доставленных).",
		}),
	}

	reg.MustRegister(me.published, me.consumed, me.dropped, me.inflight)
	return me
}

// Start запускает периодическое обновление метрик без HTTP-эндпоинта
func (m *MetricsExporter) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.loop()
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func (m *MetricsExporter) StartHTTP(addr string, gatherer prometheus.Gatherer, logger *logging.Logger) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	m.Start()
}

// Stop останавливает обновление метрик и HTTP-эндпоинт, если он запущен
func (m *MetricsExporter) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		if m.server != nil {
			_ = m.server.Close()
		}
	})

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

// Collect переносит текущую статистику шины в метрики
func (m *MetricsExporter) Collect() {
	stats := m.bus.Metrics()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Counter только растёт: прибавляем дельту с прошлого снимка
	if stats.Published > m.prev.Published {
		m.published.Add(float64(stats.Published - m.prev.Published))
	}
	if stats.Consumed > m.prev.Consumed {
		m.consumed.Add(float64(stats.Consumed - m.prev.Consumed))
	}
	if stats.Dropped > m.prev.Dropped {
		m.dropped.Add(float64(stats.Dropped - m.prev.Dropped))
	}
	m.inflight.Set(float64(stats.InFlight))

	m.prev = stats
}

func (m *MetricsExporter) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.done)

	for {
		select {
		case <-ticker.C:
			m.Collect()
		case <-m.quit:
			m.Collect()
			return
		}
	}
}
