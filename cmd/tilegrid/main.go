package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/tilegrid/internal/api"
	"github.com/annel0/tilegrid/internal/config"
	"github.com/annel0/tilegrid/internal/eventbus"
	"github.com/annel0/tilegrid/internal/logging"
	"github.com/annel0/tilegrid/internal/observability"
	"github.com/annel0/tilegrid/internal/sim"
	"github.com/annel0/tilegrid/internal/world"
	"github.com/annel0/tilegrid/internal/world/generator"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или TILEGRID_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	level, ok := logging.ParseLevel(cfg.Logging.Level)
	if !ok {
		log.Printf("⚠️ Неизвестный уровень логов %q, используется INFO", cfg.Logging.Level)
	}
	logging.SetDefaultLevel(level)
	defer logging.GetLoggerManager().CloseAll()

	mainLogger := componentLogger(logging.ComponentServer, cfg.Logging, level)
	mainLogger.Info("🌍 Запуск tilegrid: мир %dx%d, тайл %.0f, регион %d, %d тиков/с",
		cfg.World.Rows, cfg.World.Cols, cfg.World.TileSize, cfg.World.RegionSize, cfg.Sim.TickRate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, observability.Options{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	}, mainLogger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			mainLogger.Warn("Ошибка остановки OpenTelemetry: %v", err)
		}
	}()

	// === ШИНА СОБЫТИЙ ===
	busLogger := componentLogger(logging.ComponentEventBus, cfg.Logging, level)
	bus, err := newEventBus(cfg.EventBus, busLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			busLogger.Warn("Ошибка закрытия шины: %v", err)
		}
	}()

	if _, err := eventbus.StartLoggingListener(bus, busLogger, eventbus.Filter{
		Types: []string{eventbus.TypeObjectRemoved, eventbus.TypeCollision},
	}); err != nil {
		return fmt.Errorf("logging listener: %w", err)
	}

	registry := prometheus.NewRegistry()
	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()), registry, busLogger)
	defer exporter.Stop()

	// === МИР ===
	worldLogger := componentLogger(logging.ComponentWorld, cfg.Logging, level)
	grid, err := buildWorld(cfg, worldLogger, world.NewMetrics("tilegrid", registry))
	if err != nil {
		return err
	}

	// === СИМУЛЯЦИЯ ===
	runner := sim.NewRunner(grid, sim.Options{
		Interval:       cfg.Sim.TickInterval(),
		Source:         cfg.Telemetry.ServiceName,
		Bus:            bus,
		TickEventEvery: uint64(cfg.Sim.TickRate), // раз в секунду
		Tracer:         otel.Tracer("tilegrid/sim"),
		Logger:         componentLogger(logging.ComponentSim, cfg.Logging, level),
	})

	// === REST API ===
	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Addr:     restAddr,
		View:     runner,
		Logger:   componentLogger(logging.ComponentAPI, cfg.Logging, level),
		Registry: registry,
		Gatherer: registry,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	runnerDone := make(chan struct{})
	go func() {
		_ = runner.Run(ctx)
		close(runnerDone)
	}()

	mainLogger.Info("✅ Все сервисы запущены")
	mainLogger.Info("   🌐 REST API: http://localhost%s/api/stats", restAddr)
	mainLogger.Info("   ❤️  Health check: http://localhost%s/health", restAddr)

	select {
	case <-ctx.Done():
		mainLogger.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-errCh:
		if err != nil {
			mainLogger.Error("❌ REST API остановился с ошибкой: %v", err)
		}
		stop()
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		mainLogger.Error("❌ Ошибка остановки REST API: %v", err)
	}
	<-runnerDone // шина закрывается только после последнего тика

	mainLogger.Info("👋 Сервер остановлен на тике %d", runner.LastStats().Tick)
	return nil
}

// buildWorld генерирует карту и строит по ней мир
func buildWorld(cfg *config.Config, logger *logging.Logger, metrics *world.Metrics) (*world.Grid, error) {
	gen := generator.New(generator.Config{
		Seed:          cfg.Generator.Seed,
		NoiseScale:    cfg.Generator.NoiseScale,
		BiomeScale:    cfg.Generator.BiomeScale,
		RockDensity:   cfg.Generator.RockDensity,
		TreeDensity:   cfg.Generator.TreeDensity,
		BushDensity:   cfg.Generator.BushDensity,
		FlowerDensity: cfg.Generator.FlowerDensity,
		Movers:        cfg.Generator.Movers,
		MoverSize:     cfg.Generator.MoverSize,
		MoverSpeed:    cfg.Generator.MoverSpeed,
		TileSize:      cfg.World.TileSize,
	})

	start := time.Now()
	m, err := gen.Generate(cfg.World.Rows, cfg.World.Cols)
	if err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}

	opts := m.Options(cfg.World.TileSize, cfg.World.RegionSize)
	opts.Logger = logger
	opts.Metrics = metrics
	grid, err := world.NewGrid(opts)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	for _, mover := range m.Movers {
		grid.AddMover(mover)
	}

	logger.Info("🗺️ Мир сгенерирован за %v: %d объектов, %d сущностей, seed=%d",
		time.Since(start), grid.ObjectCount(), grid.MoverCount(), cfg.Generator.Seed)
	return grid, nil
}

// newEventBus выбирает JetStream, если задан URL, иначе шину в памяти
func newEventBus(cfg config.EventBusConfig, logger *logging.Logger) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logger.Info("📨 Шина событий в памяти, буфер %d", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("event bus: %w", err)
	}
	logger.Info("📨 Шина событий NATS JetStream: %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

// componentLogger возвращает логгер компонента с файлом в logs/ или только консольный
func componentLogger(component string, cfg config.LoggingConfig, level logging.LogLevel) *logging.Logger {
	if !cfg.ToFile {
		return logging.NewWriterLogger(component, os.Stdout, level)
	}

	var logger *logging.Logger
	switch component {
	case logging.ComponentWorld:
		logger = logging.GetWorldLogger()
	case logging.ComponentSim:
		logger = logging.GetSimLogger()
	case logging.ComponentAPI:
		logger = logging.GetAPILogger()
	case logging.ComponentEventBus:
		logger = logging.GetEventBusLogger()
	default:
		logger = logging.GetComponentLogger(component)
	}

	// Если файл открыть не удалось, менеджер отдал консольный fallback без регистрации
	if err := logging.GetLoggerManager().SetLogLevel(component, level, logging.TRACE); err != nil {
		logger.Warn("Не удалось установить уровень логов %s: %v", component, err)
	}
	return logger
}
