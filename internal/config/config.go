package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается, если конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации приложения.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Generator GeneratorConfig `yaml:"generator"`
	Sim       SimConfig       `yaml:"sim"`
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	Rows       int     `yaml:"rows"`
	Cols       int     `yaml:"cols"`
	TileSize   float64 `yaml:"tile_size"`
	RegionSize int     `yaml:"region_size"`
}

type GeneratorConfig struct {
	Seed          int64   `yaml:"seed"`
	NoiseScale    float64 `yaml:"noise_scale"`
	BiomeScale    float64 `yaml:"biome_scale"`
	RockDensity   float64 `yaml:"rock_density"`
	TreeDensity   float64 `yaml:"tree_density"`
	BushDensity   float64 `yaml:"bush_density"`
	FlowerDensity float64 `yaml:"flower_density"`
	Movers        int     `yaml:"movers"`
	MoverSize     float64 `yaml:"mover_size"`
	MoverSpeed    float64 `yaml:"mover_speed"`
}

type SimConfig struct {
	TickRate int `yaml:"tick_rate"` // тиков в секунду
}

// TickInterval возвращает длительность одного тика
func (s *SimConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(s.TickRate)
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пустой URL: шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "TILEGRID_HTTP_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "TILEGRID_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Rows:       64,
			Cols:       64,
			TileSize:   16,
			RegionSize: 5,
		},
		Generator: GeneratorConfig{
			Seed:          12345,
			NoiseScale:    0.08,
			BiomeScale:    0.03,
			RockDensity:   0.08,
			TreeDensity:   0.10,
			BushDensity:   0.06,
			FlowerDensity: 0.04,
			Movers:        16,
			MoverSize:     10,
			MoverSpeed:    48,
		},
		Sim: SimConfig{
			TickRate: 20,
		},
		EventBus: EventBusConfig{
			Stream:    "TILEGRID_EVENTS",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tilegrid",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV TILEGRID_CONFIG;
// если и он не задан, возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TILEGRID_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	switch {
	case c.World.Rows <= 0 || c.World.Cols <= 0:
		return fmt.Errorf("world size %dx%d: %w", c.World.Rows, c.World.Cols, ErrInvalidConfig)
	case c.World.TileSize <= 0:
		return fmt.Errorf("world tile_size %v: %w", c.World.TileSize, ErrInvalidConfig)
	case c.World.RegionSize <= 0:
		return fmt.Errorf("world region_size %d: %w", c.World.RegionSize, ErrInvalidConfig)
	case c.Generator.Movers < 0:
		return fmt.Errorf("generator movers %d: %w", c.Generator.Movers, ErrInvalidConfig)
	case c.Generator.MoverSize > c.World.TileSize:
		return fmt.Errorf("generator mover_size %v larger than tile: %w", c.Generator.MoverSize, ErrInvalidConfig)
	case c.Sim.TickRate <= 0 || c.Sim.TickRate > 1000:
		return fmt.Errorf("sim tick_rate %d: %w", c.Sim.TickRate, ErrInvalidConfig)
	case c.EventBus.Buffer < 0:
		return fmt.Errorf("eventbus buffer %d: %w", c.EventBus.Buffer, ErrInvalidConfig)
	}
	return nil
}
