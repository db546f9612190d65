package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/tilegrid/internal/logging"
	"github.com/annel0/tilegrid/internal/middleware"
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world"
	"github.com/annel0/tilegrid/internal/world/entity"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// WorldView даёт доступ к миру на чтение. Реализуется sim.Runner.
type WorldView interface {
	View(fn func(g *world.Grid))
	LastStats() world.TickStats
}

// RestServer представляет REST API для инспекции мира
type RestServer struct {
	router  *gin.Engine
	view    WorldView
	addr    string
	metrics *ServerMetrics
	logger  *logging.Logger
	server  *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr     string                // адрес для запуска сервера
	View     WorldView             // источник состояния мира
	Logger   *logging.Logger       // nil: без логов запросов
	Registry prometheus.Registerer // nil: дефолтный регистр
	Gatherer prometheus.Gatherer   // источник /metrics, nil: дефолтный
}

// GenericResponse общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MoverInfo описывает сущность в ответе API
type MoverInfo struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind,omitempty"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Velocity [2]float64 `json:"velocity"`
}

// ObjectInfo описывает объект слоя в ответе API
type ObjectInfo struct {
	Layer int    `json:"layer"`
	Kind  string `json:"kind"`
	Row   int    `json:"origin_row"`
	Col   int    `json:"origin_col"`
	Solid bool   `json:"solid"`
}

// TileInfo описывает содержимое тайла
type TileInfo struct {
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	Passable bool         `json:"passable"`
	Objects  []ObjectInfo `json:"objects"`
	Movers   []MoverInfo  `json:"movers"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8088"
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("tilegrid_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("tilegrid_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:  router,
		view:    config.View,
		addr:    config.Addr,
		metrics: NewServerMetrics(),
		logger:  config.Logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	rs.setupRoutes()
	return rs
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/movers", rs.handleMovers)
		api.GET("/tiles/:row/:col", rs.handleTile)
		api.GET("/regions/:row/:col", rs.handleRegion)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// handleStats возвращает состояние мира и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	rs.view.View(func(g *world.Grid) {
		regionRows, regionCols := g.RegionGrid()
		buckets := g.BucketStats()
		stats["world"] = map[string]interface{}{
			"rows":        g.Rows(),
			"cols":        g.Cols(),
			"layers":      g.LayerCount(),
			"tick":        g.Tick(),
			"movers":      g.MoverCount(),
			"objects":     g.ObjectCount(),
			"region_rows": regionRows,
			"region_cols": regionCols,
			"regions": map[string]int{
				"total":      buckets.Regions,
				"occupied":   buckets.Occupied,
				"references": buckets.References,
				"max":        buckets.MaxPerRegion,
			},
		}
	})

	last := rs.view.LastStats()
	stats["last_tick"] = map[string]interface{}{
		"tick":           last.Tick,
		"static_updates": last.StaticUpdates,
		"movers_moved":   last.MoversMoved,
		"mover_contacts": last.MoverContacts,
		"tile_contacts":  last.TileContacts,
		"dispatches":     last.Dispatches,
		"duration_us":    last.Duration.Microseconds(),
	}

	cpuPercent, _ := rs.metrics.GetCPUUsage()
	rssMB, _ := rs.metrics.GetRSS()
	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"rss_mb":      fmt.Sprintf("%.2f", rssMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleMovers возвращает все сущности в порядке добавления
func (rs *RestServer) handleMovers(c *gin.Context) {
	var movers []MoverInfo
	rs.view.View(func(g *world.Grid) {
		movers = moverInfos(g.Movers())
	})

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список сущностей получен",
		Data: map[string]interface{}{
			"movers": movers,
			"total":  len(movers),
		},
	})
}

// handleTile возвращает проходимость, объекты и сущности тайла
func (rs *RestServer) handleTile(c *gin.Context) {
	at, ok := parseCoord(c)
	if !ok {
		return
	}

	var info *TileInfo
	rs.view.View(func(g *world.Grid) {
		if !g.IsInBounds(at) {
			return
		}
		info = &TileInfo{
			Row:      at.Row,
			Col:      at.Col,
			Passable: g.IsPassable(at),
			Objects:  []ObjectInfo{},
			Movers:   moverInfos(g.MoversOverlapping(at)),
		}
		for layer := 0; layer < g.LayerCount(); layer++ {
			obj := g.ObjectAt(layer, at)
			if obj == nil {
				continue
			}
			origin, _ := g.OriginOf(layer, at)
			info.Objects = append(info.Objects, ObjectInfo{
				Layer: layer,
				Kind:  obj.Kind,
				Row:   origin.Row,
				Col:   origin.Col,
				Solid: obj.Has(entity.CapSolid),
			})
		}
	})

	if info == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Тайл %v вне карты", at),
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Тайл получен",
		Data:    info,
	})
}

// handleRegion возвращает сущности, зарегистрированные в регионе
func (rs *RestServer) handleRegion(c *gin.Context) {
	region, ok := parseCoord(c)
	if !ok {
		return
	}

	var movers []MoverInfo
	found := false
	rs.view.View(func(g *world.Grid) {
		rows, cols := g.RegionGrid()
		if !region.InRange(rows-1, cols-1) {
			return
		}
		found = true
		movers = moverInfos(g.MoversInRegion(region))
	})

	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Регион %v вне сетки", region),
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Регион получен",
		Data: map[string]interface{}{
			"row":    region.Row,
			"col":    region.Col,
			"movers": movers,
		},
	})
}

// handleHealth проверка работоспособности
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tick":   rs.view.LastStats().Tick,
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rest server: %w", err)
	}
	return nil
}

// Stop корректно останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}

func parseCoord(c *gin.Context) (vec.Coord, bool) {
	row, errRow := strconv.Atoi(c.Param("row"))
	col, errCol := strconv.Atoi(c.Param("col"))
	if errRow != nil || errCol != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "row и col должны быть целыми числами",
		})
		return vec.Coord{}, false
	}
	return vec.C(row, col), true
}

func moverInfos(movers []*entity.Mover) []MoverInfo {
	result := make([]MoverInfo, 0, len(movers))
	for _, m := range movers {
		result = append(result, MoverInfo{
			ID:       m.ID,
			Kind:     m.Kind,
			X:        m.Position.X,
			Y:        m.Position.Y,
			Width:    m.Size.X,
			Height:   m.Size.Y,
			Velocity: [2]float64{m.Velocity.X, m.Velocity.Y},
		})
	}
	return result
}
