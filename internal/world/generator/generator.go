package generator

import (
	"fmt"
	"math/rand"

	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world"
	"github.com/annel0/tilegrid/internal/world/entity"
	"github.com/google/uuid"
)

// Biome представляет тип биома
type Biome int

const (
	BiomeDeepWater Biome = iota
	BiomeWater
	BiomePlains
	BiomeForest
	BiomeMountains
)

func (b Biome) String() string {
	switch b {
	case BiomeDeepWater:
		return "deep_water"
	case BiomeWater:
		return "water"
	case BiomePlains:
		return "plains"
	case BiomeForest:
		return "forest"
	case BiomeMountains:
		return "mountains"
	default:
		return "unknown"
	}
}

// Константы высот для генерации
const (
	DeepWaterMax    = 0.20 // Ниже - глубинная вода
	ShallowWaterMax = 0.30 // Ниже - мелководье
	MountainStart   = 0.72 // Выше - горы с камнями
	CliffStart      = 0.88 // Выше - непроходимые скалы
)

// Типы объектов, которые создаёт генератор
const (
	KindDeepWater = "deep_water"
	KindWater     = "water"
	KindGrass     = "grass"
	KindSoil      = "soil"
	KindStone     = "stone"
	KindRock      = "rock"
	KindBush      = "bush"
	KindFlower    = "flower"
	KindTrunk     = "trunk"
	KindCanopy    = "canopy"
	KindWanderer  = "wanderer"
)

// Config содержит параметры генерации карты
type Config struct {
	Seed          int64   // Сид для шума и случайных решений
	NoiseScale    float64 // Масштаб шума высот
	BiomeScale    float64 // Масштаб шума биомов
	RockDensity   float64 // Вероятность камня в горах
	TreeDensity   float64 // Вероятность дерева в лесу
	BushDensity   float64 // Вероятность куста в лесу
	FlowerDensity float64 // Вероятность цветка на равнине
	Movers        int     // Количество бродячих сущностей
	MoverSize     float64 // Размер хитбокса сущности
	MoverSpeed    float64 // Скорость сущности, единиц в секунду
	TileSize      float64 // Размер тайла для расстановки сущностей
}

// DefaultConfig возвращает параметры генерации по умолчанию
func DefaultConfig() Config {
	return Config{
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
		TileSize:      world.DefaultTileSize,
	}
}

// Map результат генерации, готовый для world.NewGrid
type Map struct {
	Rows, Cols int
	Layers     [][]*entity.Object // Содержимое слоёв построчно, объект в клетке начала
	Passable   []bool             // Проходимость ландшафта
	Biomes     []Biome
	Movers     []*entity.Mover
}

// Options возвращает параметры построения мира по карте
func (m *Map) Options(tileSize float64, regionSize int) world.Options {
	return world.Options{
		Rows:       m.Rows,
		Cols:       m.Cols,
		TileWidth:  tileSize,
		TileHeight: tileSize,
		RegionSize: regionSize,
		LayerCount: len(m.Layers),
		Layers:     m.Layers,
		Passable:   m.Passable,
	}
}

// BiomeAt возвращает биом клетки
func (m *Map) BiomeAt(at vec.Coord) Biome {
	return m.Biomes[at.Index(m.Cols)]
}

// ObjectAt возвращает объект слоя, начало которого находится в клетке
func (m *Map) ObjectAt(layer int, at vec.Coord) *entity.Object {
	return m.Layers[layer][at.Index(m.Cols)]
}

// Generator генерирует ландшафт мира
type Generator struct {
	cfg    Config
	height *Noise
	biome  *Noise
	rng    *rand.Rand
}

// New создаёт генератор. Все случайные решения зависят только от cfg.Seed.
func New(cfg Config) *Generator {
	return &Generator{
		cfg:    cfg,
		height: NewNoise(cfg.Seed, cfg.NoiseScale),
		biome:  NewNoise(cfg.Seed+42, cfg.BiomeScale),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// mapBuilder хранит состояние генерации одной карты
type mapBuilder struct {
	*Map
	occupied [][]bool // занятые клетки по слоям
}

func (b *mapBuilder) free(layer int, at vec.Coord) bool {
	return at.InRange(b.Rows-1, b.Cols-1) && !b.occupied[layer][at.Index(b.Cols)]
}

func (b *mapBuilder) put(layer int, obj *entity.Object, at vec.Coord) {
	b.Layers[layer][at.Index(b.Cols)] = obj
	for _, p := range obj.Span {
		if cell := at.Add(p); cell.InRange(b.Rows-1, b.Cols-1) {
			b.occupied[layer][cell.Index(b.Cols)] = true
		}
	}
}

// Generate создаёт карту rows x cols
func (g *Generator) Generate(rows, cols int) (*Map, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("generate %dx%d: %w", rows, cols, world.ErrInvalidDimensions)
	}

	cells := rows * cols
	b := &mapBuilder{
		Map: &Map{
			Rows:     rows,
			Cols:     cols,
			Layers:   make([][]*entity.Object, world.DefaultLayerCount),
			Passable: make([]bool, cells),
			Biomes:   make([]Biome, cells),
		},
		occupied: make([][]bool, world.DefaultLayerCount),
	}
	for i := range b.Layers {
		b.Layers[i] = make([]*entity.Object, cells)
		b.occupied[i] = make([]bool, cells)
	}

	// Ландшафт
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			at := vec.C(row, col)
			idx := at.Index(cols)

			height := g.height.At(row, col)
			biome := biomeFor(height, g.biome.At(row, col))
			b.Biomes[idx] = biome
			b.Passable[idx] = height < CliffStart

			b.put(world.LayerGround, groundFor(biome), at)
		}
	}

	// Объекты активного слоя
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			g.decorate(b, vec.C(row, col))
		}
	}

	if err := g.spawnMovers(b); err != nil {
		return nil, err
	}
	return b.Map, nil
}

func (g *Generator) decorate(b *mapBuilder, at vec.Coord) {
	if !b.free(world.LayerActive, at) || !b.Passable[at.Index(b.Cols)] {
		return
	}

	switch b.Biomes[at.Index(b.Cols)] {
	case BiomeMountains:
		if g.rng.Float64() < g.cfg.RockDensity && g.fits(b, at, 2, 2) {
			b.put(world.LayerActive, NewRock(), at)
		}

	case BiomeForest:
		roll := g.rng.Float64()
		switch {
		case roll < g.cfg.TreeDensity:
			canopy := at.Sub(vec.C(1, 0))
			if !b.free(world.LayerCeiling, canopy) {
				return
			}
			b.put(world.LayerActive, NewTrunk(), at)
			b.put(world.LayerCeiling, NewCanopy(), canopy)
		case roll < g.cfg.TreeDensity+g.cfg.BushDensity:
			b.put(world.LayerActive, NewBush(), at)
		}

	case BiomePlains:
		if g.rng.Float64() < g.cfg.FlowerDensity {
			b.put(world.LayerActive, NewFlower(), at)
		}
	}
}

// fits проверяет, что прямоугольник rows x cols свободен в активном слое и лежит на суше
func (g *Generator) fits(b *mapBuilder, at vec.Coord, rows, cols int) bool {
	for _, p := range entity.RectSpan(rows, cols) {
		cell := at.Add(p)
		if !b.free(world.LayerActive, cell) {
			return false
		}
		idx := cell.Index(b.Cols)
		if !b.Passable[idx] || isWater(b.Biomes[idx]) {
			return false
		}
	}
	return true
}

// spawnMovers расставляет бродячие сущности по центрам свободных клеток суши
func (g *Generator) spawnMovers(b *mapBuilder) error {
	if g.cfg.Movers <= 0 {
		return nil
	}

	tile := g.cfg.TileSize
	if tile <= 0 {
		tile = world.DefaultTileSize
	}
	size := g.cfg.MoverSize
	if size <= 0 || size > tile {
		size = tile
	}

	taken := make(map[vec.Coord]struct{})
	attempts := b.Rows * b.Cols * 4
	for len(b.Movers) < g.cfg.Movers && attempts > 0 {
		attempts--
		at := vec.C(g.rng.Intn(b.Rows), g.rng.Intn(b.Cols))
		idx := at.Index(b.Cols)
		if _, ok := taken[at]; ok {
			continue
		}
		if !b.Passable[idx] || isWater(b.Biomes[idx]) || b.occupied[world.LayerActive][idx] {
			continue
		}

		id, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return fmt.Errorf("mover id: %w", err)
		}

		offset := (tile - size) / 2
		pos := vec.V(float64(at.Col)*tile+offset, float64(at.Row)*tile+offset)
		m := entity.NewMover(id.String(), pos, vec.V(size, size))
		m.Kind = KindWanderer
		m.OnTick = NewWanderer(g.cfg.MoverSpeed, g.cfg.Seed+int64(len(b.Movers))).Tick

		taken[at] = struct{}{}
		b.Movers = append(b.Movers, m)
	}

	if len(b.Movers) < g.cfg.Movers {
		return fmt.Errorf("placed %d of %d movers: %w", len(b.Movers), g.cfg.Movers, ErrNoRoom)
	}
	return nil
}

func biomeFor(height, biomeValue float64) Biome {
	switch {
	case height < DeepWaterMax:
		return BiomeDeepWater
	case height < ShallowWaterMax:
		return BiomeWater
	case height >= MountainStart:
		return BiomeMountains
	case biomeValue > 0.55:
		return BiomeForest
	default:
		return BiomePlains
	}
}

func isWater(b Biome) bool {
	return b == BiomeDeepWater || b == BiomeWater
}

func groundFor(b Biome) *entity.Object {
	switch b {
	case BiomeDeepWater:
		return entity.NewObject(KindDeepWater, 1, 1).Solid()
	case BiomeWater:
		return entity.NewObject(KindWater, 1, 1).Solid()
	case BiomeForest:
		return entity.NewObject(KindSoil, 1, 1)
	case BiomeMountains:
		return entity.NewObject(KindStone, 1, 1)
	default:
		return entity.NewObject(KindGrass, 1, 1)
	}
}
