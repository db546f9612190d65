package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/tilegrid/internal/logging"
	"github.com/annel0/tilegrid/internal/physics"
	"github.com/annel0/tilegrid/internal/vec"
	"github.com/annel0/tilegrid/internal/world/entity"
	"github.com/annel0/tilegrid/internal/world/spatial"
	"github.com/annel0/tilegrid/internal/world/tile"
)

// Options содержит параметры построения мира.
// Layers и Passable приходят от внешнего загрузчика уже десериализованными.
type Options struct {
	Rows, Cols            int     // Размер сетки в тайлах
	TileWidth, TileHeight float64 // Размер тайла в единицах мира
	RegionSize            int     // Размер региона пространственной сетки в тайлах
	LayerCount            int     // Количество слоёв, если Layers не заданы

	// Layers: начальное содержимое слоёв, построчно (Rows*Cols на слой).
	// Объект указывается в клетке своего начала.
	Layers [][]*entity.Object

	// Passable: начальная проходимость (Rows*Cols). Если nil, всё проходимо,
	// а непроходимость выводится из хитбоксов начальных объектов.
	Passable []bool

	Logger  *logging.Logger
	Metrics *Metrics
}

// pendingOp отложенное добавление или удаление сущности
type pendingOp struct {
	mover *entity.Mover
	add   bool
}

// moverRecord служебная запись о подвижной сущности
type moverRecord struct {
	mover   *entity.Mover
	seq     uint64      // порядок добавления
	regions []vec.Coord // регионы, в которых сущность сейчас зарегистрирована
}

// Grid управляет стопкой слоёв тайлов, проходимостью и подвижными сущностями.
// Все методы синхронные; Grid не потокобезопасен.
type Grid struct {
	rows, cols   int
	tileW, tileH float64

	layers   []*tile.Layer
	terrain  []bool   // проходимость ландшафта без учёта объектов
	blockers []uint16 // количество хитбоксов объектов в клетке

	buckets *spatial.BucketGrid[*moverRecord]
	movers  map[*entity.Mover]*moverRecord
	order   []*moverRecord // по возрастанию seq
	nextSeq uint64

	tick    uint64
	inTick  bool
	pending []pendingOp // изменения набора сущностей, запрошенные во время тика

	listener Listener
	metrics  *Metrics
	logger   *logging.Logger
}

var _ entity.World = (*Grid)(nil)

// NewGrid создаёт мир по параметрам
func NewGrid(opts Options) (*Grid, error) {
	if opts.Rows <= 0 || opts.Cols <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", opts.Rows, opts.Cols, ErrInvalidDimensions)
	}
	if opts.TileWidth <= 0 {
		opts.TileWidth = DefaultTileSize
	}
	if opts.TileHeight <= 0 {
		opts.TileHeight = DefaultTileSize
	}
	if opts.RegionSize <= 0 {
		opts.RegionSize = DefaultRegionSize
	}
	layerCount := opts.LayerCount
	if len(opts.Layers) > layerCount {
		layerCount = len(opts.Layers)
	}
	if layerCount <= 0 {
		layerCount = DefaultLayerCount
	}

	cells := opts.Rows * opts.Cols
	if opts.Passable != nil && len(opts.Passable) != cells {
		return nil, fmt.Errorf("got %d, want %d: %w", len(opts.Passable), cells, ErrPassabilitySize)
	}

	g := &Grid{
		rows:     opts.Rows,
		cols:     opts.Cols,
		tileW:    opts.TileWidth,
		tileH:    opts.TileHeight,
		layers:   make([]*tile.Layer, layerCount),
		terrain:  make([]bool, cells),
		blockers: make([]uint16, cells),
		buckets:  spatial.NewBucketGrid[*moverRecord](opts.Rows, opts.Cols, opts.RegionSize, opts.TileWidth, opts.TileHeight),
		movers:   make(map[*entity.Mover]*moverRecord),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	for i := range g.layers {
		g.layers[i] = tile.NewLayer(opts.Rows, opts.Cols)
	}
	for i := range g.terrain {
		g.terrain[i] = true
	}

	for li, content := range opts.Layers {
		if content == nil {
			continue
		}
		if len(content) != cells {
			return nil, fmt.Errorf("layer %d: got %d, want %d: %w", li, len(content), cells, ErrLayerSize)
		}
		for idx, obj := range content {
			if obj == nil {
				continue
			}
			if err := g.Place(li, obj, vec.CoordOf(idx, opts.Cols)); err != nil {
				return nil, fmt.Errorf("initial layer %d: %w", li, err)
			}
		}
	}

	// Клетки под хитбоксами начальных объектов принадлежат объектам:
	// после их удаления клетка должна снова стать проходимой.
	if opts.Passable != nil {
		for i, passable := range opts.Passable {
			g.terrain[i] = passable || g.blockers[i] > 0
		}
	}

	g.logger.Debug("Создан мир %dx%d, тайл %.0fx%.0f, регион %d, слоёв %d",
		g.rows, g.cols, g.tileW, g.tileH, opts.RegionSize, layerCount)
	return g, nil
}

func (g *Grid) Rows() int                  { return g.rows }
func (g *Grid) Cols() int                  { return g.cols }
func (g *Grid) LayerCount() int            { return len(g.layers) }
func (g *Grid) TileSize() vec.Vec2Float    { return vec.V(g.tileW, g.tileH) }
func (g *Grid) Tick() uint64               { return g.tick }
func (g *Grid) RegionGrid() (int, int)     { return g.buckets.Rows(), g.buckets.Cols() }
func (g *Grid) BucketStats() spatial.Stats { return g.buckets.Stats() }

// SetListener устанавливает обработчик изменений мира (nil отключает)
func (g *Grid) SetListener(l Listener) {
	g.listener = l
}

func (g *Grid) emit(ev Event) {
	if g.listener == nil {
		return
	}
	ev.Tick = g.tick
	g.listener(ev)
}

// IsInBounds проверяет, лежит ли клетка внутри сетки
func (g *Grid) IsInBounds(at vec.Coord) bool {
	return at.InRange(g.rows-1, g.cols-1)
}

// IsPassable проверяет проходимость клетки.
// Клетки вне сетки считаются проходимыми: за краем карты препятствий нет.
func (g *Grid) IsPassable(at vec.Coord) bool {
	if !g.IsInBounds(at) {
		return true
	}
	idx := at.Index(g.cols)
	return g.terrain[idx] && g.blockers[idx] == 0
}

// SetPassable меняет проходимость ландшафта в клетке. Хитбоксы объектов не затрагиваются.
func (g *Grid) SetPassable(at vec.Coord, passable bool) {
	if !g.IsInBounds(at) {
		return
	}
	g.terrain[at.Index(g.cols)] = passable
}

// blocked используется как проверка для разрешения столкновений с тайлами
func (g *Grid) blocked(at vec.Coord) bool {
	return !g.IsPassable(at)
}

// TileAt переводит координату тайла в координаты мира (левый верхний угол тайла)
func (g *Grid) TileAt(at vec.Coord) vec.Vec2Float {
	return vec.V(float64(at.Col)*g.tileW, float64(at.Row)*g.tileH)
}

// CoordAt возвращает тайл, содержащий точку мира
func (g *Grid) CoordAt(p vec.Vec2Float) vec.Coord {
	return vec.C(int(math.Floor(p.Y/g.tileH)), int(math.Floor(p.X/g.tileW)))
}

// tileBox возвращает прямоугольник тайла в координатах мира
func (g *Grid) tileBox(at vec.Coord) physics.Box {
	return physics.NewBox(g.TileAt(at), vec.V(g.tileW, g.tileH))
}

// Place размещает объект в слое layer с началом в at.
// nil-объект игнорируется. Клетки Span не должны быть заняты другими объектами слоя.
func (g *Grid) Place(layer int, obj *entity.Object, at vec.Coord) error {
	if layer < 0 || layer >= len(g.layers) {
		return fmt.Errorf("place layer %d: %w", layer, ErrLayerOutOfRange)
	}
	if obj == nil {
		return nil
	}
	if !g.IsInBounds(at) {
		return fmt.Errorf("place %v: %w", at, ErrOutOfBounds)
	}
	if err := obj.Validate(); err != nil {
		return fmt.Errorf("place %v: %w", at, err)
	}

	l := g.layers[layer]
	if l.IsOccupied(at) {
		return fmt.Errorf("place %s at %v: %w", obj.Kind, at, ErrCellOccupied)
	}
	for _, p := range obj.Span {
		if cell := at.Add(p); l.IsOccupied(cell) {
			return fmt.Errorf("place %s at %v, cell %v: %w", obj.Kind, at, cell, ErrCellOccupied)
		}
	}

	for _, cell := range l.Place(obj, at) {
		if g.IsInBounds(cell) {
			g.blockers[cell.Index(g.cols)]++
		}
	}

	g.metrics.objectPlaced()
	g.emit(Event{Type: EventObjectPlaced, Layer: layer, At: at, Object: obj})
	return nil
}

// Remove удаляет объект, занимающий клетку at в слое layer (at может быть любой клеткой его Span).
// Возвращает удалённый объект или nil.
func (g *Grid) Remove(layer int, at vec.Coord) *entity.Object {
	if layer < 0 || layer >= len(g.layers) {
		return nil
	}
	origin, ok := g.layers[layer].OriginOf(at)
	if !ok {
		return nil
	}

	obj, freed := g.layers[layer].Remove(origin)
	if obj == nil {
		return nil
	}
	for _, cell := range freed {
		if !g.IsInBounds(cell) {
			continue
		}
		if idx := cell.Index(g.cols); g.blockers[idx] > 0 {
			g.blockers[idx]--
		}
	}

	g.metrics.objectRemoved()
	g.emit(Event{Type: EventObjectRemoved, Layer: layer, At: origin, Object: obj})
	return obj
}

// ObjectAt возвращает объект слоя в клетке или nil
func (g *Grid) ObjectAt(layer int, at vec.Coord) *entity.Object {
	if layer < 0 || layer >= len(g.layers) {
		return nil
	}
	return g.layers[layer].ObjectAt(at)
}

// OriginOf возвращает клетку начала объекта слоя, занимающего at
func (g *Grid) OriginOf(layer int, at vec.Coord) (vec.Coord, bool) {
	if layer < 0 || layer >= len(g.layers) {
		return vec.Coord{}, false
	}
	return g.layers[layer].OriginOf(at)
}

// Slice возвращает объекты всех слоёв в клетке, начиная с нижнего слоя.
// Если переданы caps, возвращаются только объекты, обладающие всеми ими.
func (g *Grid) Slice(at vec.Coord, caps ...entity.Capability) []*entity.Object {
	var mask entity.Capability
	for _, c := range caps {
		mask |= c
	}

	var result []*entity.Object
	for _, l := range g.layers {
		obj := l.ObjectAt(at)
		if obj == nil || !obj.Has(mask) {
			continue
		}
		result = append(result, obj)
	}
	return result
}

// ObjectCount возвращает количество объектов во всех слоях
func (g *Grid) ObjectCount() int {
	n := 0
	for _, l := range g.layers {
		n += l.Count()
	}
	return n
}

// AddMover добавляет подвижную сущность. Во время тика добавление откладывается до его конца.
func (g *Grid) AddMover(m *entity.Mover) {
	if m == nil {
		return
	}
	if g.inTick {
		g.pending = append(g.pending, pendingOp{mover: m, add: true})
		return
	}
	g.addMover(m)
}

func (g *Grid) addMover(m *entity.Mover) {
	if _, exists := g.movers[m]; exists {
		return
	}

	g.nextSeq++
	rec := &moverRecord{mover: m, seq: g.nextSeq}
	rec.regions = g.buckets.RegionsOf(m.Box())
	for _, region := range rec.regions {
		g.buckets.Add(rec, region)
	}

	g.movers[m] = rec
	g.order = append(g.order, rec)
	g.metrics.setMovers(len(g.order))
	g.emit(Event{Type: EventMoverAdded, At: g.CoordAt(m.Position), Mover: m})
}

// RemoveMover удаляет подвижную сущность. Во время тика удаление откладывается до его конца.
func (g *Grid) RemoveMover(m *entity.Mover) {
	if m == nil {
		return
	}
	if g.inTick {
		g.pending = append(g.pending, pendingOp{mover: m})
		return
	}
	g.removeMover(m)
}

func (g *Grid) removeMover(m *entity.Mover) {
	rec, exists := g.movers[m]
	if !exists {
		return
	}

	for _, region := range rec.regions {
		g.buckets.Remove(rec, region)
	}
	delete(g.movers, m)

	i := sort.Search(len(g.order), func(i int) bool { return g.order[i].seq >= rec.seq })
	if i < len(g.order) && g.order[i] == rec {
		g.order = append(g.order[:i], g.order[i+1:]...)
	}

	g.metrics.setMovers(len(g.order))
	g.emit(Event{Type: EventMoverRemoved, At: g.CoordAt(m.Position), Mover: m})
}

// HasMover проверяет, зарегистрирована ли сущность
func (g *Grid) HasMover(m *entity.Mover) bool {
	_, ok := g.movers[m]
	return ok
}

// Movers возвращает сущности в порядке добавления
func (g *Grid) Movers() []*entity.Mover {
	result := make([]*entity.Mover, len(g.order))
	for i, rec := range g.order {
		result[i] = rec.mover
	}
	return result
}

// MoverCount возвращает количество сущностей
func (g *Grid) MoverCount() int {
	return len(g.order)
}

// MoversOverlapping возвращает сущности, хитбокс которых пересекает тайл at.
// Порядок совпадает с порядком добавления сущностей.
func (g *Grid) MoversOverlapping(at vec.Coord) []*entity.Mover {
	box := g.tileBox(at)
	candidates := g.buckets.Query(g.buckets.RegionsOf(box))

	var result []*entity.Mover
	for _, rec := range sortedRecords(candidates, nil) {
		if rec.mover.Box().Intersects(box) {
			result = append(result, rec.mover)
		}
	}
	return result
}

// MoversInRegion возвращает сущности, зарегистрированные в регионе
func (g *Grid) MoversInRegion(region vec.Coord) []*entity.Mover {
	recs := sortedRecords(g.buckets.Query([]vec.Coord{region}), nil)
	result := make([]*entity.Mover, len(recs))
	for i, rec := range recs {
		result[i] = rec.mover
	}
	return result
}

// RegionsOf возвращает регионы сетки, которые покрывает хитбокс сущности
func (g *Grid) RegionsOf(m *entity.Mover) []vec.Coord {
	var result []vec.Coord
	for _, region := range g.buckets.RegionsOf(m.Box()) {
		if g.buckets.InBounds(region) {
			result = append(result, region)
		}
	}
	return result
}

// MemberRegions возвращает регионы, в которых сущность фактически зарегистрирована
func (g *Grid) MemberRegions(m *entity.Mover) []vec.Coord {
	rec, ok := g.movers[m]
	if !ok {
		return nil
	}
	return g.buckets.RegionsOfItem(rec)
}

// Draw вызывает отрисовку всех объектов (слои снизу вверх, построчно), затем сущностей
func (g *Grid) Draw(dc entity.DrawContext) int {
	calls := 0
	for _, l := range g.layers {
		l.Each(func(origin vec.Coord, obj *entity.Object) {
			if obj.Drawable == nil {
				return
			}
			obj.Drawable.Draw(dc, g.TileAt(origin))
			calls++
		})
	}
	for _, rec := range g.order {
		if rec.mover.Drawable == nil {
			continue
		}
		rec.mover.Drawable.Draw(dc, rec.mover.Position)
		calls++
	}
	return calls
}

// sortedRecords упорядочивает множество записей по порядку добавления, исключая self
func sortedRecords(set map[*moverRecord]struct{}, self *moverRecord) []*moverRecord {
	result := make([]*moverRecord, 0, len(set))
	for rec := range set {
		if rec == self {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}
