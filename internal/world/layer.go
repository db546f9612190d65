package world

// Индексы слоёв, используемые генератором карт и демо-сервером.
// Ядро само по себе допускает любое количество слоёв.
//
// 0 – LayerGround: земля, вода;
// 1 – LayerActive: камни, кусты и всё, с чем сталкиваются сущности;
// 2 – LayerCeiling: кроны, крыши (рисуются поверх сущностей).
const (
	LayerGround = iota
	LayerActive
	LayerCeiling

	DefaultLayerCount // всегда последний: количество слоёв
)

const (
	DefaultTileSize   = 16.0
	DefaultRegionSize = 5
)
