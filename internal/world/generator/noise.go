package generator

import (
	"github.com/aquilax/go-perlin"
)

const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Количество октав
)

// Noise генератор шума Перлина с собственным сидом.
// Каждый экземпляр независим, глобального состояния нет.
type Noise struct {
	perlin *perlin.Perlin
	scale  float64
}

// NewNoise создаёт генератор шума с указанным сидом и масштабом координат
func NewNoise(seed int64, scale float64) *Noise {
	return &Noise{
		perlin: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		scale:  scale,
	}
}

// At возвращает значение шума для клетки (от 0 до 1)
func (n *Noise) At(row, col int) float64 {
	// Значение шума от -1 до 1
	v := n.perlin.Noise2D(float64(col)*n.scale, float64(row)*n.scale)

	v = (v + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
