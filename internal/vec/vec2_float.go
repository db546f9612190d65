package vec

import "math"

// Vec2Float представляет 2D координаты с плавающей точкой (в единицах мира, не в тайлах)
type Vec2Float struct {
	X, Y float64
}

// V короткий конструктор вектора
func V(x, y float64) Vec2Float {
	return Vec2Float{X: x, Y: y}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Y: v.Y * scalar}
}

// IsZero сообщает, является ли вектор нулевым
func (v Vec2Float) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Normalized возвращает нормализованный вектор
func (v Vec2Float) Normalized() Vec2Float {
	length := v.Length()
	if length == 0 {
		return Vec2Float{X: 0, Y: 0}
	}
	return Vec2Float{X: v.X / length, Y: v.Y / length}
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}
