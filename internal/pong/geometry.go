package pong

// Rect 为轴对齐矩形，(X, Y) 为左上角。
type Rect struct {
	X, Y          int
	Width, Height int
}

// Collides 判断两个矩形的半开区域在两个轴上是否同时重叠。
func Collides(a, b Rect) bool {
	return a.X < b.X+b.Width &&
		a.X+a.Width > b.X &&
		a.Y < b.Y+b.Height &&
		a.Y+a.Height > b.Y
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
