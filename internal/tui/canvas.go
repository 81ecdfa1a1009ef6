package tui

import (
	"strings"

	"github.com/jakecoffman/cp"
)

// canvas is a character grid over a world-space window.
type canvas struct {
	w, h  int
	cells [][]rune

	// world window
	minX, minY, maxX, maxY float64
}

func newCanvas(w, h int, minX, minY, maxX, maxY float64) *canvas {
	cells := make([][]rune, h)
	for i := range cells {
		cells[i] = make([]rune, w)
	}
	c := &canvas{w: w, h: h, cells: cells, minX: minX, minY: minY, maxX: maxX, maxY: maxY}
	c.clear()
	return c
}

func (c *canvas) clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

// project maps a world point to a cell; y grows upwards in the world.
func (c *canvas) project(p cp.Vector) (int, int) {
	x := int((p.X - c.minX) / (c.maxX - c.minX) * float64(c.w-1))
	y := int((c.maxY - p.Y) / (c.maxY - c.minY) * float64(c.h-1))
	return x, y
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *canvas) plot(p cp.Vector, r rune) {
	x, y := c.project(p)
	c.set(x, y, r)
}

func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) segment(a, b cp.Vector, r rune) {
	x1, y1 := c.project(a)
	x2, y2 := c.project(b)
	c.line(x1, y1, x2, y2, r)
}

func (c *canvas) lines(indent string) []string {
	out := make([]string, len(c.cells))
	for i, row := range c.cells {
		out[i] = indent + string(row)
	}
	return out
}

func (c *canvas) String() string {
	return strings.Join(c.lines(""), "\n")
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
