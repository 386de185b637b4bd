// Package core provides the shared geometry, error and result types for virtual-pointer.
package core

import "fmt"

// Point is a page coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// String returns "(x, y)".
func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// TopLeft returns the offset of the bounds, the anchor used for pointer targeting.
func (b Bounds) TopLeft() Point {
	return Point{X: b.X, Y: b.Y}
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// IsEmpty reports whether the bounds cover no area.
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}
