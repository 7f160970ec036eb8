package valueobjects

import (
	"math"

	pkgerrors "familytree/pkg/errors"
)

// Position is a value object representing node coordinates on the canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{X: x, Y: y}, nil
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Midpoint calculates the midpoint between two positions
func (p Position) Midpoint(other Position) Position {
	return Position{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
