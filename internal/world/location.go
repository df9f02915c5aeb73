package world

import (
	"fmt"
	"math"
)

// Location is a position and facing inside a named world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int
}

func (p BlockPos) Below() BlockPos {
	return BlockPos{X: p.X, Y: p.Y - 1, Z: p.Z}
}

// Block returns the block coordinate containing the location.
func (l Location) Block() BlockPos {
	return BlockPos{
		X: int(math.Floor(l.X)),
		Y: int(math.Floor(l.Y)),
		Z: int(math.Floor(l.Z)),
	}
}

// Add returns a copy of the location offset by the given amounts.
func (l Location) Add(dx, dy, dz float64) Location {
	l.X += dx
	l.Y += dy
	l.Z += dz
	return l
}

// Coords formats the block coordinates as "x,y,z".
func (l Location) Coords() string {
	b := l.Block()
	return fmt.Sprintf("%d,%d,%d", b.X, b.Y, b.Z)
}

func (l Location) String() string {
	return fmt.Sprintf("%s: %s", l.World, l.Coords())
}
