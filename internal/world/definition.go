package world

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Definition describes a world's bounds, spawn and initial terrain. It is
// loaded from JSON assets.
type Definition struct {
	MinHeight int      `json:"min_height"`
	MaxHeight int      `json:"max_height"`
	Spawn     Point    `json:"spawn"`
	Fill      []Region `json:"fill,omitempty"`
	Blocks    []Placed `json:"blocks,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Region is an inclusive box of a single material.
type Region struct {
	From     [3]int   `json:"from"`
	To       [3]int   `json:"to"`
	Material Material `json:"material"`
}

type Placed struct {
	At       [3]int   `json:"at"`
	Material Material `json:"material"`
}

// Validate satisfies storage.ValidatingSpec.
func (d *Definition) Validate() error {
	el := errors.NewErrorList()

	if d.MaxHeight <= d.MinHeight {
		el.Add(fmt.Errorf("max_height (%d) must be greater than min_height (%d)", d.MaxHeight, d.MinHeight))
	}
	if d.Spawn.Y < float64(d.MinHeight) || d.Spawn.Y >= float64(d.MaxHeight) {
		el.Add(fmt.Errorf("spawn y %.1f is outside the height range", d.Spawn.Y))
	}
	for i, r := range d.Fill {
		if r.Material == "" {
			el.Add(fmt.Errorf("fill %d: material is required", i))
		}
	}
	for i, b := range d.Blocks {
		if b.Material == "" {
			el.Add(fmt.Errorf("block %d: material is required", i))
		}
	}

	return el.Err()
}

// Build creates the grid described by the definition. Fills are applied in
// order, then individual blocks.
func (d *Definition) Build(name string) *Grid {
	g := NewGrid(name, d.MinHeight, d.MaxHeight, Location{X: d.Spawn.X, Y: d.Spawn.Y, Z: d.Spawn.Z})
	for _, r := range d.Fill {
		g.Fill(pos(r.From), pos(r.To), ParseMaterial(string(r.Material)))
	}
	for _, b := range d.Blocks {
		g.Set(pos(b.At), ParseMaterial(string(b.Material)))
	}
	return g
}

func pos(v [3]int) BlockPos {
	return BlockPos{X: v[0], Y: v[1], Z: v[2]}
}
