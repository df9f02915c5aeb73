package world

import "sync"

// World answers the geometry questions the safe-location search needs.
type World interface {
	Name() string
	// MinHeight is the lowest valid block y; MaxHeight is exclusive.
	MinHeight() int
	MaxHeight() int
	BlockAt(pos BlockPos) Material
	Spawn() Location
}

// Provider looks worlds up by name.
type Provider interface {
	World(name string) (World, bool)
}

// Grid is a sparse in-memory World. Unset blocks are air.
type Grid struct {
	name      string
	minHeight int
	maxHeight int
	spawn     Location

	mu     sync.RWMutex
	blocks map[BlockPos]Material
}

func NewGrid(name string, minHeight, maxHeight int, spawn Location) *Grid {
	spawn.World = name
	return &Grid{
		name:      name,
		minHeight: minHeight,
		maxHeight: maxHeight,
		spawn:     spawn,
		blocks:    make(map[BlockPos]Material),
	}
}

func (g *Grid) Name() string   { return g.name }
func (g *Grid) MinHeight() int { return g.minHeight }
func (g *Grid) MaxHeight() int { return g.maxHeight }
func (g *Grid) Spawn() Location {
	return g.spawn
}

func (g *Grid) BlockAt(pos BlockPos) Material {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m, ok := g.blocks[pos]
	if !ok {
		return MaterialAir
	}
	return m
}

// Set places a block. Setting air clears the cell.
func (g *Grid) Set(pos BlockPos, m Material) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m == MaterialAir || m == "" {
		delete(g.blocks, pos)
		return
	}
	g.blocks[pos] = m
}

// Fill sets every block in the inclusive box between a and b.
func (g *Grid) Fill(a, b BlockPos, m Material) {
	for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
		for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
			for z := min(a.Z, b.Z); z <= max(a.Z, b.Z); z++ {
				g.Set(BlockPos{X: x, Y: y, Z: z}, m)
			}
		}
	}
}

// Worlds is the set of loaded worlds.
type Worlds struct {
	grids map[string]*Grid
}

// NewWorlds builds grids from world definitions keyed by world name.
func NewWorlds(defs map[string]*Definition) *Worlds {
	w := &Worlds{grids: make(map[string]*Grid, len(defs))}
	for name, def := range defs {
		w.grids[name] = def.Build(name)
	}
	return w
}

func (w *Worlds) World(name string) (World, bool) {
	g, ok := w.grids[name]
	if !ok {
		return nil, false
	}
	return g, true
}

// Grid returns the mutable grid for a world so block updates can be applied.
func (w *Worlds) Grid(name string) (*Grid, bool) {
	g, ok := w.grids[name]
	return g, ok
}

// Add registers a grid, replacing any existing world with the same name.
func (w *Worlds) Add(g *Grid) {
	w.grids[g.Name()] = g
}
