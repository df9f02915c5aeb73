package world

// IsSafe reports whether a corpse can rest with its feet in pos: the cell is
// inside the height range with one block of margin above the floor, the feet
// cell is passable and not lava, and the floor below is solid and harmless.
func IsSafe(w World, pos BlockPos) bool {
	if pos.Y < w.MinHeight()+1 || pos.Y >= w.MaxHeight() {
		return false
	}

	feet := w.BlockAt(pos)
	if !feet.Passable() || feet.HazardousFluid() {
		return false
	}

	below := w.BlockAt(pos.Below())
	if !below.Solid() || unsafeFloors[below] {
		return false
	}

	return true
}

// FindSafeLocation returns requested unchanged when it is already safe.
// Otherwise it searches rings of increasing Chebyshev radius around the
// requested block, checking vertical offsets 0, +1, -1, +2, -2 ... up to the
// ring radius, and returns the centre of the first safe cell. When nothing
// within radius is safe the world spawn is returned and found is false.
func FindSafeLocation(w World, requested Location, radius int) (loc Location, found bool) {
	origin := requested.Block()
	if IsSafe(w, origin) {
		return requested, true
	}

	for r := 1; r <= radius; r++ {
		offsets := verticalOffsets(r)
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if abs(dx) != r && abs(dz) != r {
					continue
				}

				for _, dy := range offsets {
					y := origin.Y + dy
					if y < w.MinHeight() || y > w.MaxHeight() {
						continue
					}

					p := BlockPos{X: origin.X + dx, Y: y, Z: origin.Z + dz}
					if IsSafe(w, p) {
						return Location{
							World: requested.World,
							X:     float64(p.X) + 0.5,
							Y:     float64(p.Y),
							Z:     float64(p.Z) + 0.5,
							Yaw:   requested.Yaw,
							Pitch: requested.Pitch,
						}, true
					}
				}
			}
		}
	}

	return w.Spawn(), false
}

// verticalOffsets returns 0, 1, -1, 2, -2, ... r, -r.
func verticalOffsets(r int) []int {
	offsets := make([]int, 0, 2*r+1)
	offsets = append(offsets, 0)
	for dy := 1; dy <= r; dy++ {
		offsets = append(offsets, dy, -dy)
	}
	return offsets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
