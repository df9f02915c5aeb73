package world

import "strings"

// Material names a block or item type using the host's lowercase identifiers.
type Material string

const (
	MaterialAir          Material = "air"
	MaterialCaveAir      Material = "cave_air"
	MaterialVoidAir      Material = "void_air"
	MaterialWater        Material = "water"
	MaterialLava         Material = "lava"
	MaterialStone        Material = "stone"
	MaterialDirt         Material = "dirt"
	MaterialGrassBlock   Material = "grass_block"
	MaterialShortGrass   Material = "short_grass"
	MaterialTallGrass    Material = "tall_grass"
	MaterialSnow         Material = "snow"
	MaterialMagmaBlock   Material = "magma_block"
	MaterialCactus       Material = "cactus"
	MaterialCampfire     Material = "campfire"
	MaterialSoulCampfire Material = "soul_campfire"
	MaterialFire         Material = "fire"
	MaterialSoulFire     Material = "soul_fire"

	MaterialPlayerHead     Material = "player_head"
	MaterialTotemOfUndying Material = "totem_of_undying"
)

var passable = map[Material]bool{
	MaterialAir:        true,
	MaterialCaveAir:    true,
	MaterialVoidAir:    true,
	MaterialWater:      true,
	MaterialLava:       true,
	MaterialShortGrass: true,
	MaterialTallGrass:  true,
	MaterialSnow:       true,
	MaterialFire:       true,
	MaterialSoulFire:   true,
}

// unsafeFloors are solid or burning blocks a corpse must never rest on.
var unsafeFloors = map[Material]bool{
	MaterialLava:         true,
	MaterialMagmaBlock:   true,
	MaterialCactus:       true,
	MaterialCampfire:     true,
	MaterialSoulCampfire: true,
	MaterialFire:         true,
	MaterialSoulFire:     true,
}

// ParseMaterial normalises a configured material name ("TOTEM_OF_UNDYING",
// "minecraft:player_head") into a Material.
func ParseMaterial(s string) Material {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "minecraft:")
	return Material(s)
}

// Passable reports whether an entity can occupy a block of this material.
// Unknown materials are treated as full solid blocks.
func (m Material) Passable() bool {
	return passable[m]
}

func (m Material) Solid() bool {
	return !m.Passable()
}

func (m Material) HazardousFluid() bool {
	return m == MaterialLava
}

func (m Material) String() string {
	return string(m)
}
