package anvil

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	RegionSize     = 32
	ChunkSlots     = RegionSize * RegionSize
	SectorSize     = 4096
	headerSectors  = 2
	maxSectorCount = 255
	maxSectorIndex = 1<<24 - 1
)

// ChunkCoord addresses one slot of one region.
type ChunkCoord struct {
	RegionX, RegionZ int
	LocalX, LocalZ   int
}

// CoordFromWorld splits world chunk coordinates into region and local parts.
func CoordFromWorld(chunkX, chunkZ int) ChunkCoord {
	return ChunkCoord{
		RegionX: chunkX >> 5,
		RegionZ: chunkZ >> 5,
		LocalX:  chunkX & 31,
		LocalZ:  chunkZ & 31,
	}
}

func (c ChunkCoord) WorldX() int {
	return c.RegionX*RegionSize + c.LocalX
}

func (c ChunkCoord) WorldZ() int {
	return c.RegionZ*RegionSize + c.LocalZ
}

// Index is the slot position in the location and timestamp tables.
func (c ChunkCoord) Index() int {
	return slotIndex(c.LocalX, c.LocalZ)
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk (%d, %d) in r.%d.%d", c.WorldX(), c.WorldZ(), c.RegionX, c.RegionZ)
}

func slotIndex(x, z int) int {
	return (x & 31) + (z&31)*RegionSize
}

func validLocal(x, z int) bool {
	return x >= 0 && x < RegionSize && z >= 0 && z < RegionSize
}

// ParseRegionName extracts the region coordinates from a path whose base
// name is r.<x>.<z>.mca.
func ParseRegionName(path string) (x, z int, ok bool) {
	parts := strings.Split(filepath.Base(path), ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(parts[1])
	z, errZ := strconv.Atoi(parts[2])
	if errX != nil || errZ != nil {
		return 0, 0, false
	}
	return x, z, true
}

func RegionFileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

// ExternalChunkName names the file holding an oversized chunk's payload.
// chunkX and chunkZ are world chunk coordinates.
func ExternalChunkName(regionX, regionZ, chunkX, chunkZ int) string {
	return fmt.Sprintf("r.%d.%d.c.%d.%d.mcc", regionX, regionZ, chunkX, chunkZ)
}

// vanillaExternalChunkName is the name the game itself uses. It is only
// consulted when reading.
func vanillaExternalChunkName(chunkX, chunkZ int) string {
	return fmt.Sprintf("c.%d.%d.mcc", chunkX, chunkZ)
}
