package chunks

import (
	"fmt"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/nbt"
)

// Extract renders one chunk of the region at path as SNBT with a comment
// header naming its coordinates. x and z may be region-local or world chunk
// coordinates; only their low five bits select the slot.
func Extract(path string, x, z int, opts Options) (string, error) {
	opts = opts.withDefaults()
	r, err := anvil.OpenRegion(path, anvil.WithLogger(opts.Logger))
	if err != nil {
		return "", err
	}
	defer r.Close()

	chunk, err := r.ReadChunk(x&31, z&31)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	nt, err := nbt.Decode(chunk.Data)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", path, chunk.Coord, err)
	}
	_, _, named := r.Coords()
	d := &Decoded{
		Meta: Meta{
			Coord:     chunk.Coord,
			Scheme:    chunk.Scheme,
			Timestamp: chunk.Timestamp,
			External:  chunk.External,
			RootName:  nt.Name,
		},
		Root:    nt.Root,
		Summary: checkPosition(opts, chunk.Coord, named, nt.Root),
	}
	return d.Render(opts.Indent), nil
}

// checkPosition summarises root and warns when the chunk's stored position
// disagrees with the slot it was read from. Regions whose name carries no
// coordinates cannot be checked.
func checkPosition(opts Options, c anvil.ChunkCoord, named bool, root *nbt.Compound) Summary {
	s := Summarize(root)
	if named && s.HasPos && (s.X != c.WorldX() || s.Z != c.WorldZ()) {
		opts.Logger.Warn("chunk position does not match its slot",
			"slot", c.String(), "xPos", s.X, "zPos", s.Z)
	}
	return s
}
