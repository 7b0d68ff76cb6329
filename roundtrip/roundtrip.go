// Package roundtrip converts a file to text and back and checks that the
// result is structurally identical to the input.
package roundtrip

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/chunks"
	"github.com/astei/anvil2snbt/internal/logging"
	"github.com/astei/anvil2snbt/nbt"
)

type Mode string

const (
	ModeRegion Mode = "region"
	ModeFile   Mode = "file"
)

// Location pinpoints the first difference found.
type Location struct {
	// Chunk is set for regions.
	Chunk *anvil.ChunkCoord
	Path  string
	// Reason says how the two sides differ.
	Reason string
}

func (l *Location) String() string {
	var sb strings.Builder
	if l.Chunk != nil {
		sb.WriteString(l.Chunk.String())
		sb.WriteString(": ")
	}
	if l.Path != "" {
		sb.WriteString(l.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(l.Reason)
	return sb.String()
}

type Report struct {
	Mode           Mode
	Match          bool
	FirstMismatch  *Location
	ChunksCompared int
	// ChunksSkipped counts chunks of the input that could not be read and so
	// were not part of the comparison.
	ChunksSkipped int
}

type Options struct {
	Workers int
	Logger  *slog.Logger
	Indent  string
	// TempDir holds intermediate files; empty uses the system default.
	TempDir string
}

// Verify converts path to SNBT and back and compares the result with the
// original. Regions (.mca) go through a chunk folder split and merge; every
// other file is treated as a standalone NBT file. A mismatch is reported in
// the Report, not as an error.
func Verify(ctx context.Context, path string, opts Options) (*Report, error) {
	opts.Logger = logging.OrDiscard(opts.Logger)
	if strings.EqualFold(filepath.Ext(path), ".mca") {
		return verifyRegion(ctx, path, opts)
	}
	return verifyFile(path, opts)
}

func verifyFile(path string, opts Options) (*Report, error) {
	original, _, err := nbt.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := nbt.ToSNBT(original.Root)
	if opts.Indent != "" {
		text = nbt.ToSNBTIndent(original.Root, opts.Indent)
	}
	root, err := nbt.ParseSNBTCompound(text)
	if err != nil {
		return nil, fmt.Errorf("reparse %s: %w", path, err)
	}
	data, err := nbt.Encode(&nbt.NamedTag{Name: original.Name, Root: root})
	if err != nil {
		return nil, fmt.Errorf("re-encode %s: %w", path, err)
	}
	rebuilt, err := nbt.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode rebuilt %s: %w", path, err)
	}

	report := &Report{Mode: ModeFile, Match: true}
	if loc := compareTrees(original, rebuilt); loc != nil {
		report.Match = false
		report.FirstMismatch = loc
	}
	return report, nil
}

func verifyRegion(ctx context.Context, path string, opts Options) (*Report, error) {
	work, err := os.MkdirTemp(opts.TempDir, "anvil2snbt-verify-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	chunkOpts := chunks.Options{Workers: opts.Workers, Logger: opts.Logger, Indent: opts.Indent}
	folder := filepath.Join(work, "chunks")
	split, err := chunks.Split(ctx, path, folder, chunkOpts)
	if err != nil {
		return nil, err
	}
	// Keep the name so the merged region resolves its .mcc files the same way.
	rebuiltPath := filepath.Join(work, filepath.Base(path))
	if len(split.Manifest.Chunks) > 0 {
		if _, err := chunks.Merge(ctx, folder, rebuiltPath, chunkOpts); err != nil {
			return nil, err
		}
	} else if _, err := anvil.WriteRegion(rebuiltPath, nil); err != nil {
		return nil, err
	}

	original, err := anvil.OpenRegion(path, anvil.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	defer original.Close()
	rebuilt, err := anvil.OpenRegion(rebuiltPath, anvil.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	defer rebuilt.Close()

	report := &Report{Mode: ModeRegion, Match: true}
	for _, d := range original.Slots() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coord := anvil.CoordFromWorld(d.ChunkX, d.ChunkZ)
		want, err := original.ReadChunkTag(d.LocalX, d.LocalZ)
		if err != nil {
			report.ChunksSkipped++
			opts.Logger.Warn("original chunk unreadable, not compared", "chunk", coord.String(), "error", err)
			continue
		}
		report.ChunksCompared++
		got, err := rebuilt.ReadChunkTag(d.LocalX, d.LocalZ)
		if err != nil {
			report.Match = false
			report.FirstMismatch = &Location{Chunk: &coord, Reason: "chunk lost in round trip: " + err.Error()}
			return report, nil
		}
		if loc := compareTrees(want, got); loc != nil {
			loc.Chunk = &coord
			report.Match = false
			report.FirstMismatch = loc
			return report, nil
		}
	}
	if n := len(rebuilt.Slots()); n != report.ChunksCompared {
		report.Match = false
		report.FirstMismatch = &Location{Reason: fmt.Sprintf("rebuilt region holds %d chunks, expected %d", n, report.ChunksCompared)}
	}
	return report, nil
}

// compareTrees returns where a and b first differ, or nil. Identical
// encodings are accepted without walking the trees.
func compareTrees(a, b *nbt.NamedTag) *Location {
	if a.Name != b.Name {
		return &Location{Reason: fmt.Sprintf("root name %q != %q", a.Name, b.Name)}
	}
	if fa, fb := fingerprint(a), fingerprint(b); fa != 0 && fa == fb {
		return nil
	}
	if m := nbt.Diff(a.Root, b.Root); m != nil {
		return &Location{Path: m.Path, Reason: m.Reason}
	}
	return nil
}

// fingerprint hashes the canonical encoding of nt; zero means it could not
// be encoded.
func fingerprint(nt *nbt.NamedTag) uint64 {
	data, err := nbt.Encode(nt)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
