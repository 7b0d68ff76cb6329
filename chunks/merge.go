package chunks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/workpool"
	"github.com/astei/anvil2snbt/nbt"
)

var ErrNoChunkFiles = errors.New("chunks: no chunk files found")

type MergeResult struct {
	Region   string
	Stats    anvil.WriteStats
	Failures []Failure
}

// chunkFile is a chunk_<x>_<z>.snbt file found in a folder.
type chunkFile struct {
	path  string
	coord anvil.ChunkCoord
}

// listChunkFiles returns the chunk files of folder ordered by slot.
func listChunkFiles(folder string) ([]chunkFile, error) {
	dirEntries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var files []chunkFile
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		x, z, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		files = append(files, chunkFile{path: filepath.Join(folder, e.Name()), coord: anvil.CoordFromWorld(x, z)})
	}
	sort.Slice(files, func(a, b int) bool {
		ia, ib := files[a].coord.Index(), files[b].coord.Index()
		if ia != ib {
			return ia < ib
		}
		return files[a].path < files[b].path
	})
	return files, nil
}

// Merge rebuilds a region from the chunk files in folder. Each chunk is
// compressed with the scheme its header or the manifest records, falling
// back to opts.DefaultCompression. Files that cannot be parsed are listed
// in Failures and left out of the region.
func Merge(ctx context.Context, folder, outRegionPath string, opts Options) (*MergeResult, error) {
	opts = opts.withDefaults()
	start := time.Now()
	defer func() { opts.Recorder.OperationDone("merge", time.Since(start)) }()

	files, err := listChunkFiles(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunkFiles, folder)
	}
	manifest, err := ReadManifest(folder)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		opts.Logger.Warn("ignoring unreadable manifest", "folder", folder, "error", err)
	}
	recorded := manifest.byFile()

	type outcome struct {
		entry anvil.ChunkEntry
		err   error
	}
	outcomes := make([]outcome, len(files))
	prog := newProgress(opts.Progress, len(files))
	err = workpool.Run(ctx, opts.Workers, len(files), func(_ context.Context, i int) error {
		defer prog.step()
		f := files[i]
		rec, known := recorded[filepath.Base(f.path)]
		entry, err := encodeChunkFile(f, rec, known, opts.DefaultCompression)
		outcomes[i] = outcome{entry: entry, err: err}
		opts.Recorder.ChunkProcessed("merge", err == nil, len(entry.Data))
		if err != nil {
			opts.Logger.Warn("skipping chunk file", "file", f.path, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Region: outRegionPath}
	w, err := anvil.NewWriter(outRegionPath, anvil.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	taken := make(map[int]string)
	for i, o := range outcomes {
		f := files[i]
		if o.err == nil {
			if prev, dup := taken[f.coord.Index()]; dup {
				o.err = fmt.Errorf("slot (%d, %d) already filled by %s", f.coord.LocalX, f.coord.LocalZ, filepath.Base(prev))
			}
		}
		if o.err == nil {
			o.err = w.WriteChunk(o.entry)
		}
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{Coord: f.coord, File: f.path, Err: o.err})
			continue
		}
		taken[f.coord.Index()] = f.path
	}
	if err := ctx.Err(); err != nil {
		w.Abort()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	res.Stats = w.Stats()
	opts.Logger.Info("merged chunk folder", "folder", folder, "region", outRegionPath,
		"chunks", res.Stats.Chunks, "external", res.Stats.ExternalChunks, "failed", len(res.Failures))

	if opts.RemoveSource && len(res.Failures) == 0 {
		if err := os.RemoveAll(folder); err != nil {
			return res, err
		}
	}
	return res, nil
}

// encodeChunkFile parses one chunk file and compresses its NBT for the
// region writer. The file name decides the slot.
func encodeChunkFile(f chunkFile, rec ManifestEntry, known bool, fallback anvil.CompressionScheme) (anvil.ChunkEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return anvil.ChunkEntry{}, err
	}
	header, body := nbt.ParseHeader(string(data))
	root, err := nbt.ParseSNBTCompound(body)
	if err != nil {
		return anvil.ChunkEntry{}, err
	}
	meta := ParseMeta(header)

	scheme := meta.Scheme
	if !scheme.Valid() {
		scheme = rec.Compression
	}
	if !scheme.Valid() {
		scheme = fallback
	}
	var ts uint32
	switch {
	case meta.HasTimestamp:
		ts = meta.Timestamp
	case known:
		ts = rec.Timestamp
	default:
		ts = uint32(time.Now().Unix())
	}

	raw, err := nbt.Encode(&nbt.NamedTag{Name: meta.RootName, Root: root})
	if err != nil {
		return anvil.ChunkEntry{}, err
	}
	payload, err := anvil.Compress(scheme, raw)
	if err != nil {
		return anvil.ChunkEntry{}, err
	}
	return anvil.ChunkEntry{
		LocalX:    f.coord.LocalX,
		LocalZ:    f.coord.LocalZ,
		Timestamp: ts,
		Scheme:    scheme,
		Data:      payload,
	}, nil
}
