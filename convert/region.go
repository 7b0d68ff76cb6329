package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/chunks"
	"github.com/astei/anvil2snbt/internal/atomicfile"
	"github.com/astei/anvil2snbt/nbt"
)

// Mode says how a conversion represented its input.
type Mode string

const (
	// ModeFile is a single NBT file and a single SNBT value.
	ModeFile Mode = "file"
	// ModeRegion is a region written as one SNBT file holding every chunk.
	ModeRegion Mode = "region"
	// ModeChunks is a region stored as a chunk folder.
	ModeChunks Mode = "chunks"
)

type Result struct {
	Mode   Mode
	Output string
	// Folder is the chunk folder in ModeChunks.
	Folder   string
	Chunks   int
	Failures []chunks.Failure
}

func (s *Service) IsValidAnvilFile(path string) bool {
	return anvil.IsValidAnvilFile(path)
}

func (s *Service) GetRegionInfo(path string) (*anvil.RegionInfo, error) {
	return anvil.GetRegionInfo(path, anvil.WithLogger(s.logger))
}

func (s *Service) ListChunksInRegion(path string) ([]anvil.ChunkDescriptor, error) {
	r, err := anvil.OpenRegion(path, anvil.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ListChunks(), nil
}

// ExtractChunkData renders one chunk as SNBT. x and z may be local or world
// chunk coordinates.
func (s *Service) ExtractChunkData(path string, x, z int) (string, error) {
	return chunks.Extract(path, x, z, s.chunkOptions(nil))
}

// ConvertMcaToChunkFiles splits a region into folder.
func (s *Service) ConvertMcaToChunkFiles(ctx context.Context, path, folder string, progress chunks.ProgressFunc) (*chunks.SplitResult, error) {
	return chunks.Split(ctx, path, folder, s.chunkOptions(progress))
}

// ConvertChunkFilesToMca rebuilds a region from folder. The folder is
// consumed: it is deleted once every chunk file merged cleanly.
func (s *Service) ConvertChunkFilesToMca(ctx context.Context, folder, outPath string, progress chunks.ProgressFunc) (*chunks.MergeResult, error) {
	return s.MergeChunkFolder(ctx, folder, outPath, true, progress)
}

// MergeChunkFolder is ConvertChunkFilesToMca with the folder deletion
// optional.
func (s *Service) MergeChunkFolder(ctx context.Context, folder, outPath string, removeSource bool, progress chunks.ProgressFunc) (*chunks.MergeResult, error) {
	o := s.chunkOptions(progress)
	o.RemoveSource = removeSource
	return chunks.Merge(ctx, folder, outPath, o)
}

// ConvertToSnbt writes the SNBT form of path to outPath. NBT files become a
// single value. Regions become one file with a comment-headed value per
// chunk, unless they hold more chunks than the configured threshold: those
// are split into a chunk folder next to outPath, recorded by a chunk mode
// marker, and outPath only receives a header.
func (s *Service) ConvertToSnbt(ctx context.Context, path, outPath string, progress chunks.ProgressFunc) (*Result, error) {
	if !IsRegionPath(path) {
		text, err := s.ConvertNbtToSnbt(path)
		if err != nil {
			return nil, err
		}
		if err := atomicfile.WriteFile(outPath, []byte(text)); err != nil {
			return nil, err
		}
		if err := chunks.RemoveMarker(outPath); err != nil {
			return nil, err
		}
		return &Result{Mode: ModeFile, Output: outPath}, nil
	}

	r, err := anvil.OpenRegion(path, anvil.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if present := len(r.Slots()); s.threshold > 0 && present > s.threshold {
		s.logger.Info("region above chunk mode threshold, writing chunk folder",
			"region", path, "chunks", present, "threshold", s.threshold)
		return s.toChunkMode(ctx, path, outPath, progress)
	}

	docs, failures, err := chunks.Walk(ctx, r, "to-snbt", s.chunkOptions(progress), func(d *chunks.Decoded) (string, error) {
		return d.Render(s.indent), nil
	})
	if err != nil {
		return nil, err
	}
	rx, rz, _ := r.Coords()
	var h nbt.Header
	h.Set(nbt.HeaderTotalChunks, strconv.Itoa(len(docs)))
	h.Set(chunks.KeyRegion, fmt.Sprintf("%d %d", rx, rz))

	var sb strings.Builder
	sb.WriteString(h.String())
	for _, doc := range docs {
		sb.WriteByte('\n')
		sb.WriteString(doc)
	}
	if err := atomicfile.WriteFile(outPath, []byte(sb.String())); err != nil {
		return nil, err
	}
	if err := chunks.RemoveMarker(outPath); err != nil {
		return nil, err
	}
	return &Result{Mode: ModeRegion, Output: outPath, Chunks: len(docs), Failures: failures}, nil
}

// chunkFolderFor places the chunk folder of an SNBT output next to it:
// out/r.0.0.mca.snbt uses out/r.0.0.chunks.
func chunkFolderFor(snbtPath string) string {
	return chunks.FolderFor(strings.TrimSuffix(snbtPath, filepath.Ext(snbtPath)))
}

func (s *Service) toChunkMode(ctx context.Context, path, outPath string, progress chunks.ProgressFunc) (*Result, error) {
	folder := chunkFolderFor(outPath)
	split, err := chunks.Split(ctx, path, folder, s.chunkOptions(progress))
	if err != nil {
		return nil, err
	}
	if err := chunks.WriteMarker(outPath, folder); err != nil {
		return nil, err
	}

	var h nbt.Header
	h.Set(nbt.HeaderTotalChunks, strconv.Itoa(len(split.Manifest.Chunks)))
	h.Set(chunks.KeyRegion, fmt.Sprintf("%d %d", split.Manifest.RegionX, split.Manifest.RegionZ))
	h.Set(KeyChunkFolder, filepath.Base(folder))
	if err := atomicfile.WriteFile(outPath, []byte(h.String())); err != nil {
		return nil, err
	}
	return &Result{
		Mode:     ModeChunks,
		Output:   outPath,
		Folder:   folder,
		Chunks:   len(split.Manifest.Chunks),
		Failures: split.Failures,
	}, nil
}

// ConvertFromSnbt turns an SNBT file produced by ConvertToSnbt back into
// binary at outPath. A chunk mode marker, or a "Chunk folder" header line,
// selects a merge of the chunk folder; a clean merge deletes the folder and
// the marker. A "Total chunks" header marks a
// region written as one file. Anything else is a single NBT value.
func (s *Service) ConvertFromSnbt(ctx context.Context, path, outPath string, progress chunks.ProgressFunc) (*Result, error) {
	folder, chunkMode, err := chunks.ReadMarker(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil && !(chunkMode && errors.Is(err, os.ErrNotExist)) {
		return nil, err
	}
	text := string(data)
	header, body := nbt.ParseHeader(text)
	if !chunkMode {
		if v, ok := header.Get(KeyChunkFolder); ok && strings.TrimSpace(body) == "" {
			folder, chunkMode = filepath.Join(filepath.Dir(path), v), true
		}
	}

	if chunkMode {
		merged, err := s.ConvertChunkFilesToMca(ctx, folder, outPath, progress)
		if err != nil {
			return nil, err
		}
		if len(merged.Failures) == 0 {
			if err := chunks.RemoveMarker(path); err != nil {
				return nil, err
			}
		}
		return &Result{Mode: ModeChunks, Output: outPath, Folder: folder, Chunks: merged.Stats.Chunks, Failures: merged.Failures}, nil
	}

	if _, ok := header.Get(nbt.HeaderTotalChunks); ok {
		return s.regionFromDocuments(ctx, text, outPath, progress)
	}
	if err := s.ConvertSnbtToNbt(text, outPath); err != nil {
		return nil, err
	}
	return &Result{Mode: ModeFile, Output: outPath}, nil
}

// regionFromDocuments rebuilds a region from a multi-document SNBT file.
// Each document's header names its chunk; documents without one are
// failures.
func (s *Service) regionFromDocuments(ctx context.Context, text, outPath string, progress chunks.ProgressFunc) (*Result, error) {
	docs, err := nbt.ParseSNBTDocuments(text)
	if err != nil {
		return nil, err
	}
	res := &Result{Mode: ModeRegion, Output: outPath}
	var entries []anvil.ChunkEntry
	taken := make(map[int]bool)
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, coord, err := s.encodeDocument(doc)
		if err == nil && taken[coord.Index()] {
			err = fmt.Errorf("slot (%d, %d) appears twice", coord.LocalX, coord.LocalZ)
		}
		if err != nil {
			res.Failures = append(res.Failures, chunks.Failure{Coord: coord, Err: fmt.Errorf("document %d: %w", i+1, err)})
			s.recordChunk(false, 0)
		} else {
			taken[coord.Index()] = true
			entries = append(entries, entry)
			s.recordChunk(true, len(entry.Data))
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}
	stats, err := anvil.WriteRegion(outPath, entries, anvil.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	res.Chunks = stats.Chunks
	return res, nil
}

func (s *Service) encodeDocument(doc nbt.Document) (anvil.ChunkEntry, anvil.ChunkCoord, error) {
	if _, ok := doc.Header.GetInts(chunks.KeyChunk); !ok {
		return anvil.ChunkEntry{}, anvil.ChunkCoord{}, errors.New("no chunk coordinates in header")
	}
	meta := chunks.ParseMeta(doc.Header)
	root, ok := doc.Value.(*nbt.Compound)
	if !ok {
		return anvil.ChunkEntry{}, meta.Coord, fmt.Errorf("chunk is a %s, not a compound", doc.Value.Type())
	}
	scheme := meta.Scheme
	if !scheme.Valid() {
		scheme = s.defaultScheme
	}
	ts := meta.Timestamp
	if !meta.HasTimestamp {
		ts = uint32(time.Now().Unix())
	}
	raw, err := nbt.Encode(&nbt.NamedTag{Name: meta.RootName, Root: root})
	if err != nil {
		return anvil.ChunkEntry{}, meta.Coord, err
	}
	payload, err := anvil.Compress(scheme, raw)
	if err != nil {
		return anvil.ChunkEntry{}, meta.Coord, err
	}
	return anvil.ChunkEntry{
		LocalX:    meta.Coord.LocalX,
		LocalZ:    meta.Coord.LocalZ,
		Timestamp: ts,
		Scheme:    scheme,
		Data:      payload,
	}, meta.Coord, nil
}

func (s *Service) recordChunk(ok bool, size int) {
	s.recorder.ChunkProcessed("from-snbt", ok, size)
}
