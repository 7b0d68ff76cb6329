package chunks

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/nbt"
)

type testChunk struct {
	localX, localZ int
	scheme         anvil.CompressionScheme
	root           *nbt.Compound
	raw            []byte
}

func newChunk(t *testing.T, regionX, regionZ, localX, localZ int, scheme anvil.CompressionScheme) testChunk {
	t.Helper()
	root := nbt.NewCompound()
	root.Set("DataVersion", nbt.Int(3465))
	root.Set("xPos", nbt.Int(regionX*32+localX))
	root.Set("zPos", nbt.Int(regionZ*32+localZ))
	root.Set("Status", nbt.String("minecraft:full"))
	section := nbt.NewCompound()
	section.Set("Y", nbt.Byte(-4))
	section.Set("BlockLight", make(nbt.ByteArray, 2048))
	sections, err := nbt.NewList(nbt.TagCompound, section)
	require.NoError(t, err)
	root.Set("sections", sections)
	root.Set("LastUpdate", nbt.Long(1234567890123))
	return testChunk{localX: localX, localZ: localZ, scheme: scheme, root: root}
}

func writeRegion(t *testing.T, path string, chunks ...testChunk) {
	t.Helper()
	var entries []anvil.ChunkEntry
	for i := range chunks {
		c := &chunks[i]
		if c.raw == nil {
			data, err := nbt.Encode(&nbt.NamedTag{Root: c.root})
			require.NoError(t, err)
			c.raw = data
		}
		payload, err := anvil.Compress(c.scheme, c.raw)
		require.NoError(t, err)
		entries = append(entries, anvil.ChunkEntry{
			LocalX: c.localX, LocalZ: c.localZ, Scheme: c.scheme,
			Timestamp: uint32(1700000000 + i), Data: payload,
		})
	}
	_, err := anvil.WriteRegion(path, entries)
	require.NoError(t, err)
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.1.0.mca")
	five := newChunk(t, 1, 0, 5, 5, anvil.CompressionZlib)
	writeRegion(t, path, newChunk(t, 1, 0, 0, 0, anvil.CompressionZlib), five)

	text, err := Extract(path, 5, 5, Options{})
	require.NoError(t, err)
	header, body := nbt.ParseHeader(text)
	v, _ := header.Get(KeyChunk)
	assert.Equal(t, "37 5", v)
	v, _ = header.Get(KeyLocal)
	assert.Equal(t, "5 5", v)
	v, _ = header.Get(KeyRegion)
	assert.Equal(t, "1 0", v)
	v, _ = header.Get(KeyCompression)
	assert.Equal(t, "zlib", v)
	v, _ = header.Get(KeyStatus)
	assert.Equal(t, "minecraft:full", v)
	assert.Contains(t, body, "xPos:37")

	root, err := nbt.ParseSNBTCompound(body)
	require.NoError(t, err)
	assert.Nil(t, nbt.Diff(five.root, root))

	byWorld, err := Extract(path, 37, 5, Options{})
	require.NoError(t, err)
	assert.Equal(t, text, byWorld)

	_, err = Extract(path, 3, 3, Options{})
	assert.ErrorIs(t, err, anvil.ErrChunkNotFound)
}

func TestSplitMergeRoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "r.1.-1.mca")
	chunks := []testChunk{
		newChunk(t, 1, -1, 0, 0, anvil.CompressionZlib),
		newChunk(t, 1, -1, 5, 5, anvil.CompressionGzip),
		newChunk(t, 1, -1, 31, 31, anvil.CompressionLZ4),
		newChunk(t, 1, -1, 7, 0, anvil.CompressionNone),
	}
	// 300 sectors of noise cannot be compressed below the 255-sector limit.
	noise := make(nbt.ByteArray, 300*anvil.SectorSize)
	rng := rand.New(rand.NewSource(3))
	for i := range noise {
		noise[i] = int8(rng.Intn(256) - 128)
	}
	big := newChunk(t, 1, -1, 4, 2, anvil.CompressionZlib)
	big.root.Set("noise", noise)
	chunks = append(chunks, big)
	writeRegion(t, src, chunks...)
	require.FileExists(t, filepath.Join(filepath.Dir(src), "r.1.-1.c.36.-30.mcc"))

	folder := FolderFor(src)
	var mu sync.Mutex
	var calls []int
	split, err := Split(context.Background(), src, folder, Options{
		Workers: 3,
		Indent:  "  ",
		Progress: func(done, total int) {
			mu.Lock()
			calls = append(calls, done)
			mu.Unlock()
			assert.Equal(t, 5, total)
		},
	})
	require.NoError(t, err)
	assert.Empty(t, split.Failures)
	assert.Len(t, split.Manifest.Chunks, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	for _, name := range []string{"chunk_32_-32.snbt", "chunk_37_-27.snbt", "chunk_63_-1.snbt", "chunk_39_-32.snbt", "chunk_36_-30.snbt", ManifestName} {
		assert.FileExists(t, filepath.Join(folder, name))
	}

	mf, err := os.Open(filepath.Join(folder, ManifestName))
	require.NoError(t, err)
	total, ok, err := nbt.TotalChunks(mf)
	mf.Close()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, total)

	manifest, err := ReadManifest(folder)
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.RegionX)
	assert.Equal(t, -1, manifest.RegionZ)
	assert.Equal(t, "r.1.-1.mca", manifest.Source)

	outDir := t.TempDir()
	out := filepath.Join(outDir, "r.1.-1.mca")
	merged, err := Merge(context.Background(), folder, out, Options{Workers: 2})
	require.NoError(t, err)
	assert.Empty(t, merged.Failures)
	assert.Equal(t, 5, merged.Stats.Chunks)
	assert.Equal(t, 1, merged.Stats.ExternalChunks)
	assert.FileExists(t, filepath.Join(outDir, "r.1.-1.c.36.-30.mcc"))

	r, err := anvil.OpenRegion(out)
	require.NoError(t, err)
	defer r.Close()
	for i, c := range chunks {
		chunk, err := r.ReadChunk(c.localX, c.localZ)
		require.NoError(t, err)
		assert.Equal(t, c.scheme, chunk.Scheme, "chunk %d", i)
		assert.EqualValues(t, 1700000000+i, chunk.Timestamp)
		assert.Equal(t, c.raw, chunk.Data, "chunk %d", i)
	}
	assert.Len(t, r.ListChunks(), 5)
}

func TestSplitRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r.0.0.mca")
	good := newChunk(t, 0, 0, 1, 1, anvil.CompressionZlib)
	data, err := nbt.Encode(&nbt.NamedTag{Root: good.root})
	require.NoError(t, err)
	payload, err := anvil.Compress(anvil.CompressionZlib, data)
	require.NoError(t, err)
	_, err = anvil.WriteRegion(src, []anvil.ChunkEntry{
		{LocalX: 1, LocalZ: 1, Scheme: anvil.CompressionZlib, Data: payload},
		{LocalX: 2, LocalZ: 2, Scheme: anvil.CompressionZlib, Data: []byte("definitely not zlib")},
	})
	require.NoError(t, err)

	folder := filepath.Join(dir, "out")
	res, err := Split(context.Background(), src, folder, Options{})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Coord.LocalX)
	assert.FileExists(t, filepath.Join(folder, "chunk_1_1.snbt"))
	assert.NoFileExists(t, filepath.Join(folder, "chunk_2_2.snbt"))

	manifest, err := ReadManifest(folder)
	require.NoError(t, err)
	require.Len(t, manifest.Failed, 1)
	assert.Equal(t, 2, manifest.Failed[0].X)
	assert.Error(t, JoinFailures(res.Failures))
	assert.NoError(t, JoinFailures(nil))
}

func TestSplitCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r.0.0.mca")
	writeRegion(t, src, newChunk(t, 0, 0, 0, 0, anvil.CompressionZlib), newChunk(t, 0, 0, 1, 0, anvil.CompressionZlib))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	folder := filepath.Join(dir, "r.0.0.chunks")
	_, err := Split(ctx, src, folder, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, folder)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary folder left behind")
}

func TestMergeSkipsBadFiles(t *testing.T) {
	folder := t.TempDir()
	good := newChunk(t, 0, 0, 3, 4, anvil.CompressionZlib)
	d := &Decoded{
		Meta: Meta{Coord: anvil.ChunkCoord{LocalX: 3, LocalZ: 4}, Scheme: anvil.CompressionGzip, Timestamp: 99},
		Root: good.root,
	}
	require.NoError(t, os.WriteFile(filepath.Join(folder, "chunk_3_4.snbt"), []byte(d.Render("")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "chunk_5_5.snbt"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "notes.txt"), []byte("ignored"), 0o644))
	// Same slot as chunk_3_4 once reduced to local coordinates.
	require.NoError(t, os.WriteFile(filepath.Join(folder, "chunk_67_68.snbt"), []byte("{}"), 0o644))

	out := filepath.Join(t.TempDir(), "r.0.0.mca")
	res, err := Merge(context.Background(), folder, out, Options{RemoveSource: true})
	require.NoError(t, err)
	require.Len(t, res.Failures, 2)
	var names []string
	for _, f := range res.Failures {
		names = append(names, filepath.Base(f.File))
	}
	assert.ElementsMatch(t, []string{"chunk_5_5.snbt", "chunk_67_68.snbt"}, names)
	assert.DirExists(t, folder, "folder kept after failures")

	r, err := anvil.OpenRegion(out)
	require.NoError(t, err)
	defer r.Close()
	chunk, err := r.ReadChunk(3, 4)
	require.NoError(t, err)
	assert.Equal(t, anvil.CompressionGzip, chunk.Scheme)
	assert.EqualValues(t, 99, chunk.Timestamp)
}

func TestMergeDefaultsAndRemoveSource(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "r.0.0.chunks")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "chunk_0_1.snbt"), []byte("{xPos:0,zPos:1}"), 0o644))

	out := filepath.Join(t.TempDir(), "r.0.0.mca")
	_, err := Merge(context.Background(), folder, out, Options{DefaultCompression: anvil.CompressionLZ4, RemoveSource: true})
	require.NoError(t, err)
	assert.NoDirExists(t, folder)

	r, err := anvil.OpenRegion(out)
	require.NoError(t, err)
	defer r.Close()
	data, scheme, err := r.ReadChunkData(0, 1)
	require.NoError(t, err)
	assert.Equal(t, anvil.CompressionLZ4, scheme)
	nt, err := nbt.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "", nt.Name)
	// No header and no manifest: the chunk is stamped when written.
	assert.InDelta(t, time.Now().Unix(), int64(r.Timestamp(0, 1)), 60)

	_, err = Merge(context.Background(), t.TempDir(), out, Options{})
	assert.ErrorIs(t, err, ErrNoChunkFiles)
}

func TestZeroTimestampSurvivesSplitMerge(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r.0.0.mca")
	c := newChunk(t, 0, 0, 6, 7, anvil.CompressionZlib)
	raw, err := nbt.Encode(&nbt.NamedTag{Root: c.root})
	require.NoError(t, err)
	payload, err := anvil.Compress(anvil.CompressionZlib, raw)
	require.NoError(t, err)
	_, err = anvil.WriteRegion(src, []anvil.ChunkEntry{{LocalX: 6, LocalZ: 7, Scheme: anvil.CompressionZlib, Data: payload}})
	require.NoError(t, err)

	folder := FolderFor(src)
	_, err = Split(context.Background(), src, folder, Options{})
	require.NoError(t, err)
	text, err := os.ReadFile(filepath.Join(folder, FileName(6, 7)))
	require.NoError(t, err)
	assert.Contains(t, string(text), "// Timestamp: 0\n")

	first := filepath.Join(dir, "a", "r.0.0.mca")
	second := filepath.Join(dir, "b", "r.0.0.mca")
	for _, out := range []string{first, second} {
		_, err = Merge(context.Background(), folder, out, Options{})
		require.NoError(t, err)
	}

	r, err := anvil.OpenRegion(first)
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.Timestamp(6, 7))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRootNameSurvivesSplit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "r.0.0.mca")
	c := newChunk(t, 0, 0, 2, 2, anvil.CompressionZlib)
	data, err := nbt.Encode(&nbt.NamedTag{Name: "named \"root\"", Root: c.root})
	require.NoError(t, err)
	c.raw = data
	writeRegion(t, src, c)

	folder := FolderFor(src)
	_, err = Split(context.Background(), src, folder, Options{})
	require.NoError(t, err)
	out := filepath.Join(dir, "rebuilt", "r.0.0.mca")
	_, err = Merge(context.Background(), folder, out, Options{})
	require.NoError(t, err)

	r, err := anvil.OpenRegion(out)
	require.NoError(t, err)
	defer r.Close()
	got, _, err := r.ReadChunkData(2, 2)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "chunk_-3_40.snbt", FileName(-3, 40))
	x, z, ok := ParseFileName("/tmp/r.0.0.chunks/chunk_-3_40.snbt")
	require.True(t, ok)
	assert.Equal(t, -3, x)
	assert.Equal(t, 40, z)
	for _, bad := range []string{"chunk_1.snbt", "chunk_a_1.snbt", "chunk_1_2.nbt", "manifest.snbt"} {
		_, _, ok := ParseFileName(bad)
		assert.False(t, ok, bad)
	}
}

func TestMarker(t *testing.T) {
	dir := t.TempDir()
	region := filepath.Join(dir, "r.2.3.mca")
	assert.Equal(t, filepath.Join(dir, "r.2.3.chunks"), FolderFor(region))
	snbt := region + ".snbt"
	assert.True(t, strings.HasSuffix(MarkerPath(snbt), "r.2.3.mca.snbt.chunk_mode"))

	_, ok, err := ReadMarker(snbt)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteMarker(snbt, FolderFor(region)))
	raw, err := os.ReadFile(MarkerPath(snbt))
	require.NoError(t, err)
	assert.Equal(t, "r.2.3.chunks\n", string(raw))

	folder, ok, err := ReadMarker(snbt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, FolderFor(region), folder)

	require.NoError(t, RemoveMarker(snbt))
	require.NoError(t, RemoveMarker(snbt))
	assert.NoFileExists(t, MarkerPath(snbt))
}

func TestSummarize(t *testing.T) {
	flat := newChunk(t, 0, 0, 3, 9, anvil.CompressionZlib).root
	s := Summarize(flat)
	assert.True(t, s.HasPos)
	assert.Equal(t, 3, s.X)
	assert.Equal(t, 9, s.Z)
	assert.Equal(t, 3465, s.DataVersion)
	assert.Equal(t, "minecraft:full", s.Status)
	assert.Equal(t, 1, s.Sections)

	level := nbt.NewCompound()
	level.Set("xPos", nbt.Int(-1))
	level.Set("zPos", nbt.Int(2))
	old := nbt.NewCompound()
	old.Set("DataVersion", nbt.Int(1343))
	old.Set("Level", level)
	s = Summarize(old)
	assert.Equal(t, Summary{X: -1, Z: 2, HasPos: true, DataVersion: 1343}, s)

	assert.Equal(t, Summary{}, Summarize(nil))
}
