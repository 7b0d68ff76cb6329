package roundtrip

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/nbt"
)

func levelDat() *nbt.NamedTag {
	data := nbt.NewCompound()
	data.Set("LevelName", nbt.String("New World"))
	data.Set("RandomSeed", nbt.Long(-4172144997902289642))
	data.Set("SpawnX", nbt.Int(-112))
	data.Set("rainTime", nbt.Int(0))
	data.Set("BorderSize", nbt.Double(5.9999968e7))
	data.Set("WanderingTraderSpawnChance", nbt.Float(0.075))
	root := nbt.NewCompound()
	root.Set("Data", data)
	return &nbt.NamedTag{Name: "", Root: root}
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.dat")
	require.NoError(t, nbt.WriteFile(path, levelDat(), nbt.CompressionGzip))

	report, err := Verify(context.Background(), path, Options{Indent: "  "})
	require.NoError(t, err)
	assert.Equal(t, ModeFile, report.Mode)
	assert.True(t, report.Match)
	assert.Nil(t, report.FirstMismatch)
}

func TestVerifyFileReportsMismatch(t *testing.T) {
	nt := levelDat()
	// Text keeps NaN but not its payload bits.
	nt.Root.Set("odd", nbt.Float(math.Float32frombits(0x7FC00001)))
	path := filepath.Join(t.TempDir(), "odd.nbt")
	require.NoError(t, nbt.WriteFile(path, nt, nbt.CompressionNone))

	report, err := Verify(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.False(t, report.Match)
	require.NotNil(t, report.FirstMismatch)
	assert.Equal(t, "odd", report.FirstMismatch.Path)
	assert.Nil(t, report.FirstMismatch.Chunk)
}

func TestVerifyFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Verify(context.Background(), filepath.Join(dir, "missing.dat"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.nbt")
	require.NoError(t, os.WriteFile(bad, []byte{5, 0, 0}, 0o644))
	_, err = Verify(context.Background(), bad, Options{})
	assert.ErrorIs(t, err, nbt.ErrNotACompoundRoot)
}

func regionChunk(t *testing.T, x, z int, scheme anvil.CompressionScheme, extra nbt.Tag) anvil.ChunkEntry {
	t.Helper()
	root := nbt.NewCompound()
	root.Set("xPos", nbt.Int(x))
	root.Set("zPos", nbt.Int(z))
	root.Set("Heightmaps", nbt.NewCompound())
	root.Set("block_ticks", &nbt.List{ElemType: nbt.TagEnd})
	if extra != nil {
		root.Set("extra", extra)
	}
	data, err := nbt.Encode(&nbt.NamedTag{Root: root})
	require.NoError(t, err)
	payload, err := anvil.Compress(scheme, data)
	require.NoError(t, err)
	return anvil.ChunkEntry{LocalX: x & 31, LocalZ: z & 31, Scheme: scheme, Timestamp: 1600000000, Data: payload}
}

func TestVerifyRegion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")

	noise := make(nbt.LongArray, 300*anvil.SectorSize/8)
	rng := rand.New(rand.NewSource(11))
	for i := range noise {
		noise[i] = rng.Int63() - rng.Int63()
	}
	_, err := anvil.WriteRegion(path, []anvil.ChunkEntry{
		regionChunk(t, 0, 0, anvil.CompressionZlib, nil),
		regionChunk(t, 5, 5, anvil.CompressionLZ4, nil),
		regionChunk(t, 9, 1, anvil.CompressionZlib, noise),
		{LocalX: 3, LocalZ: 3, Scheme: anvil.CompressionGzip, Data: []byte("garbage")},
	})
	require.NoError(t, err)

	report, err := Verify(context.Background(), path, Options{Workers: 2, TempDir: dir})
	require.NoError(t, err)
	assert.Equal(t, ModeRegion, report.Mode)
	assert.True(t, report.Match, "%v", report.FirstMismatch)
	assert.Equal(t, 3, report.ChunksCompared)
	assert.Equal(t, 1, report.ChunksSkipped)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"r.0.0.mca", "r.0.0.c.9.1.mcc"}, names)
}

func TestVerifyEmptyRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.4.4.mca")
	_, err := anvil.WriteRegion(path, nil)
	require.NoError(t, err)

	report, err := Verify(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.True(t, report.Match)
	assert.Zero(t, report.ChunksCompared)
}

func TestCompareTrees(t *testing.T) {
	a := levelDat()
	b := levelDat()
	assert.Nil(t, compareTrees(a, b))

	inner, _ := b.Root.Get("Data")
	inner.(*nbt.Compound).Set("SpawnX", nbt.Int(0))
	loc := compareTrees(a, b)
	require.NotNil(t, loc)
	assert.Equal(t, "Data.SpawnX", loc.Path)

	b = levelDat()
	b.Name = "renamed"
	loc = compareTrees(a, b)
	require.NotNil(t, loc)
	assert.Contains(t, loc.String(), "root name")
}
