package chunks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/atomicfile"
)

type SplitResult struct {
	Folder   string
	Manifest *Manifest
	Failures []Failure
}

// Split writes every readable chunk of the region at regionPath to
// outFolder as chunk_<x>_<z>.snbt, plus a manifest. The folder is built
// under a temporary name and replaces outFolder only when complete.
// Unreadable chunks are listed in Failures and in the manifest.
func Split(ctx context.Context, regionPath, outFolder string, opts Options) (*SplitResult, error) {
	opts = opts.withDefaults()
	r, err := anvil.OpenRegion(regionPath, anvil.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	tmp, err := atomicfile.CreateDir(outFolder)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(tmp)
		}
	}()

	entries, failures, err := Walk(ctx, r, "split", opts, func(d *Decoded) (ManifestEntry, error) {
		name := FileName(d.Coord.WorldX(), d.Coord.WorldZ())
		if err := os.WriteFile(filepath.Join(tmp, name), []byte(d.Render(opts.Indent)), 0o644); err != nil {
			return ManifestEntry{}, err
		}
		return ManifestEntry{
			File:        name,
			X:           d.Coord.WorldX(),
			Z:           d.Coord.WorldZ(),
			Compression: d.Scheme,
			Timestamp:   d.Timestamp,
			External:    d.External,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	rx, rz, _ := r.Coords()
	m := &Manifest{
		Source:  filepath.Base(regionPath),
		RegionX: rx,
		RegionZ: rz,
		Chunks:  entries,
	}
	for _, f := range failures {
		m.Failed = append(m.Failed, ManifestFailure{X: f.Coord.WorldX(), Z: f.Coord.WorldZ(), Error: f.Err.Error()})
	}
	if err := WriteManifest(tmp, m, opts.Indent); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := atomicfile.ReplaceDir(tmp, outFolder); err != nil {
		return nil, err
	}
	committed = true
	opts.Logger.Info("split region", "region", regionPath, "folder", outFolder,
		"chunks", len(entries), "failed", len(failures))
	return &SplitResult{Folder: outFolder, Manifest: m, Failures: failures}, nil
}
