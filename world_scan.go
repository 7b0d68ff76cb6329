package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/workpool"
)

// RegionScan is the outcome of inspecting one region file of a world.
type RegionScan struct {
	Path string            `json:"path"`
	Info *anvil.RegionInfo `json:"info,omitempty"`
	Err  string            `json:"error,omitempty"`
}

// ScanWorld inspects every .mca file directly inside root concurrently.
// Unreadable regions are reported in their entry rather than failing the
// whole scan.
func ScanWorld(ctx context.Context, root string, workers int, logger *slog.Logger) ([]RegionScan, error) {
	files, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, possibleRegionFile := range files {
		if possibleRegionFile.IsDir() || !strings.HasSuffix(possibleRegionFile.Name(), ".mca") {
			continue
		}
		logger.Debug("discovered region", "file", possibleRegionFile.Name())
		paths = append(paths, filepath.Join(root, possibleRegionFile.Name()))
	}
	sort.Strings(paths)

	results := make([]RegionScan, len(paths))
	err = workpool.Run(ctx, workpool.Size(workers), len(paths), func(_ context.Context, i int) error {
		results[i].Path = paths[i]
		info, err := anvil.GetRegionInfo(paths[i], anvil.WithLogger(logger))
		if err != nil {
			logger.Warn("unable to read region", "file", paths[i], "err", err)
			results[i].Err = err.Error()
			return nil
		}
		results[i].Info = info
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// worldTotals sums the chunk counts of a scan.
func worldTotals(scans []RegionScan) (regions, present, valid int) {
	for _, s := range scans {
		if s.Info == nil {
			continue
		}
		regions++
		present += s.Info.PresentChunks
		valid += s.Info.ValidChunks
	}
	return
}

func (s RegionScan) String() string {
	if s.Info == nil {
		return fmt.Sprintf("%s: %s", filepath.Base(s.Path), s.Err)
	}
	return fmt.Sprintf("%s: %d chunks (%d valid)", filepath.Base(s.Path), s.Info.PresentChunks, s.Info.ValidChunks)
}
