package chunks

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/astei/anvil2snbt/internal/atomicfile"
)

const (
	FolderSuffix = ".chunks"
	MarkerSuffix = ".chunk_mode"
)

// FolderFor returns the chunk folder used for a region:
// world/region/r.0.0.mca becomes world/region/r.0.0.chunks.
func FolderFor(regionPath string) string {
	return strings.TrimSuffix(regionPath, filepath.Ext(regionPath)) + FolderSuffix
}

// MarkerPath returns the marker that sits next to an SNBT output whose
// content lives in a chunk folder, e.g. r.0.0.mca.snbt.chunk_mode.
func MarkerPath(snbtPath string) string {
	return snbtPath + MarkerSuffix
}

// WriteMarker records that snbtPath is represented by folder. The folder is
// stored relative to the marker when possible.
func WriteMarker(snbtPath, folder string) error {
	target := folder
	if rel, err := filepath.Rel(filepath.Dir(snbtPath), folder); err == nil && filepath.IsAbs(folder) == filepath.IsAbs(snbtPath) {
		target = rel
	}
	return atomicfile.WriteFile(MarkerPath(snbtPath), []byte(filepath.ToSlash(target)+"\n"))
}

// ReadMarker returns the chunk folder recorded for snbtPath. ok is false
// when there is no marker.
func ReadMarker(snbtPath string) (folder string, ok bool, err error) {
	data, err := os.ReadFile(MarkerPath(snbtPath))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	folder = filepath.FromSlash(strings.TrimSpace(string(data)))
	if folder == "" {
		return "", false, errors.New("chunks: empty chunk mode marker " + MarkerPath(snbtPath))
	}
	if !filepath.IsAbs(folder) {
		folder = filepath.Join(filepath.Dir(snbtPath), folder)
	}
	return folder, true, nil
}

// RemoveMarker deletes the marker of snbtPath if there is one.
func RemoveMarker(snbtPath string) error {
	err := os.Remove(MarkerPath(snbtPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
