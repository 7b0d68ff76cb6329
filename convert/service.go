// Package convert exposes the codec operations callers use: NBT files and
// region files to and from SNBT, inspection, and chunk folder conversion.
package convert

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/chunks"
	"github.com/astei/anvil2snbt/internal/config"
	"github.com/astei/anvil2snbt/internal/logging"
	"github.com/astei/anvil2snbt/internal/metrics"
)

// Header keys written by the converter in addition to the chunk keys.
const (
	KeyRootName    = chunks.KeyRootName
	KeyCompression = chunks.KeyCompression
	KeyChunkFolder = "Chunk folder"
)

// Service runs conversions with one set of settings. It holds no state
// between calls and is safe for concurrent use.
type Service struct {
	logger        *slog.Logger
	recorder      *metrics.Recorder
	workers       int
	indent        string
	defaultScheme anvil.CompressionScheme
	threshold     int
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder makes batch operations report to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New builds a Service from cfg; a nil cfg means the defaults.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	scheme, err := anvil.ParseCompressionScheme(cfg.Region.DefaultCompression)
	if err != nil {
		return nil, err
	}
	s := &Service{
		workers:       cfg.Workers,
		indent:        cfg.SNBT.Indent,
		defaultScheme: scheme,
		threshold:     cfg.Region.ChunkModeThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s, nil
}

// chunkOptions returns the chunk engine settings for one call.
func (s *Service) chunkOptions(progress chunks.ProgressFunc) chunks.Options {
	o := chunks.Options{
		Workers:            s.workers,
		Logger:             s.logger,
		Progress:           progress,
		Indent:             s.indent,
		DefaultCompression: s.defaultScheme,
	}
	if s.recorder != nil {
		o.Recorder = s.recorder
	}
	return o
}

// IsRegionPath reports whether path names an Anvil region file.
func IsRegionPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mca")
}
