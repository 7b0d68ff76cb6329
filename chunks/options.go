// Package chunks turns a region file into a folder of per-chunk SNBT files
// and back.
package chunks

import (
	"log/slog"
	"sync"
	"time"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/logging"
)

// Recorder receives per-chunk and per-operation measurements.
// *metrics.Recorder implements it.
type Recorder interface {
	ChunkProcessed(operation string, ok bool, payloadBytes int)
	OperationDone(operation string, elapsed time.Duration)
}

// ProgressFunc is told how many of total chunks are finished. Calls are
// serialized.
type ProgressFunc func(done, total int)

type Options struct {
	// Workers bounds the goroutines used; zero means one per logical CPU.
	Workers  int
	Logger   *slog.Logger
	Progress ProgressFunc
	Recorder Recorder
	// Indent is the per-level indentation of chunk files. Empty writes
	// compact SNBT.
	Indent string
	// DefaultCompression is used by Merge for chunks that do not record
	// their scheme. Zero means zlib.
	DefaultCompression anvil.CompressionScheme
	// RemoveSource makes Merge delete the chunk folder after a merge
	// without failures.
	RemoveSource bool
}

func (o Options) withDefaults() Options {
	o.Logger = logging.OrDiscard(o.Logger)
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if !o.DefaultCompression.Valid() {
		o.DefaultCompression = anvil.CompressionZlib
	}
	return o
}

type nopRecorder struct{}

func (nopRecorder) ChunkProcessed(string, bool, int)    {}
func (nopRecorder) OperationDone(string, time.Duration) {}

// Failure is a chunk a batch operation had to leave out.
type Failure struct {
	Coord anvil.ChunkCoord
	// File is set when the failure concerns a chunk file.
	File string
	Err  error
}

func (f Failure) Error() string {
	if f.File != "" {
		return f.File + ": " + f.Err.Error()
	}
	return f.Coord.String() + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}

type progress struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
}

func newProgress(fn ProgressFunc, total int) *progress {
	return &progress{fn: fn, total: total}
}

func (p *progress) step() {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.fn(p.done, p.total)
}
