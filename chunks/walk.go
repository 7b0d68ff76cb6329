package chunks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/astei/anvil2snbt/anvil"
	"github.com/astei/anvil2snbt/internal/workpool"
	"github.com/astei/anvil2snbt/nbt"
)

// Decoded is one chunk read out of a region.
type Decoded struct {
	Meta
	Root         *nbt.Compound
	Summary      Summary
	PayloadBytes int
}

// Render returns the chunk as a commented SNBT document.
func (d *Decoded) Render(indent string) string {
	return renderChunk(d.Header(d.Summary), d.Root, indent)
}

// Walk decodes every present chunk of r on a bounded worker pool and passes
// each to fn, which may run concurrently. Results of successful chunks are
// returned in slot order. Chunks that cannot be read, decoded or handled by
// fn become failures; the walk carries on. Only cancellation aborts it.
func Walk[T any](ctx context.Context, r *anvil.Reader, operation string, opts Options, fn func(*Decoded) (T, error)) ([]T, []Failure, error) {
	opts = opts.withDefaults()
	start := time.Now()
	defer func() { opts.Recorder.OperationDone(operation, time.Since(start)) }()

	_, _, named := r.Coords()
	descs := r.Slots()
	type outcome struct {
		val T
		err error
	}
	outcomes := make([]outcome, len(descs))
	prog := newProgress(opts.Progress, len(descs))
	var readMu sync.Mutex

	err := workpool.Run(ctx, opts.Workers, len(descs), func(_ context.Context, i int) error {
		defer prog.step()
		desc := descs[i]
		d, err := decodeSlot(r, &readMu, desc, named, opts)
		if err == nil {
			outcomes[i].val, err = fn(d)
		}
		outcomes[i].err = err
		size := 0
		if d != nil {
			size = d.PayloadBytes
		}
		opts.Recorder.ChunkProcessed(operation, err == nil, size)
		if err != nil {
			opts.Logger.Warn("skipping chunk", "operation", operation,
				"region", r.Name, "chunkX", desc.ChunkX, "chunkZ", desc.ChunkZ, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		vals     []T
		failures []Failure
	)
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, Failure{Coord: anvil.CoordFromWorld(descs[i].ChunkX, descs[i].ChunkZ), Err: o.err})
			continue
		}
		vals = append(vals, o.val)
	}
	return vals, failures, nil
}

// decodeSlot reads one slot. The reader is shared, so only the file access
// happens under mu; decompression and decoding run in parallel.
func decodeSlot(r *anvil.Reader, mu *sync.Mutex, desc anvil.ChunkDescriptor, named bool, opts Options) (*Decoded, error) {
	if !desc.IsValid {
		return nil, desc.Err
	}
	mu.Lock()
	payload, scheme, external, err := r.ReadRaw(desc.LocalX, desc.LocalZ)
	ts := r.Timestamp(desc.LocalX, desc.LocalZ)
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	data, err := anvil.Decompress(scheme, payload)
	if err != nil {
		return nil, err
	}
	nt, err := nbt.Decode(data)
	if err != nil {
		return nil, err
	}
	coord := anvil.CoordFromWorld(desc.ChunkX, desc.ChunkZ)
	return &Decoded{
		Meta: Meta{
			Coord:     coord,
			Scheme:    scheme,
			Timestamp: ts,
			External:  external,
			RootName:  nt.Name,
		},
		Root:         nt.Root,
		Summary:      checkPosition(opts, coord, named, nt.Root),
		PayloadBytes: len(payload),
	}, nil
}

// JoinFailures folds failures into one error, or nil.
func JoinFailures(failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Errorf("%d chunks failed: %s", len(failures), strings.Join(msgs, "; "))
}
