package main

import (
	"log"
	"time"

	"voxelreplay.ai/internal/metrics"
	"voxelreplay.ai/internal/persistence/indexdb"
	persistlog "voxelreplay.ai/internal/persistence/log"
	"voxelreplay.ai/internal/sim/playback"
)

// seekRecorder fans a completed seek out to metrics, the journal and the
// index. Any sink may be nil.
type seekRecorder struct {
	sim     *playback.Simulation
	metrics *metrics.Metrics
	journal *persistlog.SeekLogger
	index   runtimeIndex
	log     *log.Logger
	now     func() time.Time
}

func (r *seekRecorder) Record(f playback.Frame) {
	if r.metrics != nil {
		r.metrics.ObserveSeek(f)
		// runs inside the seek, so the world is stable here
		if t, ok := r.sim.Terrain(); ok {
			r.metrics.SetLiveFaces(t.World().LiveFaces())
		}
	}
	at := r.now()
	if r.journal != nil {
		err := r.journal.WriteSeek(persistlog.SeekEntry{
			Seq:        f.Seq,
			At:         at.UTC().Format(time.RFC3339Nano),
			From:       f.From.String(),
			To:         f.To.String(),
			Ops:        f.Ops,
			Chunks:     f.Chunks,
			DurationUS: f.Duration.Microseconds(),
		})
		if err != nil && r.log != nil {
			r.log.Printf("journal: %v", err)
		}
	}
	if r.index != nil {
		r.index.RecordSeek(indexdb.SeekRow{
			Seq:      f.Seq,
			At:       at,
			From:     f.From.String(),
			To:       f.To.String(),
			Ops:      f.Ops,
			Chunks:   f.Chunks,
			Duration: f.Duration,
		})
	}
}
