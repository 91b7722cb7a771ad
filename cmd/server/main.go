package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voxelreplay.ai/internal/metrics"
	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/persistence/indexdb"
	persistlog "voxelreplay.ai/internal/persistence/log"
	"voxelreplay.ai/internal/sim/playback"
	"voxelreplay.ai/internal/sim/tuning"
	"voxelreplay.ai/internal/transport/viewer"
)

type serverConfig struct {
	ExportPath string
	TuningPath string
	DataDir    string
	DisableDB  bool
	Autoplay   bool
}

// replayRuntime is everything the HTTP surface serves from.
type replayRuntime struct {
	sim     *playback.Simulation
	clock   *playback.Clock
	viewer  *viewer.Server
	metrics *metrics.Metrics
	index   runtimeIndex
	journal *persistlog.SeekLogger
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		exportPath = flag.String("export", "", "world export to replay (.json or .json.zst)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory (index, journal)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read model")
		autoplay   = flag.Bool("autoplay", false, "start playing at load (overrides playback.autoplay)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if strings.TrimSpace(*exportPath) == "" {
		logger.Fatalf("-export is required")
	}
	cfg := serverConfig{
		ExportPath: *exportPath,
		TuningPath: *tuningPath,
		DataDir:    *dataDir,
		DisableDB:  *disableDB,
		Autoplay:   *autoplay,
	}
	if err := run(cfg, *addr, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run owns the runtime for the life of the process. It returns only after
// the index and journal are closed.
func run(cfg serverConfig, addr string, logger *log.Logger) error {
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return rt.serve(ctx, addr, logger)
}

func (rt *replayRuntime) serve(ctx context.Context, addr string, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := rt.clock.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("clock: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           rt.routes(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func newRuntime(cfg serverConfig, logger *log.Logger) (*replayRuntime, error) {
	tune := tuning.Defaults()
	if tp := strings.TrimSpace(cfg.TuningPath); tp != "" {
		t, err := tuning.Load(tp)
		if err != nil {
			return nil, err
		}
		tune = t
	}

	ex, err := export.Read(cfg.ExportPath, export.Options{Validate: tune.Export.Validate})
	if err != nil {
		return nil, err
	}
	sim, err := playback.Load(ex, tune, logger)
	if err != nil {
		return nil, err
	}

	idx, err := openRuntimeIndex(cfg.DataDir, cfg.DisableDB, logger)
	if err != nil {
		return nil, err
	}

	rt := &replayRuntime{
		sim:     sim,
		metrics: metrics.New(),
		index:   idx,
	}
	if tune.Journal.Enabled {
		rt.journal = persistlog.NewSeekLogger(cfg.DataDir)
	}

	rec := &seekRecorder{sim: sim, metrics: rt.metrics, journal: rt.journal, index: idx, log: logger, now: time.Now}
	sim.OnSeek(rec.Record)

	rt.clock = playback.NewClock(sim, time.Duration(tune.Playback.TickMs)*time.Millisecond, tune.Playback.Speed)
	if cfg.Autoplay || tune.Playback.Autoplay {
		rt.clock.Play(0)
	}
	rt.viewer = viewer.NewServer(sim, viewer.Options{
		Title:   ex.Params.Title,
		Tuning:  tune,
		Clock:   rt.clock,
		Metrics: rt.metrics,
		Logger:  logger,
	})

	ter, hasTerrain := sim.Terrain()
	if hasTerrain {
		rt.metrics.SetLiveFaces(ter.World().LiveFaces())
	}
	if idx != nil {
		rt.metrics.GaugeFunc("index_queue_depth", "Index writes waiting for the sqlite writer.", func() float64 {
			return float64(idx.Stats().QueueDepth)
		})
		row := indexdb.ExportRow{
			Path:   cfg.ExportPath,
			Digest: sim.Digest(),
			BBox:   ex.Params.BoundingBox,
			Layers: ex.LayerNames(),
		}
		if sp := sim.Span(); !sp.IsZero() {
			row.Span = [2]string{sp.Start.String(), sp.End.String()}
		}
		if hasTerrain {
			row.VoxelOps = ter.Ops()
			row.Chunks = len(ter.World().ChunkKeys())
		}
		idx.RecordExport(row)
	}

	logger.Printf("loaded %s: layers=%v span=%s..%s", cfg.ExportPath, sim.LayerNames(), sim.Span().Start, sim.Span().End)
	return rt, nil
}

func (rt *replayRuntime) routes(logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		playing, speed := rt.clock.State()
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":      true,
			"cursor":  rt.sim.Cursor().String(),
			"playing": playing,
			"speed":   speed,
			"viewers": rt.viewer.Sessions(),
		})
	})
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/bootstrap", rt.viewer.BootstrapHandler())
	mux.HandleFunc("/v1/ws", rt.viewer.WSHandler())

	if envBool("VR_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else if logger != nil {
		logger.Printf("pprof endpoints disabled (VR_ENABLE_PPROF_HTTP=false)")
	}
	return mux
}

func (rt *replayRuntime) Close() {
	if rt.journal != nil {
		_ = rt.journal.Close()
	}
	if rt.index != nil {
		_ = rt.index.Close()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
