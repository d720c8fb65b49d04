// Command agent is the per-camera video-analytics ingest process: it
// connects one camera to its configured pipeline, running until a
// termination signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/argus-io/ingest-agent/internal/artifact"
	"github.com/argus-io/ingest-agent/internal/config"
	"github.com/argus-io/ingest-agent/internal/health"
	"github.com/argus-io/ingest-agent/internal/logger"
	"github.com/argus-io/ingest-agent/internal/metadata"
	"github.com/argus-io/ingest-agent/internal/metrics"
	"github.com/argus-io/ingest-agent/internal/pipeline"
	"github.com/argus-io/ingest-agent/internal/predictor"
	"github.com/argus-io/ingest-agent/internal/shutdown"
	"github.com/argus-io/ingest-agent/internal/source"
	"github.com/argus-io/ingest-agent/internal/stage"
	"github.com/argus-io/ingest-agent/internal/store"
	"github.com/argus-io/ingest-agent/internal/zone"
)

func main() {
	cli, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.ShowVersion {
		fmt.Println(config.Version())
		return
	}

	logger.Init()
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logLevel := env.LogLevel
	if cli.LogLevel != "" {
		logLevel = cli.LogLevel
	}
	if err := logger.SetLevel(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "warning: invalid log level, using default")
	}
	log := logger.Logger().With("component", "agent", "camera_id", env.CameraID)

	if err := run(env, log); err != nil {
		log.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires every component together and blocks until a termination signal
// arrives, then drains everything within its shutdown budget.
func run(env *config.Env, log *slog.Logger) error {
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	docStore, err := store.NewMongoStore(startupCtx, env.MongoURI, "argus")
	if err != nil {
		return err
	}

	camera, err := docStore.GetCamera(startupCtx, env.CameraID)
	if err != nil {
		return err
	}
	service, err := docStore.GetService(startupCtx, env.ServiceID)
	if err != nil {
		return err
	}

	descriptor, err := config.LoadPipelineDescriptor(service.PipelinePath)
	if err != nil {
		return err
	}
	tunables, err := config.LoadTunables(env.TunablesPath)
	if err != nil {
		return err
	}

	coord := shutdown.New(log)

	metricsReg := metrics.New(camera.DeviceName)
	metricsServer := &http.Server{Addr: ":9090", Handler: metricsReg.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()
	coord.Register("metrics", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return metricsServer.Shutdown(ctx)
	})

	backends := []artifact.Backend{artifact.NewFilesystemBackend()}
	if env.AzureEnabled() {
		azBackend, err := artifact.NewAzureBackend(env.AzureAccount, env.AzureContainer)
		if err != nil {
			log.Warn("azure backend disabled", "error", err)
		} else {
			backends = append(backends, azBackend)
		}
	}

	artifactSink := artifact.New(artifact.Config{
		BaseDir:        "/var/lib/ingest-agent/artifacts",
		Device:         camera.DeviceName,
		EncodePoolSize: tunables.EncodePoolSize,
		IOPoolSize:     tunables.IOPoolSize,
		Backends:       backends,
		Logger:         log.With("sink", "artifact"),
		Metrics:        metricsReg,
	})
	coord.Register("artifact_sink", artifactSink.Close)

	metadataSink := metadata.New(metadata.Config{
		Store:         docStore,
		DeviceName:    camera.DeviceName,
		DeviceID:      camera.DeviceID,
		BatchSize:     tunables.BatchSize,
		FlushInterval: tunables.FlushInterval,
		Logger:        log.With("sink", "metadata"),
		Metrics:       metricsReg,
	})
	coord.Register("metadata_sink", metadataSink.Close)
	coord.Register("document_store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return docStore.Close(ctx)
	})

	zoneManager := zone.NewPolygonManager(camera.Zones)

	frameSource := source.New(source.Config{
		Address:           camera.CameraAddress,
		Rotation:          camera.Rotation,
		DeviceTag:         camera.DeviceName,
		ReconnectInterval: tunables.ReconnectInterval,
		MaxReadFailures:   tunables.MaxReadFailures,
		Logger:            log.With("component", "source"),
		Metrics:           metricsReg,
	})
	if err := frameSource.Connect(startupCtx); err != nil {
		return err
	}
	runCtx, cancelRun := context.WithCancel(context.Background())
	frameSource.StartReader(runCtx)
	coord.Register("frame_source", frameSource.Close)

	healthMonitor := health.NewMonitor(frameSource, tunables.HealthInterval, health.Thresholds{
		EntropyMin:    tunables.EntropyThreshold,
		WhiteRatioMax: tunables.WhiteRatioThreshold,
		BlackMeanMax:  tunables.BlackMeanThreshold,
		BlurVarMin:    tunables.BlurVarThreshold,
	}, log.With("component", "health"))
	go healthMonitor.Run(runCtx)

	stagePredictor := predictor.NewStubPredictor(nil)
	stageDeps := stage.Deps{
		DeviceName:   camera.DeviceName,
		DeviceID:     camera.DeviceID,
		Predictor:    stagePredictor,
		ZoneManager:  zoneManager,
		ArtifactSink: artifactSink,
		MetadataSink: metadataSink,
		Metrics:      metricsReg,
		Logger:       log.With("component", "pipeline"),
	}

	runtime, err := pipeline.Build(descriptor, stage.Default, stageDeps, log)
	if err != nil {
		cancelRun()
		return err
	}

	var runtimeBox atomic.Pointer[pipeline.Runtime]
	runtimeBox.Store(runtime)
	coord.Register("pipeline", func() error {
		runtimeBox.Load().Close(5 * time.Second)
		return nil
	})

	if err := config.WatchPipelineDescriptor(runCtx, service.PipelinePath, log.With("component", "pipeline-watch"), func(desc *config.PipelineDescriptor) {
		rebuilt, err := pipeline.Build(desc, stage.Default, stageDeps, log)
		if err != nil {
			log.Error("pipeline reload rejected, keeping previous pipeline", "error", err)
			return
		}
		old := runtimeBox.Swap(rebuilt)
		old.Close(5 * time.Second)
		log.Info("pipeline reloaded", "pipeline", service.PipelinePath)
	}); err != nil {
		log.Warn("pipeline descriptor hot-reload disabled", "error", err)
	}

	go processLoop(runCtx, frameSource, &runtimeBox, log)

	log.Info("agent started", "device", camera.DeviceName, "pipeline", service.PipelinePath)
	coord.WaitForSignal(context.Background())
	log.Info("shutdown signal received")
	cancelRun()
	coord.Shutdown(10 * time.Second)

	return nil
}

// processLoop reads the newest available frame and runs it through the
// pipeline, skipping a tick only when the source has not produced a fresh
// frame since the last one processed. The Health Monitor runs independently
// and never gates ingestion: it is a passive observer, logged and exported
// but never consulted here.
func processLoop(ctx context.Context, src *source.Source, runtimeBox *atomic.Pointer[pipeline.Runtime], log *slog.Logger) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, ok := src.Read()
			if !ok || f.SeqNum == lastSeq {
				continue
			}
			lastSeq = f.SeqNum

			outcome := runtimeBox.Load().RunFrame(ctx, f)
			if outcome.Aborted() {
				log.Debug("frame aborted by pipeline", "reason", outcome.Reason(), "seq_num", f.SeqNum)
			}
		}
	}
}
