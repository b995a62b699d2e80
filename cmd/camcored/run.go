// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/camcore/internal/api"
	"github.com/ManuGH/camcore/internal/bus"
	"github.com/ManuGH/camcore/internal/capture"
	"github.com/ManuGH/camcore/internal/config"
	"github.com/ManuGH/camcore/internal/framecache"
	"github.com/ManuGH/camcore/internal/health"
	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/recording"
	"github.com/ManuGH/camcore/internal/still"
	"github.com/ManuGH/camcore/internal/telemetry"
	"github.com/ManuGH/camcore/internal/testsource"
	"github.com/ManuGH/camcore/internal/throttle"
	"github.com/ManuGH/camcore/internal/writer"
)

// frameStaleAfter marks the capture path not ready when video stops.
const (
	frameStaleAfter   = 2 * time.Second
	frameStartTimeout = 5 * time.Second
)

func stillSettings(c config.StillConfig) still.Settings {
	return still.Settings{
		FrameRetries:   c.FrameRetries,
		RetryDelay:     c.RetryDelay,
		CaptureTimeout: c.CaptureTimeout,
		JPEGQuality:    c.JPEGQuality,
		Workers:        c.Workers,
	}
}

func sourceConfig(c config.SourceConfig) testsource.Config {
	sc := testsource.DefaultConfig()
	sc.Width = c.Width
	sc.Height = c.Height
	sc.FPS = c.FPS
	sc.SampleRate = c.SampleRate
	sc.AudioBuffer = c.AudioBuffer
	sc.StillWidth = c.StillWidth
	sc.StillHeight = c.StillHeight
	return sc
}

// run wires the capture path and serves until ctx ends. ready, when set,
// receives the bound HTTP address.
func run(ctx context.Context, holder *config.ConfigHolder, ready func(addr string)) error {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}

	src, err := testsource.New(sourceConfig(cfg.Source))
	if err != nil {
		return err
	}

	events := bus.NewMemoryBusWithBuffer(cfg.Bus.Buffer)
	defer events.Close()

	th := throttle.New(cfg.Stream.MaxPendingFrames)
	ctrl := capture.NewController(framecache.New(), th, events, src)
	stills := still.NewService(ctrl.Frames(), src, stillSettings(cfg.Still))
	wd := capture.NewWatchdog(ctrl.Frames(), ctrl.ReportError, frameStartTimeout, frameStaleAfter)

	recDir := cfg.Recording.Dir
	depth := cfg.Recording.QueueDepth

	checks := health.NewManager(cfg.Version)
	checks.RegisterChecker(health.FrameFreshness(ctrl.Frames(), frameStaleAfter))
	checks.RegisterChecker(health.Recording(ctrl))
	checks.RegisterChecker(health.WritableDir(recDir))

	srv := api.NewServer(api.Config{StillRatePerMinute: cfg.HTTP.StillRatePerMinute}, api.Deps{
		Camera: ctrl,
		Stills: stills,
		Writers: func(id string) (recording.Writer, error) {
			return writer.NewJournal(filepath.Join(recDir, id+writer.Extension), depth)
		},
		Events:   events,
		Throttle: th,
		Frames:   ctrl.Frames(),
		Health:   checks,
	})

	ln, err := net.Listen("tcp", cfg.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Listen, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	reloads := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloads)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str(log.FieldEvent, "http.listening").
			Str("addr", ln.Addr().String()).
			Msg("operator API listening")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	g.Go(func() error { return src.Run(gctx, ctrl) })
	g.Go(func() error { return wd.Run(gctx) })
	g.Go(func() error { return holder.Watch(gctx) })
	g.Go(func() error { return holder.WatchSignals(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case next := <-reloads:
				applyReload(next, stills)
			}
		}
	})

	ctrl.ReportInitialization(bus.InitializedEvent{
		PreviewWidth:  float64(cfg.Source.Width),
		PreviewHeight: float64(cfg.Source.Height),
		ExposureMode:  "auto",
		FocusMode:     "auto",
	})
	if ready != nil {
		ready(ln.Addr().String())
	}

	err = g.Wait()

	stills.Wait()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if sess, stopErr := ctrl.StopRecording(sctx); stopErr != nil && !errors.Is(stopErr, capture.ErrNoRecording) {
		logger.Warn().Err(stopErr).Msg("stop recording on shutdown")
	} else if sess != nil {
		logger.Info().Str(log.FieldSessionID, sess.ID()).Msg("recording finished on shutdown")
	}
	return err
}

// applyReload pushes live-applicable settings into running components.
func applyReload(cfg config.AppConfig, stills *still.Service) {
	stills.Apply(stillSettings(cfg.Still))
	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	l := log.WithComponent("daemon")
	l.Info().
		Str(log.FieldEvent, "config.applied").
		Int("jpeg_quality", cfg.Still.JPEGQuality).
		Int("frame_retries", cfg.Still.FrameRetries).
		Msg("live settings applied")
}
