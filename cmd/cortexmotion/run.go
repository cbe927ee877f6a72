package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/character"
	"github.com/normanking/cortexmotion/internal/config"
	"github.com/normanking/cortexmotion/internal/metrics"
	"github.com/normanking/cortexmotion/internal/pose"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
	"github.com/normanking/cortexmotion/internal/store"
	"github.com/normanking/cortexmotion/internal/stream"
)

const shutdownTimeout = 5 * time.Second

func loadSkeleton(cfg config.SkeletonConfig) (*skeleton.Graph, error) {
	if cfg.GLTF == "" {
		conv := skeleton.ConventionStandard
		if cfg.Convention == skeleton.ConventionLocalized.String() {
			conv = skeleton.ConventionLocalized
		}
		return skeleton.NewHumanoid(conv), nil
	}
	doc, err := gltf.Open(cfg.GLTF)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", cfg.GLTF, err)
	}
	return skeleton.FromGLTF(doc)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	graph, err := loadSkeleton(cfg.Skeleton)
	if err != nil {
		return err
	}
	rig := skeleton.NewRig(graph)

	events := bus.New()
	defer events.Close()

	poses := pose.NewRegistry(log)
	if dir := cfg.Poses.Dir; dir != "" {
		if err := poses.LoadDir(dir); err != nil {
			return err
		}
		if cfg.Poses.Watch {
			if err := poses.Watch(ctx, dir); err != nil {
				log.Warn().Err(err).Msg("Pose hot reload disabled")
			}
		}
	}

	opts := []character.Option{
		character.WithSink(graph),
		character.WithBus(events),
		character.WithPoses(poses),
		character.WithLogger(log),
	}
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, character.WithPersister(db))
	}

	rt := character.New(rig, cfg.Character, opts...)
	defer rt.Close()
	if n, err := rt.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("Learned motions not loaded")
	} else if n > 0 {
		log.Info().Int("motions", n).Msg("Learned motions loaded")
	}

	srv := stream.New(rt, events, log)
	defer srv.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	servers := []*http.Server{{Addr: cfg.Stream.Addr, Handler: mux}}
	if cfg.Metrics.Addr == "" || cfg.Metrics.Addr == cfg.Stream.Addr {
		mux.Handle("/metrics", metrics.Handler())
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			log.Info().Str("addr", s.Addr).Msg("HTTP server listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", s.Addr, err)
			}
		}(s)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, s := range servers {
			s.Shutdown(shutdownCtx)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	failed := make(chan error, 1)
	go func() {
		select {
		case err := <-errCh:
			log.Error().Err(err).Msg("HTTP server failed")
			failed <- err
			cancel()
		case <-ctx.Done():
		}
	}()

	driver := scheduler.NewDriver(cfg.Tick.Rate, log)
	driver.SetMaxStep(cfg.Tick.MaxStep)

	var ticks int
	err = driver.Run(ctx, func(dt float64) {
		rt.Update(dt)
		ticks++
		if cfg.Stream.FrameEvery > 0 && ticks%cfg.Stream.FrameEvery == 0 {
			srv.BroadcastSnapshot()
		}
	})
	if !errors.Is(err, context.Canceled) {
		return err
	}
	select {
	case err := <-failed:
		return err
	default:
		return nil
	}
}
