// Package meetmesh provides a high-level façade that assembles the engine and
// its services (model registry, transcript archive, logging) from a
// config.Config. Most applications interact with this package by:
//  1. Loading a configuration with config.Load
//  2. Creating a MeetMesh via New (optionally overriding models or archive)
//  3. Serving HTTP with Serve, or driving meetings directly through Engine
//
// All defaults are safe for local development: without configured models a
// single mock model named "mock" is registered, and transcripts stay in
// memory.
package meetmesh

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/meetmesh/archive"
	redisarchive "github.com/hupe1980/meetmesh/archive/redis"
	"github.com/hupe1980/meetmesh/config"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/engine"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/model"
	"github.com/hupe1980/meetmesh/model/factory"
	"github.com/hupe1980/meetmesh/server"
	"github.com/hupe1980/meetmesh/summary"
)

// Version is the release of meetmesh.
const Version = "0.1.0"

// Options configures the MeetMesh instance.
type Options struct {
	// Config is the loaded configuration. Defaults to config.Load("") with
	// no file and no .env.
	Config *config.Config

	// Models overrides the registry built from Config.Models.
	Models model.Resolver

	// Archive overrides the backend selected by Config.Archive.
	Archive core.Archive

	// Callbacks are registered on the engine.
	Callbacks []engine.Callback

	// Logger defaults to a logger built from Config.Log.
	Logger logging.Logger
}

// MeetMesh is the high-level façade aggregating the engine and services.
type MeetMesh struct {
	cfg    *config.Config
	engine *engine.Engine
	logger logging.Logger

	closeOnce sync.Once
	closers   []func() error
}

// New assembles a MeetMesh. It connects to redis when the redis archive is
// configured.
func New(ctx context.Context, optFns ...func(o *Options)) (*MeetMesh, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config == nil {
		cfg, err := config.Load("", func(o *config.LoadOptions) {
			o.EnvFile = ""
			o.SearchPaths = []string{}
		})
		if err != nil {
			return nil, err
		}
		opts.Config = cfg
	}
	cfg := opts.Config

	if opts.Logger == nil {
		opts.Logger = logging.New(cfg.LoggingConfig())
	}

	mm := &MeetMesh{cfg: cfg, logger: opts.Logger}

	if opts.Models == nil {
		reg, err := buildModels(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts.Models = reg
	}

	if opts.Archive == nil {
		a, err := mm.buildArchive(ctx)
		if err != nil {
			return nil, err
		}
		opts.Archive = a
	}

	callbacks := engine.NewCallbackManager()
	for _, cb := range opts.Callbacks {
		callbacks.RegisterCallback(cb)
	}

	mm.engine = engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			EventBufferSize:  cfg.Meeting.EventBufferSize,
			DefaultMaxRounds: cfg.Meeting.DefaultMaxRounds,
			HumanWaitTimeout: cfg.Meeting.HumanWaitTimeout,
			Retention:        cfg.Meeting.Retention,
			SummaryModel:     cfg.Summary.Model,
		}
		o.Models = opts.Models
		o.Archive = opts.Archive
		o.Summarizer = summary.NewService(opts.Models, func(so *summary.Options) {
			if cfg.Summary.Timeout > 0 {
				so.Timeout = cfg.Summary.Timeout
			}
			so.Logger = opts.Logger
		})
		o.Callbacks = callbacks
		o.AgentOptions = append(o.AgentOptions, cfg.AgentOptions())
		o.Logger = opts.Logger
	})

	return mm, nil
}

func buildModels(ctx context.Context, cfg *config.Config) (model.Resolver, error) {
	if len(cfg.Models) == 0 {
		reg := model.NewRegistry()
		reg.Register("mock", model.NewMockModel("mock"))
		return reg, nil
	}
	return factory.Build(ctx, cfg.Models, cfg.DefaultModel)
}

func (mm *MeetMesh) buildArchive(ctx context.Context) (core.Archive, error) {
	switch mm.cfg.Archive.Backend {
	case config.ArchiveRedis:
		store, err := redisarchive.NewFromURL(ctx, mm.cfg.Archive.RedisURL, func(o *redisarchive.Options) {
			if mm.cfg.Archive.KeyPrefix != "" {
				o.KeyPrefix = mm.cfg.Archive.KeyPrefix
			}
			o.TTL = mm.cfg.Archive.TTL
		})
		if err != nil {
			return nil, err
		}
		mm.closers = append(mm.closers, store.Close)
		mm.logger.Info("Using redis transcript archive", "prefix", mm.cfg.Archive.KeyPrefix)
		return store, nil
	default:
		return archive.NewInMemoryStore(), nil
	}
}

// Engine returns the underlying engine.
func (mm *MeetMesh) Engine() *engine.Engine { return mm.engine }

// Config returns the configuration the instance was built from.
func (mm *MeetMesh) Config() *config.Config { return mm.cfg }

// Logger returns the root logger.
func (mm *MeetMesh) Logger() logging.Logger { return mm.logger }

// NewServer creates the HTTP transport over the engine.
func (mm *MeetMesh) NewServer(optFns ...func(o *server.Options)) *server.Server {
	fns := append([]func(o *server.Options){func(o *server.Options) {
		if mm.cfg.Server.ShutdownTimeout > 0 {
			o.ShutdownTimeout = mm.cfg.Server.ShutdownTimeout
		}
		o.Logger = mm.logger
	}}, optFns...)
	return server.New(mm.engine, fns...)
}

// Serve runs the HTTP server on the configured address together with the
// retention janitor until ctx is done.
func (mm *MeetMesh) Serve(ctx context.Context, optFns ...func(o *server.Options)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mm.engine.RunJanitor(ctx, mm.cfg.Meeting.SweepInterval)
	}()

	err := mm.NewServer(optFns...).Run(ctx, mm.cfg.Server.Addr)
	cancel()
	wg.Wait()
	return err
}

// Close releases external connections.
func (mm *MeetMesh) Close() error {
	var errs []error
	mm.closeOnce.Do(func() {
		for _, c := range mm.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
