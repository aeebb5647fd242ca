// Command sandbox runs a headless physics scene: worlds, bodies and joints
// come from a scene file, tengo scripts drive them through the script
// module, and every event the worlds post is logged. Settings and scripts
// reload on edit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/milk9111/physics2d/collision"
	"github.com/milk9111/physics2d/config"
	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
	"github.com/milk9111/physics2d/script"
)

func main() {
	configPath := flag.String("config", "", "settings file (default: embedded default.yaml)")
	scenePath := flag.String("scene", "", "scene file (default: embedded scene.yaml)")
	scriptPath := flag.String("script", "", "override the scene's scripts with this one")
	steps := flag.Int("steps", 0, "stop after this many frames, 0 runs until interrupted")
	hz := flag.Int("hz", 60, "frames per second")
	statsEvery := flag.Duration("stats", 5*time.Second, "stats logging interval")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, *configPath, *scenePath, *scriptPath, *steps, *hz, *statsEvery); err != nil {
		logger.Fatal("sandbox failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	return cfg.Build()
}

// sceneObject is the game-object side of a sandbox body. The world pulls
// its transform before stepping and writes the solved one back after.
type sceneObject struct {
	id        uint64
	transform physics.Transform
}

func (s *sceneObject) ID() uint64 { return s.id }

func (s *sceneObject) Transform() physics.Transform { return s.transform }

func (s *sceneObject) SetTransform(position cp.Vector, angle float64) {
	s.transform.Position = position
	s.transform.Angle = angle
}

// sceneWorld is one instantiated world: the collision world, its bodies by
// scene name and the script runtimes stepping it.
type sceneWorld struct {
	name    string
	world   *collision.World
	objects map[string]*collision.Object
	scripts []*scriptRuntime
}

type stats struct {
	frames atomic.Int64
	events atomic.Int64
}

func run(log *zap.Logger, configPath, scenePath, scriptPath string, steps, hz int, statsEvery time.Duration) error {
	if hz <= 0 {
		return fmt.Errorf("hz must be positive, got %d", hz)
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	scene, err := config.LoadScene(scenePath)
	if err != nil {
		return err
	}

	pctx, err := physics.NewContext(settings.Simulation(log))
	if err != nil {
		return err
	}
	cctx, err := collision.NewContext(settings.ContextDef(pctx, log))
	if err != nil {
		return err
	}

	var nextID uint64
	worlds := make([]*sceneWorld, 0, len(scene.Worlds))
	for _, spec := range scene.Worlds {
		sw, err := buildWorld(cctx, settings, spec, &nextID, scriptPath)
		if err != nil {
			return err
		}
		worlds = append(worlds, sw)
		log.Info("world ready",
			zap.String("scene", scene.Name),
			zap.String("world", spec.Name),
			zap.Int("bodies", len(spec.Bodies)),
			zap.Int("joints", len(spec.Joints)),
			zap.Int("scripts", len(sw.scripts)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watcher *config.Watcher
	if paths := watchPaths(configPath, scenePath, scriptPath); len(paths) > 0 {
		watcher, err = config.NewWatcher(paths...)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var st stats
	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		defer cancel()
		return loop(gctx, log, worlds, watcher, configPath, &st, steps, hz)
	})
	g.Go(func() error {
		reportStats(gctx, log, &st, statsEvery)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("simulation finished",
		zap.Int64("frames", st.frames.Load()),
		zap.Int64("events", st.events.Load()))
	return nil
}

// watchPaths keeps the files that actually came from disk; embedded
// defaults have nothing to watch.
func watchPaths(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func buildWorld(cctx *collision.Context, settings config.Settings, spec config.WorldSpec, nextID *uint64, scriptOverride string) (*sceneWorld, error) {
	socket := message.NewSocket(spec.Name, settings.Collision.SocketCapacity)
	world, err := cctx.NewWorld(socket)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", spec.Name, err)
	}

	sw := &sceneWorld{
		name:    spec.Name,
		world:   world,
		objects: make(map[string]*collision.Object, len(spec.Bodies)),
	}
	for _, body := range spec.Bodies {
		desc, err := body.Desc()
		if err != nil {
			return nil, err
		}
		*nextID++
		owner := &sceneObject{id: *nextID, transform: physics.Transform{
			Position: body.Position.Vector(),
			Angle:    body.Angle,
			Scale:    1,
		}}
		obj, err := world.NewObject(desc, owner)
		if err != nil {
			return nil, fmt.Errorf("body %s: %w", body.Name, err)
		}
		obj.AddToUpdate()
		sw.objects[body.Name] = obj
	}

	for _, joint := range spec.Joints {
		a, ok := sw.objects[joint.BodyA]
		if !ok {
			return nil, fmt.Errorf("joint %s: unknown body %q", joint.Name, joint.BodyA)
		}
		b, ok := sw.objects[joint.BodyB]
		if !ok {
			return nil, fmt.Errorf("joint %s: unknown body %q", joint.Name, joint.BodyB)
		}
		params, err := joint.Params()
		if err != nil {
			return nil, err
		}
		if err := a.CreateJoint(message.Hash(joint.Name), joint.AnchorA.Vector(), b, joint.AnchorB.Vector(), params); err != nil {
			return nil, fmt.Errorf("joint %s: %w", joint.Name, err)
		}
	}

	mod := script.Module(world, world.ObjectByID)
	objectIDs := make(map[string]tengo.Object, len(sw.objects))
	for name, obj := range sw.objects {
		objectIDs[name] = &tengo.Int{Value: int64(obj.ID())}
	}

	scripts := spec.Scripts
	if scriptOverride != "" {
		scripts = []string{scriptOverride}
	}
	for _, path := range scripts {
		rt, err := newScriptRuntime(path, mod, objectIDs)
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", path, err)
		}
		sw.scripts = append(sw.scripts, rt)
	}
	return sw, nil
}

func loop(ctx context.Context, log *zap.Logger, worlds []*sceneWorld, watcher *config.Watcher, configPath string, st *stats, steps, hz int) error {
	for _, sw := range worlds {
		for _, rt := range sw.scripts {
			if err := rt.init(); err != nil {
				return fmt.Errorf("script %s: %w", rt.path, err)
			}
		}
	}

	var watchEvents <-chan string
	var watchErrors <-chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	dt := 1.0 / float64(hz)
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			reload(log, worlds, configPath, name)
			continue
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			log.Warn("watcher error", zap.Error(err))
			continue
		case <-ticker.C:
		}

		frame++
		for _, sw := range worlds {
			for _, rt := range sw.scripts {
				if err := rt.step(dt, frame); err != nil {
					log.Warn("script error", zap.String("script", rt.path), zap.Error(err))
				}
			}
		}
		for _, sw := range worlds {
			sw.world.Update(dt)
			sw.world.DeliverMessages(func(e message.Envelope) {
				st.events.Add(1)
				logEvent(log, sw.name, e)
			})
			sw.world.PostUpdate()
		}
		st.frames.Add(1)

		if steps > 0 && frame >= steps {
			return nil
		}
	}
}

// reload applies one changed file between frames: settings re-apply to the
// live worlds, scripts recompile in place. A scene edit needs a restart.
func reload(log *zap.Logger, worlds []*sceneWorld, configPath, name string) {
	base := filepath.Base(name)

	if strings.EqualFold(filepath.Ext(name), ".tengo") {
		for _, sw := range worlds {
			for _, rt := range sw.scripts {
				if filepath.Base(rt.path) != base {
					continue
				}
				if err := rt.reload(); err != nil {
					log.Warn("script reload failed", zap.String("script", rt.path), zap.Error(err))
					continue
				}
				log.Info("script reloaded", zap.String("script", rt.path), zap.String("world", sw.name))
			}
		}
		return
	}

	if configPath != "" && base == filepath.Base(configPath) {
		settings, err := config.Load(configPath)
		if err != nil {
			log.Warn("settings reload failed", zap.Error(err))
			return
		}
		for _, sw := range worlds {
			settings.Apply(sw.world)
		}
		log.Info("settings reloaded", zap.Float64("gravity_y", settings.Physics.Gravity.Y))
		return
	}

	log.Info("scene changed, restart to apply", zap.String("file", name))
}

func logEvent(log *zap.Logger, world string, e message.Envelope) {
	switch p := e.Payload.(type) {
	case collision.CollisionEvent:
		log.Debug("collision",
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path),
			zap.Uint64("other", p.OtherID))
	case collision.ContactPointEvent:
		log.Debug("contact",
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path),
			zap.Uint64("other", p.OtherID),
			zap.Float64("impulse", p.AppliedImpulse))
	case collision.TriggerEvent:
		msg := "trigger exit"
		if p.Enter {
			msg = "trigger enter"
		}
		log.Info(msg,
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path),
			zap.Uint64("other", p.OtherID))
	case collision.RayCastResponse:
		log.Info("ray hit",
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path),
			zap.Uint32("request", p.RequestID),
			zap.Uint64("other", p.OtherID),
			zap.Float64("fraction", p.Fraction))
	case collision.RayCastMissed:
		log.Info("ray missed",
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path),
			zap.Uint32("request", p.RequestID))
	default:
		log.Debug("message",
			zap.String("world", world),
			zap.Uint64("object", e.Receiver.Path))
	}
}

func reportStats(ctx context.Context, log *zap.Logger, st *stats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFrames, lastEvents int64
	for {
		select {
		case <-ticker.C:
			frames := st.frames.Load()
			events := st.events.Load()
			log.Info("stats",
				zap.Int64("frames", frames),
				zap.Float64("fps", float64(frames-lastFrames)/interval.Seconds()),
				zap.Int64("events", events-lastEvents))
			lastFrames, lastEvents = frames, events
		case <-ctx.Done():
			return
		}
	}
}
