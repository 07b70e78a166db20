// Command server boots the Azrael orchestrator: it loads configuration,
// opens the durable state store, dials the worker pool, wires the
// client-facing façade, and runs the tick loop until interrupted
// (spec.md §1, §6).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/adapter/in/facade"
	storeadapter "github.com/azrael-sim/azrael/internal/adapter/out/store"
	workeradapter "github.com/azrael-sim/azrael/internal/adapter/out/worker"
	"github.com/azrael-sim/azrael/internal/config"
	"github.com/azrael-sim/azrael/internal/core/domain/entity"
	"github.com/azrael-sim/azrael/internal/core/domain/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	schemaDir := flag.String("schemas", "schemas", "directory of façade JSON Schema files")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[Server] config: %v", err)
	}

	store, err := storeadapter.OpenSQLiteLog(cfg.StatePath, logger)
	if err != nil {
		logger.Fatalf("[Server] state store: %v", err)
	}
	defer store.Close()

	pool, err := workeradapter.Dial(workeradapter.Config{
		Addresses:     cfg.WorkerAddresses,
		WorkerTimeout: cfg.WorkerTimeout,
		QueueDepth:    cfg.WorkerQueueDepth,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("[Server] worker pool: %v", err)
	}
	defer pool.Close()

	queue := service.NewCommandQueue(cfg.CommandQueueDepth)

	grid := service.NewForceGrid(
		mgl64.Vec3{cfg.ForceGridOrigin[0], cfg.ForceGridOrigin[1], cfg.ForceGridOrigin[2]},
		cfg.ForceGridSpacing, cfg.ForceGridDimsX, cfg.ForceGridDimsY, cfg.ForceGridDimsZ,
	)

	templates := entity.NewTemplateRegistry(defaultTemplates()...)

	validator, err := facade.NewValidator(*schemaDir)
	if err != nil {
		logger.Fatalf("[Server] façade schemas: %v", err)
	}
	fac := facade.New(queue, store, validator, logger)

	orch := service.New(store, pool, queue, grid, templates, fac, cfg.ServiceConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Printf("[Server] shutdown signal received")
		cancel()
	}()

	tickDone := make(chan error, 1)
	go func() { tickDone <- orch.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", fac.ServeHTTP)
	httpServer := &http.Server{Addr: cfg.FacadeAddr, Handler: mux}

	go func() {
		logger.Printf("[Server] façade listening on %s", cfg.FacadeAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("[Server] façade: %v", err)
		}
	}()

	if err := <-tickDone; err != nil {
		logger.Printf("[Server] orchestrator stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if ctx.Err() == nil {
		os.Exit(1)
	}
}

// defaultTemplates seeds a handful of common bodies so the façade's
// spawn command works out of the box; it is the only template source,
// as the config carries no template list.
func defaultTemplates() []entity.Template {
	return []entity.Template{
		{Name: "sphere", Body: entity.Body{
			InvMass: 1, Restitution: 0.5, Friction: 0.3,
			Orientation: mgl64.QuatIdent(), Scale: 1,
			Shape: entity.Sphere{Radius: 1},
		}},
		{Name: "box", Body: entity.Body{
			InvMass: 1, Restitution: 0.2, Friction: 0.5,
			Orientation: mgl64.QuatIdent(), Scale: 1,
			Shape: entity.Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
		}},
		{Name: "ground", Body: entity.Body{
			InvMass: 0, Restitution: 0.3, Friction: 0.8,
			Orientation: mgl64.QuatIdent(), Scale: 1,
			Shape: entity.StaticPlane{Normal: mgl64.Vec3{0, 1, 0}, Offset: 0},
		}},
	}
}
