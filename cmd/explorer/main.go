// Command explorer runs the shared-map exploration service: robots post
// their sensor readings over HTTP and are handed waypoints towards the
// most useful unexplored area.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/banshee-data/swarm.map/internal/api"
	"github.com/banshee-data/swarm.map/internal/config"
	"github.com/banshee-data/swarm.map/internal/db"
	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/mapping"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/navigation"
	"github.com/banshee-data/swarm.map/internal/pathplan"
	"github.com/banshee-data/swarm.map/internal/robot"
	"github.com/banshee-data/swarm.map/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Exploration config file (.json or .yaml)")
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen = flag.String("grpc-listen", ":8081", "gRPC health listen address (empty to disable)")
	dbPath     = flag.String("db", "swarm_map.db", "SQLite database for task and coverage history (empty to disable)")
	debugLogs  = flag.String("debug-logs", "", "File for diagnostic and trace logs (empty to disable)")
)

// setupLogging routes every package's ops stream through the process
// logger and, when path is set, the diag and trace streams to a file.
func setupLogging(path string) (io.Closer, error) {
	var diag, trace io.Writer
	var closer io.Closer = io.NopCloser(nil)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log: %w", err)
		}
		diag, trace, closer = f, f, f
	}
	grid.SetLogWriters(monitoring.LogfWriter(""), diag, trace)
	mapping.SetLogWriters(monitoring.LogfWriter(""), diag, trace)
	explore.SetLogWriters(monitoring.LogfWriter(""), diag, trace)
	navigation.SetLogWriters(monitoring.LogfWriter(""), diag, trace)
	pathplan.SetLogWriter(trace)
	return closer, nil
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("explorer %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	logCloser, err := setupLogging(*debugLogs)
	if err != nil {
		log.Fatal(err)
	}
	defer logCloser.Close()

	cfg, err := config.LoadExplorationConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("explorer stopped: %v", err)
	}
	log.Print("explorer stopped")
}

func run(ctx context.Context, cfg *config.ExplorationConfig) error {
	g, err := grid.New(cfg.GridConfig())
	if err != nil {
		return err
	}
	registry := robot.NewRegistry()
	engine := mapping.NewEngine(g, cfg.EngineConfig())

	maintCfg := mapping.MaintainerConfig{Interval: cfg.GetCleanupInterval()}
	allocCfg := cfg.AllocatorConfig()
	deps := api.Deps{Grid: g, Robots: registry, Engine: engine}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		runRec, err := database.StartRun(ctx, time.Now(), string(cfgJSON))
		if err != nil {
			return err
		}
		log.Printf("recording run %s to %s", runRec.ID, *dbPath)
		maintCfg.Recorder = database.Coverage(runRec.ID)
		tasks := database.Tasks(runRec.ID)
		allocCfg.Recorder = tasks
		deps.Tasks = tasks

		defer func() {
			counts, err := tasks.OutcomeCounts(context.Background())
			if err == nil {
				log.Printf("run %s task outcomes: %v", runRec.ID, counts)
			}
		}()
	}

	maintainer := mapping.NewMaintainer(g, maintCfg)
	allocator := explore.NewAllocator(g, cfg.PathFinder(), pathplan.LineOfSightWaypoints{}, allocCfg)
	defer allocator.Wait()
	nav := navigation.NewController(registry, allocator, navigation.NewLogDriver(os.Stdout), cfg.NavigationConfig())

	deps.Allocator = allocator
	deps.Navigation = nav
	deps.Maintainer = maintainer
	mux := api.NewServer(deps).ServeMux()
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return engine.Run(ctx) })
	eg.Go(func() error { return maintainer.Run(ctx) })
	eg.Go(func() error { return nav.Run(ctx) })
	eg.Go(func() error {
		return config.Watch(ctx, *configPath, func(c *config.ExplorationConfig) {
			allocator.SetWeights(c.Weights())
		})
	})

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	eg.Go(func() error {
		log.Printf("HTTP listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", *grpcListen, err)
		}
		grpcServer := grpc.NewServer()
		health := api.NewHealthServer(grpcServer, engine)
		eg.Go(func() error { return health.Run(ctx, time.Second) })
		eg.Go(func() error {
			log.Printf("gRPC health listening on %s", *grpcListen)
			return grpcServer.Serve(lis)
		})
		eg.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	return eg.Wait()
}
