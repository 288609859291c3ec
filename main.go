package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polarisvision/camlink/internal/api"
	"github.com/polarisvision/camlink/internal/camera"
	"github.com/polarisvision/camlink/internal/config"
	"github.com/polarisvision/camlink/internal/db"
	"github.com/polarisvision/camlink/internal/fsutil"
	"github.com/polarisvision/camlink/internal/timeutil"
	"github.com/polarisvision/camlink/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to TOML config file")
	serverIP      = flag.String("server", "", "Camera server IP")
	serverPort    = flag.Int("port", 0, "Camera server port")
	outputDir     = flag.String("output", "", "Directory for saved frames")
	enableSave    = flag.Bool("save", false, "Save received frames to disk")
	convert       = flag.Bool("convert", true, "Also write unpacked 16-bit frames when saving")
	saveInterval  = flag.Int("save-interval", 0, "Save every Nth frame")
	listen        = flag.String("listen", "", "HTTP listen address")
	dbPath        = flag.String("db", "", "Path to sqlite database")
	migrationsDir = flag.String("migrations", "", "Apply SQL migrations from this directory at startup")
	falseColor    = flag.Bool("falsecolor", false, "Render previews with the false colour map")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

const sampleInterval = 10 * time.Second

// loadConfig merges defaults, the optional TOML file, and any flags the
// user set on the command line, in that order of precedence.
func loadConfig() (config.ClientConfig, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerIP = *serverIP
		case "port":
			cfg.Port = *serverPort
		case "output":
			cfg.OutputDir = *outputDir
		case "save":
			cfg.EnableSave = *enableSave
		case "convert":
			cfg.EnableConversion = *convert
		case "save-interval":
			cfg.SaveInterval = *saveInterval
		case "listen":
			cfg.ListenAddr = *listen
		case "db":
			cfg.DBPath = *dbPath
		case "falsecolor":
			cfg.FalseColor = *falseColor
		}
	})

	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("camlink %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	store, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	if *migrationsDir != "" {
		if err := store.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	var saver *camera.FrameSaver
	if cfg.EnableSave {
		saver, err = camera.NewFrameSaver(fsutil.OSFileSystem{}, cfg.OutputDir, cfg.EnableConversion, store)
		if err != nil {
			log.Fatalf("failed to prepare output directory: %v", err)
		}
	}

	clock := timeutil.RealClock{}
	session, err := camera.NewSession(camera.SessionConfig{
		Address:       cfg.ServerAddr(),
		ReadTimeout:   cfg.ReadTimeout(),
		MaxFrameBytes: cfg.MaxFrameBytes(),
		PoolSize:      cfg.PoolSize,
		SaveInterval:  cfg.SaveInterval,
		Saver:         saver,
		LogEvery:      100,
		Clock:         clock,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	if err := store.StartSession(session.ID(), cfg.ServerAddr()); err != nil {
		log.Fatalf("failed to record session: %v", err)
	}

	apiServer := api.NewServer(session, store, cfg.FalseColor)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// drain decoded frames and keep the newest one available for previews
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range session.Frames() {
			apiServer.SetLatest(frame)
			frame.Release()
		}
		log.Print("frame consumer terminated")
	}()

	// periodically persist throughput samples for the charts
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := clock.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if err := store.RecordSample(session.ID(), session.Stats()); err != nil {
					log.Printf("failed to record sample: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: api.LoggingMiddleware(apiServer.ServeMux()),
		}

		go func() {
			log.Printf("HTTP API listening on %s", cfg.ListenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("connecting to camera server at %s", cfg.ServerAddr())
	runErr := session.Run(ctx)
	stop()
	wg.Wait()

	session.StatsTracker().LogFinal()
	if err := store.FinishSession(session.ID(), session.Stats()); err != nil {
		log.Printf("failed to finalise session: %v", err)
	}

	if runErr != nil {
		log.Printf("session ended with error: %v", runErr)
		os.Exit(1)
	}
	log.Print("session completed cleanly")
}
