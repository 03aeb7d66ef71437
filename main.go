package main

import (
	"context"
	"embed"
	"flag"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/roadmetrics/trafficwatch/internal/api"
	"github.com/roadmetrics/trafficwatch/internal/config"
	"github.com/roadmetrics/trafficwatch/internal/db"
	"github.com/roadmetrics/trafficwatch/internal/detect"
	"github.com/roadmetrics/trafficwatch/internal/pipeline"
	"github.com/roadmetrics/trafficwatch/internal/track"
	"github.com/roadmetrics/trafficwatch/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode     = flag.Bool("dev", false, "Run in dev mode (serve static files from disk)")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "traffic_sessions.db", "Path to the sessions database")
	csvFile     = flag.String("csv", "traffic_data.csv", "Path to the session CSV ledger")
	fixturePath = flag.String("fixture", "", "Replay detections from a JSON-lines fixture instead of the ingest endpoint")
	configPath  = flag.String("config", "", "Path to a tuning config JSON file")
	source      = flag.String("source", "Live Camera", "Source descriptor recorded with saved sessions")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("trafficwatch %s (%s)", version.Version, version.GitSHA)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	tracker := track.New(track.ConfigFromTuning(cfg))
	pipe := pipeline.New(tracker, *source,
		pipeline.WithStore(store),
		pipeline.WithCSV(*csvFile),
		pipeline.WithMinConfidence(cfg.GetConfidenceThreshold()),
	)

	// The frame stream: a fixture replay in dev/offline use, or the HTTP
	// ingest queue fed by an external detection oracle. Frame skipping is
	// applied here so the tracker only ever sees processed frames.
	var stream detect.Stream
	ingest := detect.NewChanStream(64)
	if *fixturePath != "" {
		fixture, err := detect.OpenFixture(*fixturePath)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		defer fixture.Close()
		stream = fixture
	} else {
		stream = ingest
	}
	stream = detect.SkipFrames(stream, cfg.GetSkipFrames())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the pipeline routine: the single writer driving the tracker
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx, stream); err != nil && err != context.Canceled {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		store.AttachAdminRoutes(mux)

		apiMux := api.NewServer(pipe, store, cfg, ingest).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "ok")
		})

		// read static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
