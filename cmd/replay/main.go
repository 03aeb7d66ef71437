// Command replay runs a JSON-lines detections fixture through the tracking
// pipeline at full speed and prints the session summary. With -db it also
// saves the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/roadmetrics/trafficwatch/internal/config"
	"github.com/roadmetrics/trafficwatch/internal/db"
	"github.com/roadmetrics/trafficwatch/internal/detect"
	"github.com/roadmetrics/trafficwatch/internal/pipeline"
	"github.com/roadmetrics/trafficwatch/internal/track"
)

var (
	configPath = flag.String("config", "", "Path to a tuning config JSON file")
	dbFile     = flag.String("db", "", "Save the session to this database (optional)")
	csvFile    = flag.String("csv", "", "Append the session to this CSV ledger (optional)")
	source     = flag.String("source", "Video File", "Source descriptor recorded with the session")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: replay [flags] <fixture.jsonl>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	fixture, err := detect.OpenFixture(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to open fixture: %v", err)
	}
	defer fixture.Close()

	opts := []pipeline.Option{pipeline.WithMinConfidence(cfg.GetConfidenceThreshold())}
	if *dbFile != "" {
		store, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	}
	if *csvFile != "" {
		opts = append(opts, pipeline.WithCSV(*csvFile))
	}

	tracker := track.New(track.ConfigFromTuning(cfg))
	pipe := pipeline.New(tracker, *source, opts...)

	stream := detect.SkipFrames(fixture, cfg.GetSkipFrames())
	if err := pipe.Run(context.Background(), stream); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	snap := pipe.Snapshot()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "frames\t%d\n", pipe.Frames())
	for _, c := range track.Classes {
		fmt.Fprintf(w, "%s\t%d\n", c, snap.Counts[c])
	}
	fmt.Fprintf(w, "total\t%d\n", snap.Total)
	w.Flush()

	if *dbFile != "" || *csvFile != "" {
		if _, err := pipe.SaveSession(context.Background()); err != nil {
			if err == pipeline.ErrEmptySession {
				log.Print("nothing counted; session not saved")
			} else {
				log.Fatalf("failed to save session: %v", err)
			}
		}
	}
}
