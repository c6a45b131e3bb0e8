package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/passbi/passbi_chart/internal/chart"
	"github.com/passbi/passbi_chart/internal/config"
	"github.com/passbi/passbi_chart/internal/dataset"
	"github.com/passbi/passbi_chart/internal/db"
	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/logging"
	"github.com/passbi/passbi_chart/internal/pipeline"
	"go.uber.org/zap"
)

func main() {
	sourceKind := flag.String("source", "gtfs", "Feed source: gtfs, sqlite or postgres")
	gtfsPath := flag.String("gtfs", "", "GTFS ZIP file or directory for -source=gtfs")
	sqlitePath := flag.String("sqlite", "gtfs-data.db", "SQLite database for -source=sqlite")
	profilePath := flag.String("profile", "", "Chart profile YAML (optional)")
	routes := flag.String("routes", "", "Comma separated route labels (default: profile default routes)")
	from := flag.Float64("from", -1, "Window start in hours (default: profile)")
	to := flag.Float64("to", -1, "Window end in hours (default: profile)")
	stations := flag.Bool("stations", false, "Include station markers")
	tripsOnly := flag.Bool("trips", false, "Dump processed trips instead of the scene")
	out := flag.String("o", "", "Output file (default: stdout)")
	flag.Parse()

	logger, err := logging.New("warn", true)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	profile, err := config.LoadProfile(*profilePath)
	if err != nil {
		log.Fatalf("profile error: %v", err)
	}
	labels, err := profile.LabelMapper()
	if err != nil {
		log.Fatalf("profile error: %v", err)
	}

	sel := pipeline.Selection{
		Routes:          profile.DefaultRoutes,
		StartHour:       profile.Window.From,
		EndHour:         profile.Window.To,
		StationsVisible: *stations,
	}
	if *routes != "" {
		sel.Routes = strings.Split(*routes, ",")
	}
	if *from >= 0 {
		sel.StartHour = *from
	}
	if *to >= 0 {
		sel.EndHour = *to
	}

	ctx := context.Background()
	source, err := openSource(ctx, *sourceKind, *gtfsPath, *sqlitePath, logger)
	if err != nil {
		log.Fatalf("source error: %v", err)
	}

	feed, err := source.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load feed: %v", err)
	}

	result, err := pipeline.Run(feed, sel, pipeline.Options{
		Labels:        labels,
		ReferenceDate: time.Now(),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("failed to create output: %v", err)
		}
		defer f.Close()
		w = f
	}

	var payload interface{} = result
	if !*tripsOnly {
		payload = chart.Build(result.Trips, profile.ChartLayout(), sel.StationsVisible)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}

	fmt.Fprintf(os.Stderr, "%d trips, %d stop times (%d malformed, %d without stop)\n",
		len(result.Trips), result.Report.StopTimes, result.Report.MalformedTimes, result.Report.MissingStops)
}

func openSource(ctx context.Context, kind, gtfsPath, sqlitePath string, logger *zap.Logger) (dataset.Source, error) {
	switch kind {
	case config.SourceGTFS:
		if gtfsPath == "" {
			return nil, fmt.Errorf("-gtfs is required for -source=gtfs")
		}
		return gtfs.NewFileSource(gtfsPath, logger), nil
	case config.SourceSQLite:
		return db.OpenSQLite(ctx, sqlitePath, logger)
	case config.SourcePostgres:
		pool, err := db.Open(ctx, db.LoadConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return db.NewPostgresStore(pool, logger), nil
	}
	return nil, fmt.Errorf("unknown source %q", kind)
}
