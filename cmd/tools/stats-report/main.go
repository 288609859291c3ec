// Command stats-report summarises recorded session throughput and renders
// offline plots from the sqlite frame index.
//
// Usage:
//
//	go run ./cmd/tools/stats-report [flags]
//
// Flags:
//
//	-db       Path to the sqlite database (default camlink.db)
//	-session  Session id to report on (default: most recent)
//	-o        Output directory for the PNG plots (default .)
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/polarisvision/camlink/internal/db"
)

func main() {
	dbPath := flag.String("db", "camlink.db", "path to sqlite database")
	sessionID := flag.String("session", "", "session id (default: most recent)")
	outputDir := flag.String("o", ".", "output directory for plots")
	flag.Parse()

	store, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	samples, err := store.Samples(*sessionID, 0)
	if err != nil {
		log.Fatalf("failed to load samples: %v", err)
	}
	if len(samples) == 0 {
		log.Fatal("no samples recorded; run the receiver with -db first")
	}

	printSummary(samples)

	if err := renderPlots(samples, *outputDir); err != nil {
		log.Fatalf("failed to render plots: %v", err)
	}
}

func printSummary(samples []db.Sample) {
	fps := make([]float64, len(samples))
	for i, s := range samples {
		fps[i] = s.AvgFPS
	}
	sort.Float64s(fps)

	last := samples[len(samples)-1]
	span := last.SampledAt.Sub(samples[0].SampledAt)
	mean, std := stat.MeanStdDev(fps, nil)

	fmt.Printf("session:  %s\n", last.SessionID)
	fmt.Printf("samples:  %d over %.1fs\n", len(samples), span.Seconds())
	fmt.Printf("frames:   %d\n", last.FramesReceived)
	fmt.Printf("data:     %.2f MB\n", float64(last.BytesReceived)/(1024*1024))
	fmt.Printf("avg fps:  mean=%.2f stddev=%.2f\n", mean, std)
	fmt.Printf("fps p50:  %.2f\n", stat.Quantile(0.50, stat.Empirical, fps, nil))
	fmt.Printf("fps p99:  %.2f\n", stat.Quantile(0.99, stat.Empirical, fps, nil))
}

func renderPlots(samples []db.Sample, outputDir string) error {
	base := samples[0].SampledAt
	fpsPts := make(plotter.XYs, 0, len(samples))
	mbPts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		x := s.SampledAt.Sub(base).Seconds()
		fpsPts = append(fpsPts, plotter.XY{X: x, Y: s.AvgFPS})
		mbPts = append(mbPts, plotter.XY{X: x, Y: float64(s.BytesReceived) / (1024 * 1024)})
	}

	pFps := plot.New()
	pFps.Title.Text = "Average Frame Rate"
	pFps.X.Label.Text = "Time (s)"
	pFps.Y.Label.Text = "FPS"

	fpsLine, err := plotter.NewLine(fpsPts)
	if err != nil {
		return fmt.Errorf("fps line: %w", err)
	}
	fpsLine.Width = vg.Points(1)
	pFps.Add(fpsLine)
	pFps.Add(plotter.NewGrid())

	fpsFile := filepath.Join(outputDir, "fps.png")
	if err := pFps.Save(14*vg.Inch, 6*vg.Inch, fpsFile); err != nil {
		return fmt.Errorf("save %s: %w", fpsFile, err)
	}
	log.Printf("wrote %s", fpsFile)

	pMb := plot.New()
	pMb.Title.Text = "Cumulative Data Received"
	pMb.X.Label.Text = "Time (s)"
	pMb.Y.Label.Text = "MB"

	mbLine, err := plotter.NewLine(mbPts)
	if err != nil {
		return fmt.Errorf("mb line: %w", err)
	}
	mbLine.Width = vg.Points(1)
	pMb.Add(mbLine)
	pMb.Add(plotter.NewGrid())

	mbFile := filepath.Join(outputDir, "bytes.png")
	if err := pMb.Save(14*vg.Inch, 6*vg.Inch, mbFile); err != nil {
		return fmt.Errorf("save %s: %w", mbFile, err)
	}
	log.Printf("wrote %s", mbFile)
	return nil
}
