// Command carboncore computes the annual carbon budget for a field site from
// the measurement tables staged in the archive, persists the run, and
// publishes report artifacts. With -serve it stays up after the batch and
// exposes the finished run over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carboncore/internal/archive"
	"carboncore/internal/carbon"
	"carboncore/internal/pipeline"
	"carboncore/internal/report"
	"carboncore/internal/results"
	"carboncore/internal/units"
	"carboncore/pkg/allometry"
)

var exitFunc = os.Exit

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	site    string
	year    int
	formats string
	stage   string
	trace   string
	serve   string
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("carboncore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defaults := carbon.DefaultConfig()
	var opts options
	fs.StringVar(&opts.site, "site", defaults.Site, "site code the budget is computed for")
	fs.IntVar(&opts.year, "year", defaults.BudgetYear, "budget year")
	fs.StringVar(&opts.formats, "formats", "json,csv", "comma-separated report formats: json, csv, xlsx")
	fs.StringVar(&opts.stage, "stage", "", "directory of raw tables to stage into the archive first (product/site/table.csv layout)")
	fs.StringVar(&opts.trace, "trace", "", "file receiving the JSON stage trace")
	fs.StringVar(&opts.serve, "serve", "", "address serving run results and metrics after the batch, e.g. :8080")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, stdout); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "carboncore: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

// run executes one budget batch: open the stores from the environment, stage
// local tables when asked, run the pipeline, print the outcome, and serve it
// when an address was given.
func run(ctx context.Context, opts options, stdout io.Writer) (err error) {
	cfg := carbon.DefaultConfig()
	cfg.Site = opts.site
	cfg.BudgetYear = opts.year
	if err := cfg.Validate(); err != nil {
		return err
	}
	formats, err := parseFormats(opts.formats)
	if err != nil {
		return err
	}

	store, err := archive.Open(ctx)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if opts.stage != "" {
		staged, present, stageErr := stageTables(ctx, store, opts.stage)
		if stageErr != nil {
			return fmt.Errorf("stage %s: %w", opts.stage, stageErr)
		}
		if _, writeErr := fmt.Fprintf(stdout, "staged %d tables (%d already present)\n", staged, present); writeErr != nil {
			return writeErr
		}
	}

	runs, err := results.Open(ctx)
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	defer func() {
		if cerr := runs.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close results: %w", cerr)
		}
	}()

	reg := prometheus.NewRegistry()
	p := pipeline.New(cfg, archive.NewSource(store), allometry.Default())
	p.Results = runs
	p.Reports = report.NewPublisher(store)
	p.Formats = formats
	p.Metrics = pipeline.NewMetrics(reg)

	if opts.trace != "" {
		traceFile, openErr := os.Create(opts.trace)
		if openErr != nil {
			return fmt.Errorf("open trace %s: %w", opts.trace, openErr)
		}
		defer func() {
			if cerr := traceFile.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close trace: %w", cerr)
			}
		}()
		p.Tracer = pipeline.NewJSONTracer(traceFile)
	}

	out, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if err := printOutcome(stdout, out); err != nil {
		return err
	}

	if opts.serve != "" {
		handler, handlerErr := newServeHandler(out.Run, out.Artifacts, reg)
		if handlerErr != nil {
			return handlerErr
		}
		return serve(ctx, opts.serve, handler, stdout)
	}
	return nil
}

// parseFormats resolves the -formats flag. The PNG diagnostic is produced
// from the driver series automatically and cannot be requested here.
func parseFormats(raw string) ([]report.Format, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var formats []report.Format
	for _, part := range strings.Split(raw, ",") {
		switch format := report.Format(strings.ToLower(strings.TrimSpace(part))); format {
		case report.FormatJSON, report.FormatCSV, report.FormatXLSX:
			formats = append(formats, format)
		case report.FormatPNG:
			return nil, fmt.Errorf("format png is rendered from the driver series, not on request")
		default:
			return nil, fmt.Errorf("unknown report format %q", strings.TrimSpace(part))
		}
	}
	return formats, nil
}

// stageTables walks dir, expecting product/site/table.csv entries, and puts
// each file into the archive. Tables already present count as present rather
// than failing, so re-staging the same directory is idempotent.
func stageTables(ctx context.Context, store archive.Store, dir string) (staged, present int, err error) {
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.Count(key, "/") != 2 || !strings.HasSuffix(key, ".csv") {
			return fmt.Errorf("unexpected entry %s, want product/site/table.csv", key)
		}
		file, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		_, putErr := store.Put(ctx, key, file, "text/csv")
		if cerr := file.Close(); cerr != nil && putErr == nil {
			putErr = cerr
		}
		switch {
		case errors.Is(putErr, archive.ErrExists):
			present++
		case putErr != nil:
			return putErr
		default:
			staged++
		}
		return nil
	})
	return staged, present, walkErr
}

func printOutcome(w io.Writer, out pipeline.Outcome) error {
	if _, err := fmt.Fprintf(w, "run %s site %s year %d\n", out.Run.ID, out.Run.Site, out.Run.Budget.Year); err != nil {
		return err
	}
	for _, component := range carbon.Components() {
		if _, err := fmt.Fprintf(w, "  %-20s %s\n", component, formatValue(out.Run.Budget.Value(component))); err != nil {
			return err
		}
	}
	for _, artifact := range out.Artifacts {
		if _, err := fmt.Fprintf(w, "wrote %s (%d bytes)\n", artifact.Key, artifact.SizeBytes); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(n units.Number) string {
	if !n.Valid {
		return "missing"
	}
	return strconv.FormatFloat(n.Value, 'g', 6, 64) + " kg C m^-2"
}

// newServeHandler builds the read-only HTTP surface for a finished run:
// the budget document, the artifact listing, prometheus metrics, and a
// health endpoint. Both JSON payloads are rendered once up front.
func newServeHandler(run results.Run, artifacts []report.Artifact, reg *prometheus.Registry) (http.Handler, error) {
	budget, err := report.RenderJSON(run)
	if err != nil {
		return nil, fmt.Errorf("render budget: %w", err)
	}
	listing, err := json.Marshal(artifacts)
	if err != nil {
		return nil, fmt.Errorf("render artifact listing: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/budget", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(budget)
	})
	mux.HandleFunc("/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(listing)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "carboncore run %s\n/budget\n/artifacts\n/metrics\n/health\n", run.ID)
	})
	return mux, nil
}

func serve(ctx context.Context, addr string, handler http.Handler, stdout io.Writer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if _, err := fmt.Fprintf(stdout, "serving on http://%s\n", ln.Addr()); err != nil {
		_ = ln.Close()
		return err
	}
	return serveListener(ctx, ln, handler)
}

// serveListener serves handler until ctx is cancelled, then drains in-flight
// requests before returning.
func serveListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-done; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-done:
		return err
	}
}
