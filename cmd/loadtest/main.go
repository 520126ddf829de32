// Command loadtest measures router lookup latency.
//
// It reads the routable range from the router's /range endpoint, issues
// --queries lookups at uniformly random positions inside it and prints the
// latency summary as JSON:
//
//	{"queries":10,"found":10,"notFound":0,"failed":0,"totalTime":41.2,"min":3.1,"max":6.8,"average":4.1}
//
// All times are in milliseconds. Comparing a router started with
// --search=binary against one started with --search=linear shows the cost
// of each remote search strategy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/seglookup/internal/cli"
	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/logger"
)

type config struct {
	Router      string
	Queries     int
	Concurrency int
	Seed        int64
	Timeout     time.Duration
	Log         logger.Config
}

func defaultConfig() config {
	return config{
		Router:      "http://localhost:8080",
		Queries:     10,
		Concurrency: 1,
		Timeout:     5 * time.Second,
		Log:         logger.NewConfig(),
	}
}

// report summarizes one run. Latencies are in milliseconds.
type report struct {
	Queries  int     `json:"queries"`
	Found    int     `json:"found"`
	NotFound int     `json:"notFound"`
	Failed   int     `json:"failed"`
	Total    float64 `json:"totalTime"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Average  float64 `json:"average"`
}

type result int

const (
	found result = iota
	notFound
	failed
)

// discover returns the span covered by the router's directory.
func discover(ctx context.Context, client *cluster.Client, base string) (start, end int64, err error) {
	var entries []cluster.DirectoryEntry
	if err := client.GetJSON(ctx, base+"/range", &entries); err != nil {
		return 0, 0, fmt.Errorf("discover range: %w", err)
	}
	if len(entries) == 0 {
		return 0, 0, errors.New("discover range: router has no shards")
	}
	return entries[0].Start, entries[len(entries)-1].End, nil
}

// positions draws n timestamps uniformly from [start, end].
func positions(rng *rand.Rand, start, end int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = start + rng.Int63n(end-start+1)
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// runQueries issues one lookup per position, at most concurrency at a time.
func runQueries(ctx context.Context, client *cluster.Client, base string, points []int64, concurrency int, log *zap.Logger) report {
	samples := make([]float64, len(points))
	results := make([]result, len(points))

	began := time.Now()
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, pos := range points {
		g.Go(func() error {
			var iv cluster.Interval
			t0 := time.Now()
			err := client.GetJSON(ctx, fmt.Sprintf("%s/media-segment?position=%d", base, pos), &iv)
			samples[i] = ms(time.Since(t0))

			switch {
			case err == nil:
				results[i] = found
				log.Debug("Segment found", zap.Int64("position", pos), zap.Int64("index", iv.Index))
			case errors.Is(err, cluster.ErrNotFound):
				results[i] = notFound
				log.Debug("Segment not found", zap.Int64("position", pos))
			default:
				results[i] = failed
				log.Warn("Lookup failed", zap.Int64("position", pos), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := report{Queries: len(points), Total: ms(time.Since(began))}
	for _, r := range results {
		switch r {
		case found:
			rep.Found++
		case notFound:
			rep.NotFound++
		default:
			rep.Failed++
		}
	}
	if len(samples) > 0 {
		rep.Min = slices.Min(samples)
		rep.Max = slices.Max(samples)
		var sum float64
		for _, s := range samples {
			sum += s
		}
		rep.Average = sum / float64(len(samples))
	}
	return rep
}

func run(ctx context.Context, c config, out io.Writer, log *zap.Logger) error {
	if c.Queries <= 0 {
		return errors.New("--queries must be positive")
	}
	base := cluster.BaseURL(c.Router)
	client := cluster.NewClient(c.Timeout)

	start, end, err := discover(ctx, client, base)
	if err != nil {
		return err
	}
	log.Info("Retrieved range", zap.Int64("start", start), zap.Int64("end", end))

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	points := positions(rand.New(rand.NewSource(seed)), start, end, c.Queries)

	rep := runQueries(ctx, client, base, points, c.Concurrency, log)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "    ")
	return enc.Encode(rep)
}

func newCommand() (*cobra.Command, error) {
	c := defaultConfig()
	prog := &cli.Program{
		Name:      "loadtest",
		EnvPrefix: "SEGLOAD",
		Short:     "Measure router lookup latency at random positions",
		Opts: []cli.Opt{
			{DestP: &c.Router, Flag: "router", Default: c.Router, Desc: "router base URL"},
			{DestP: &c.Queries, Flag: "queries", Default: c.Queries, Desc: "number of lookups"},
			{DestP: &c.Concurrency, Flag: "concurrency", Default: c.Concurrency, Desc: "lookups in flight at once"},
			{DestP: &c.Seed, Flag: "seed", Default: c.Seed, Desc: "position sampling seed; 0 uses the clock"},
			{DestP: &c.Timeout, Flag: "timeout", Default: c.Timeout, Desc: "timeout for each lookup"},
			{DestP: &c.Log.Level, Flag: "log-level", Default: c.Log.Level, Desc: "log level: debug, info, warn, error"},
			{DestP: &c.Log.Format, Flag: "log-format", Default: c.Log.Format, Desc: "log format: console or json"},
		},
	}
	prog.Run = func() error {
		log, err := c.Log.New(os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, c, os.Stdout, log)
	}
	return cli.NewCommand(viper.New(), prog)
}

func main() {
	cmd, err := newCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
