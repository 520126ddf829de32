// Command shard serves one contiguous slice of a generated timeline.
//
// Every shard holds Size intervals starting at global index ID*Size, so a
// set of shards started with IDs 0..N-1 and the same size forms one dense
// global index. Unless --start is given, shard ID's first interval starts at
// ID*Size*MaxDuration, which keeps shard ranges from overlapping.
//
// Example usage:
//
//	shard --id 0 --listen :8081 &
//	shard --id 1 --listen :8082 &
//	curl localhost:8082/range
//	curl 'localhost:8082/query?index=100000'
//
// Every flag can also be set from the environment, e.g. SEGSHARD_DELAY=10ms.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cli"
	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/logger"
	"github.com/dreamware/seglookup/internal/metrics"
	"github.com/dreamware/seglookup/internal/shard"
	"github.com/dreamware/seglookup/internal/storage"
)

type config struct {
	ID          int
	Listen      string
	Size        int64
	Start       int64
	Seed        int64
	MinDuration time.Duration
	MaxDuration time.Duration
	Delay       time.Duration
	Log         logger.Config
}

func defaultConfig() config {
	gen := storage.DefaultGenerateConfig()
	return config{
		Listen:      ":8081",
		Size:        gen.Count,
		Start:       -1,
		MinDuration: time.Duration(gen.MinDuration) * time.Millisecond,
		MaxDuration: time.Duration(gen.MaxDuration) * time.Millisecond,
		Log:         logger.NewConfig(),
	}
}

// generate maps the flags onto a timeline description. Timestamps are in
// milliseconds.
func (c config) generate() storage.GenerateConfig {
	maxMs := c.MaxDuration.Milliseconds()
	start := c.Start
	if start < 0 {
		start = int64(c.ID) * c.Size * maxMs
	}
	seed := c.Seed
	if seed == 0 {
		seed = int64(c.ID) + 1
	}
	return storage.GenerateConfig{
		Count:       c.Size,
		Offset:      int64(c.ID) * c.Size,
		Start:       start,
		MinDuration: c.MinDuration.Milliseconds(),
		MaxDuration: maxMs,
		Seed:        seed,
	}
}

func (c config) validate() error {
	switch {
	case c.ID < 0:
		return fmt.Errorf("--id must not be negative")
	case c.Size <= 0:
		return fmt.Errorf("--size must be positive")
	case c.MinDuration < time.Millisecond:
		return fmt.Errorf("--min-duration must be at least 1ms")
	case c.MaxDuration < c.MinDuration:
		return fmt.Errorf("--max-duration must not be below --min-duration")
	}
	return nil
}

// buildShard generates the timeline and wraps it in a shard.
func buildShard(c config) (*shard.Shard, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	store, err := storage.NewMemoryStore(storage.Generate(c.generate()))
	if err != nil {
		return nil, err
	}
	return shard.NewShard(c.ID, store)
}

// newMux serves the shard protocol plus /metrics.
func newMux(s *shard.Shard, c config, log *zap.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", shard.NewHandler(s, shard.HandlerConfig{
		Delay:   c.Delay,
		Logger:  log,
		Metrics: metrics.NewShard(reg, s.ID),
	}))
	return mux
}

func run(ctx context.Context, c config, ln net.Listener, log *zap.Logger) error {
	s, err := buildShard(c)
	if err != nil {
		return err
	}
	rs := s.Info().Range
	log.Info("Shard ready",
		zap.Int("shard_id", rs.ShardID),
		zap.Int64("start", rs.Start),
		zap.Int64("end", rs.End),
		zap.Int64("length", rs.Length),
		zap.Int64("offset", rs.Offset),
		zap.Duration("delay", c.Delay))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return cluster.Serve(ctx, ln, newMux(s, c, log, reg), log)
}

func newCommand() (*cobra.Command, error) {
	c := defaultConfig()
	prog := &cli.Program{
		Name:      "shard",
		EnvPrefix: "SEGSHARD",
		Short:     "Serve one shard of a generated interval timeline",
		Opts: []cli.Opt{
			{DestP: &c.ID, Flag: "id", Default: c.ID, Desc: "shard ID; also selects the global index offset id*size"},
			{DestP: &c.Listen, Flag: "listen", Default: c.Listen, Desc: "listen address"},
			{DestP: &c.Size, Flag: "size", Default: c.Size, Desc: "number of intervals to generate"},
			{DestP: &c.Start, Flag: "start", Default: c.Start, Desc: "start of the first interval in ms; negative derives it from id"},
			{DestP: &c.Seed, Flag: "seed", Default: c.Seed, Desc: "duration sampling seed; 0 derives it from id"},
			{DestP: &c.MinDuration, Flag: "min-duration", Default: c.MinDuration, Desc: "shortest generated interval"},
			{DestP: &c.MaxDuration, Flag: "max-duration", Default: c.MaxDuration, Desc: "longest generated interval"},
			{DestP: &c.Delay, Flag: "delay", Default: c.Delay, Desc: "artificial delay before each /range and /query response"},
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

		ln, err := net.Listen("tcp", c.Listen)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, c, ln, log.With(zap.Int("shard_id", c.ID)))
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
