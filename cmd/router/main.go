// Command router answers "which interval covers timestamp T" for a set of
// statically configured shards.
//
// On start-up it asks every shard for its range summary, then serves:
//
//	GET  /media-segment?position=T  interval covering T
//	GET  /range                     directory entries
//	GET  /directory                 directory snapshot with version and missing shards
//	POST /directory/rebuild         re-run the aggregation
//	GET  /metrics                   Prometheus metrics
//	GET  /health
//
// Shards are given as repeated --shard id=addr flags, a YAML --topology file,
// or both. A health monitor rebuilds the directory when a shard that was left
// out starts answering.
//
// Example usage:
//
//	router --shard 0=localhost:8081 --shard 1=localhost:8082
//	curl 'localhost:8080/media-segment?position=1250000'
//
// Every flag can also be set from the environment, e.g.
// SEGROUTER_SHARD_TIMEOUT=500ms.
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
	"github.com/dreamware/seglookup/internal/coordinator"
	"github.com/dreamware/seglookup/internal/logger"
	"github.com/dreamware/seglookup/internal/metrics"
)

type config struct {
	Listen         string
	Shards         []string
	Topology       string
	Search         string
	ShardTimeout   time.Duration
	HealthInterval time.Duration
	Log            logger.Config
}

func defaultConfig() config {
	return config{
		Listen:         ":8080",
		Search:         coordinator.SearchBinary,
		ShardTimeout:   cluster.DefaultTimeout,
		HealthInterval: 5 * time.Second,
		Log:            logger.NewConfig(),
	}
}

// targets merges the topology file with the --shard flags.
func (c config) targets() ([]cluster.ShardTarget, error) {
	var out []cluster.ShardTarget
	if c.Topology != "" {
		topo, err := cluster.LoadTopology(c.Topology)
		if err != nil {
			return nil, err
		}
		out = append(out, topo.Shards...)
	}
	for _, s := range c.Shards {
		t, err := cluster.ParseTarget(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no shards configured; use --shard id=addr or --topology")
	}
	return out, (cluster.Topology{Shards: out}).Validate()
}

// app is a configured router and the pieces that serve it.
type app struct {
	router  *coordinator.Router
	client  *cluster.Client
	handler http.Handler
	log     *zap.Logger
}

func newApp(c config, log *zap.Logger, reg *prometheus.Registry) (*app, error) {
	targets, err := c.targets()
	if err != nil {
		return nil, err
	}
	searcher, err := coordinator.SearcherByName(c.Search)
	if err != nil {
		return nil, err
	}

	client := cluster.NewClient(c.ShardTimeout)
	r, err := coordinator.NewRouter(coordinator.Config{
		Shards:   targets,
		Dial:     coordinator.HTTPDialer(client),
		Searcher: searcher,
		Logger:   log,
		Metrics:  metrics.NewRouter(reg),
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", coordinator.NewHandler(r))

	return &app{router: r, client: client, handler: mux, log: log}, nil
}

// monitor starts health checks that rebuild the directory when a missing
// shard recovers. The returned func stops them.
func (a *app) monitor(ctx context.Context, interval time.Duration) func() {
	hm := coordinator.NewHealthMonitor(interval, a.client, a.log)
	hm.SetOnHealthy(func(id int) {
		if ctx.Err() != nil {
			return
		}
		if err := a.router.ShardRecovered(ctx, id); err != nil {
			a.log.Warn("Rebuild after recovery incomplete", zap.Int("shard_id", id), zap.Error(err))
		}
	})
	hm.SetOnUnhealthy(func(id int) {
		a.log.Warn("Shard unhealthy", zap.Int("shard_id", id))
	})
	go hm.Start(ctx, a.router.Shards)
	return hm.Stop
}

func run(ctx context.Context, c config, ln net.Listener, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(c, log, reg)
	if err != nil {
		return err
	}

	// A partial directory is still served; missing shards are logged by the build.
	_, _ = a.router.Rebuild(ctx)

	if c.HealthInterval > 0 {
		stop := a.monitor(ctx, c.HealthInterval)
		defer stop()
	}

	log.Info("Router ready",
		zap.Int("shards", len(a.router.Shards())),
		zap.String("search", c.Search),
		zap.Duration("shard_timeout", c.ShardTimeout))
	return cluster.Serve(ctx, ln, a.handler, log)
}

func newCommand() (*cobra.Command, error) {
	c := defaultConfig()
	prog := &cli.Program{
		Name:      "router",
		EnvPrefix: "SEGROUTER",
		Short:     "Route timestamp lookups to the shard holding them",
		Opts: []cli.Opt{
			{DestP: &c.Listen, Flag: "listen", Default: c.Listen, Desc: "listen address"},
			{DestP: &c.Shards, Flag: "shard", Desc: "shard as id=addr; repeatable"},
			{DestP: &c.Topology, Flag: "topology", Desc: "YAML file listing shards"},
			{DestP: &c.Search, Flag: "search", Default: c.Search, Desc: "search variant: binary or linear"},
			{DestP: &c.ShardTimeout, Flag: "shard-timeout", Default: c.ShardTimeout, Desc: "timeout for each shard request"},
			{DestP: &c.HealthInterval, Flag: "health-interval", Default: c.HealthInterval, Desc: "shard health check period; 0 disables"},
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
		return run(ctx, c, ln, log)
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
