// Package commands implements the semlift command line.
package commands

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/apiproto"
	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/config"
	"github.com/geoknoesis/semlift-go/decode"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/internal/process"
	"github.com/geoknoesis/semlift-go/lift"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/provider/bblocks"
	"github.com/geoknoesis/semlift-go/resolve"
)

var (
	configFileFlag string
	jsonLogFlag    bool
	verboseFlag    bool
	metricsOutFlag string
)

// BindGlobalFlags adds the flags every command accepts.
func BindGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVar(&configFileFlag, "config", "", "Config file (default: semlift.{yaml,toml,json} in . or ~/.semlift)")
	flags.BoolVar(&jsonLogFlag, "log-json", false, "Log JSON to stderr")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output")
	flags.StringVar(&metricsOutFlag, "metrics-out", "", "Write Prometheus metrics in text format to this file on exit")
}

// App holds the components the commands share.
type App struct {
	Config   *config.Config
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Cache    *resolve.CachingResolver
	Plans    *plan.Registry
	BBlocks  *bblocks.Provider
	Loader   *plan.Loader
	Backend  *backend.Native
	Engine   *lift.Engine
}

var app *App

// Setup reads the configuration and builds the shared components.
func Setup() error {
	v, err := config.New(configFileFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.Log.JSON || jsonLogFlag, cfg.Log.Verbose || verboseFlag); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	app, err = NewApp(cfg, logger.Logger)
	return err
}

// Teardown writes the metrics file when one was requested.
func Teardown() error {
	if metricsOutFlag == "" || app == nil {
		return nil
	}
	return errors.Wrap(prometheus.WriteToTextfile(metricsOutFlag, app.Registry), "write metrics")
}

// NewApp wires the resolver, plan registry, backend and engine from cfg.
func NewApp(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics.New(),
		Registry: prometheus.NewRegistry(),
	}
	if err := a.Metrics.Register(a.Registry); err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	locations := &resolve.Locations{Logger: log.Named("resolve")}
	a.Cache = resolve.NewCachingResolver(locations, cfg.ResolverCache(),
		resolve.WithCacheLogger(log.Named("cache")),
		resolve.WithCacheMetrics(a.Metrics))

	a.BBlocks = bblocks.New(cfg.BBlocks.Registry, a.Cache)
	a.BBlocks.Logger = log.Named("bblocks")
	a.Plans = plan.NewRegistry(a.BBlocks)

	a.Loader = plan.NewLoader(a.Cache, a.Plans)
	a.Loader.Logger = log.Named("plan")
	a.Loader.Metrics = a.Metrics

	runner := &process.Exec{Logger: log.Named("process"), Metrics: a.Metrics}
	engine := backend.NewCommandEngine(runner)
	engine.Shacl = cfg.Engine.Shacl
	engine.Construct = cfg.Engine.Construct
	engine.Update = cfg.Engine.Update
	engine.Logger = log.Named("engine")
	a.Backend = backend.NewNative(a.Cache.Resolve, engine)

	client := apiproto.NewClient(cfg.HTTP.Rate)
	client.HTTP.Timeout = cfg.HTTP.Timeout
	client.Resolver = a.Cache
	client.Logger = log.Named("api")
	client.Metrics = a.Metrics

	decoders := decode.NewRegistry(apiproto.NewRegistry(client))
	decoders.Logger = log.Named("decode")
	decoders.Metrics = a.Metrics

	a.Engine = lift.NewEngine(decoders, a.Cache, a.Backend, lift.NewJQ(runner, cfg.JQ.Binary))
	a.Engine.Logger = log.Named("lift")
	a.Engine.Metrics = a.Metrics
	return a, nil
}

// Describe renders err with its hints for the terminal.
func Describe(err error) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		b.WriteString("\n  hint: ")
		b.WriteString(hint)
	}
	return b.String()
}
