// gpioctrl binds GPIO lines to variable-server variables and keeps the two
// in sync.
//
// One mapping document can be served by two cooperating instances of this
// binary: invoked as gpioctrl it runs in signal mode, driving outputs and
// answering queries from variable-server signals; invoked as gpiowatch it
// runs in watch mode, pushing hardware edge events back into variables. Each
// instance acquires only the lines its mode owns, so both can run against
// the same document without double-claiming a line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/varbridge/gpioctrl/internal/binding"
	"github.com/varbridge/gpioctrl/internal/engine"
	"github.com/varbridge/gpioctrl/internal/gpiodef"
	"github.com/varbridge/gpioctrl/internal/hardware"
	"github.com/varbridge/gpioctrl/internal/history"
	"github.com/varbridge/gpioctrl/internal/infrastructure/config"
	"github.com/varbridge/gpioctrl/internal/infrastructure/influxdb"
	"github.com/varbridge/gpioctrl/internal/infrastructure/logging"
	"github.com/varbridge/gpioctrl/internal/infrastructure/mqtt"
	"github.com/varbridge/gpioctrl/internal/varserver"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

// options holds the parsed command line.
type options struct {
	defPath    string
	configPath string
	verbose    bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(ctx, opts, filepath.Base(os.Args[0])); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs parses the command line. -f is required; everything else is
// optional.
func parseArgs(args []string, errOut io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("gpioctrl", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.defPath, "f", "", "GPIO mapping document (required)")
	fs.StringVar(&opts.configPath, "c", "", "daemon configuration file")
	fs.BoolVar(&opts.verbose, "v", false, "echo the parsed mapping document")
	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: gpioctrl -f <file> [-c <file>] [-v]\n\n")
		fmt.Fprintf(errOut, "Binds GPIO lines to variable-server variables.\n")
		fmt.Fprintf(errOut, "Invoke as the configured watcher name (default gpiowatch)\n")
		fmt.Fprintf(errOut, "to monitor edge events instead of variable signals.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.defPath == "" {
		fmt.Fprintln(errOut, "missing required -f <file>")
		fs.Usage()
		return opts, fmt.Errorf("missing mapping document")
	}
	return opts, nil
}

// selectMode picks the operating mode from the invoked program name.
func selectMode(prog, watcherName string) binding.Mode {
	if prog == watcherName {
		return binding.WatchMode
	}
	return binding.SignalMode
}

// effectiveServiceName returns the configured identity for this instance:
// the logging service field and the consumer string on hardware line
// requests. The invoked program name only selects the mode.
func effectiveServiceName(cfg *config.Config, mode binding.Mode) string {
	if mode == binding.WatchMode {
		return cfg.Service.WatcherName
	}
	return cfg.Service.Name
}

// run is the daemon logic, separated from main for testability.
func run(ctx context.Context, opts options, prog string) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	mode := selectMode(prog, cfg.Service.WatcherName)
	service := effectiveServiceName(cfg, mode)

	log := logging.New(cfg.Logging, service, version)
	log.Info("starting",
		"mode", mode.String(),
		"version", version,
		"commit", commit,
	)

	doc, err := gpiodef.Load(opts.defPath)
	if err != nil {
		return fmt.Errorf("loading mapping document: %w", err)
	}
	log.Info("mapping document loaded", "path", opts.defPath, "chips", len(doc.Chips))
	if opts.verbose {
		fmt.Println(doc.Dump())
	}

	// The watch instance needs its own broker identity alongside the
	// signal instance.
	mqttCfg := cfg.Varserver.MQTT
	if mode == binding.WatchMode {
		mqttCfg.Broker.ClientID += "-watch"
	}

	mqttClient, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", mqttCfg.Broker.Host, mqttCfg.Broker.Port),
		"client_id", mqttCfg.Broker.ClientID,
	)

	vars, err := varserver.NewMQTTClient(mqttClient, mqttCfg.Broker.ClientID, cfg.Varserver.SignalBuffer)
	if err != nil {
		return fmt.Errorf("connecting to variable server: %w", err)
	}
	vars.SetLogger(log)
	vars.SetRequestTimeout(cfg.GetRequestTimeout())

	binder := binding.NewBinder(vars, hardware.CdevOpener{}, mode, service, cfg.GetPWMQuantum())
	binder.SetLogger(log)

	registry, report, err := binder.Bind(ctx, doc)
	if err != nil {
		return fmt.Errorf("binding lines: %w", err)
	}
	defer func() {
		log.Info("releasing hardware")
		registry.StopDrivers()
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error releasing hardware", "error", closeErr)
		}
	}()
	log.Info("binding complete",
		"bound", report.BoundCount(),
		"skipped", report.SkippedCount(),
	)
	for _, entry := range report.Entries {
		if !entry.Bound {
			log.Warn("line not bound",
				"chip", entry.Chip, "line", entry.Line,
				"var", entry.Var, "reason", entry.Reason)
		}
	}

	eng := engine.New(mode, vars, registry, binder.Events())
	eng.SetLogger(log)

	if cfg.History.Enabled {
		recorder, err := history.Open(cfg.History.Path, cfg.GetHistoryRetention())
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing history", "error", closeErr)
			}
		}()
		recorder.SetLogger(log)
		eng.AddRecorder(recorder)
		log.Info("history recording enabled", "path", cfg.History.Path)
	}

	if cfg.Telemetry.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close()
		}()
		influxClient.SetLogger(log)
		eng.AddRecorder(telemetryRecorder{client: influxClient})
		log.Info("telemetry enabled",
			"url", cfg.Telemetry.URL,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	log.Info("initialisation complete")

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	log.Info("stopped")
	return nil
}

// telemetryRecorder adapts the InfluxDB client to the engine's recorder
// interface.
type telemetryRecorder struct {
	client *influxdb.Client
}

func (r telemetryRecorder) Record(t engine.Transition) {
	r.client.WriteTransition(t.Time, t.Chip, t.Offset, t.Var, t.Value, t.Source)
}
