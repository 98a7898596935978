// Command visualizer connects to a running MOSAIC simulation, keeps the
// live map state of all simulated units and serves it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OCAP2/visualizer/internal/client"
	"github.com/OCAP2/visualizer/internal/config"
	"github.com/OCAP2/visualizer/internal/dispatcher"
	"github.com/OCAP2/visualizer/internal/handlers"
	"github.com/OCAP2/visualizer/internal/influx"
	"github.com/OCAP2/visualizer/internal/logging"
	"github.com/OCAP2/visualizer/internal/monitor"
	intOtel "github.com/OCAP2/visualizer/internal/otel"
	"github.com/OCAP2/visualizer/internal/registry"
	"github.com/OCAP2/visualizer/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version     string = "0.0.1"
	BuildDate   string = "unknown"
	ProgramName string = "visualizer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "visualizer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet(ProgramName, pflag.ExitOnError)
	configDir := flags.String("config-dir", ".", "directory containing "+config.FileName)
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("host", "", "MOSAIC visualizer server host")
	flags.Int("port", 0, "MOSAIC visualizer server port")
	showVersion := flags.Bool("version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", ProgramName, Version, BuildDate)
		return nil
	}

	if err := config.Load(*configDir); err != nil {
		return err
	}
	bindFlags(flags)

	sessionStart := time.Now()
	logsDir := config.GetString("logsDir")
	dataDir := config.GetString("dataDir")
	for _, dir := range []string{logsDir, dataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, ProgramName, sessionStart), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	// OpenTelemetry
	otelCfg := config.GetOTelConfig()
	var otelFile, metricsFile *os.File
	if otelCfg.Enabled {
		otelFile, err = os.OpenFile(filepath.Join(logsDir, ProgramName+".otel.jsonl"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open OTel log file: %w", err)
		}
		defer otelFile.Close()
		metricsFile, err = os.OpenFile(filepath.Join(logsDir, ProgramName+".metrics.jsonl"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open OTel metrics file: %w", err)
		}
		defer metricsFile.Close()
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      writerOrNil(otelFile),
		MetricWriter:   writerOrNil(metricsFile),
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return err
	}

	// Logging
	var cl *client.Client
	var mon *monitor.Service
	level := config.GetString("logLevel")
	slogManager := logging.NewSlogManager()
	logOpts := logging.Options{
		Level:    level,
		Console:  os.Stdout,
		File:     logFile,
		Provider: provider.LoggerProvider(),
		Context: func() []slog.Attr {
			if cl == nil {
				return nil
			}
			attrs := []slog.Attr{slog.String("connection", cl.Status().State.String())}
			if mon != nil {
				attrs = append(attrs, slog.Int("units", mon.Latest().TotalUnits))
			}
			return attrs
		},
	}
	if graylog := config.GetGraylogConfig(); graylog.Enabled {
		logOpts.GraylogAddress = graylog.Address
	}
	if err := slogManager.Setup(logOpts); err != nil {
		slogManager.Logger().Warn("Graylog sink disabled", "error", err)
	}
	logger := slogManager.Logger()
	infraLog := logging.NewZerolog(os.Stdout, logFile, level)

	logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "configDir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	recorder := setupStorage(config.GetStorageConfig(), infraLog, logger)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error("Error closing storage", "error", err)
		}
		if exp, ok := recorder.(storage.Exporter); ok && exp.GetExportedFilePath() != "" {
			logger.Info("Recording written", "path", exp.GetExportedFilePath())
		}
	}()

	// Map controller and event handling
	viewCfg := config.GetViewConfig()
	reg := registry.New(registry.View{
		Latitude:  viewCfg.Latitude,
		Longitude: viewCfg.Longitude,
		Zoom:      viewCfg.Zoom,
	}, logger.With("component", "registry"))

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(infraLog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return err
	}
	handlers.NewService(handlers.Dependencies{
		Registry: reg,
		Backend:  recorder,
		Logger:   logger.With("component", "handlers"),
	}).RegisterHandlers(eventDispatcher)

	clientCfg := config.GetClientConfig()
	cl, err = client.New(client.ConfigFrom(clientCfg), client.Dependencies{
		Registry:   reg,
		Dispatcher: eventDispatcher,
		Recorder:   recorder,
		Logger:     logger.With("component", "client"),
	})
	if err != nil {
		return err
	}
	cl.OnStatus(func(s client.Status) {
		logger.Info("Connection status", "state", s.State.String(), "tries", s.TriesText())
		if s.State == client.Disconnected {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := provider.Flush(ctx); err != nil {
					logger.Warn("OTel flush failed", "error", err)
				}
			}()
		}
	})

	// Metrics
	influxManager := influx.NewManager(config.GetInfluxConfig(), infraLog.With().Str("component", "influx").Logger(),
		filepath.Join(dataDir, "influx_backup.lp.gz"))
	var points monitor.PointWriter
	if err := influxManager.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			logger.Error("InfluxDB unavailable", "error", err)
		}
	} else {
		points = influxManager
	}
	defer influxManager.Close()

	monDeps := monitor.Dependencies{
		Source:   cl,
		Points:   points,
		DataDir:  dataDir,
		Interval: config.GetMonitorConfig().Interval,
		Logger:   logger.With("component", "monitor"),
	}
	if q, ok := recorder.(monitor.QueueReporter); ok {
		monDeps.Queues = q
	}
	mon = monitor.NewService(monDeps)
	if err := mon.Start(ctx); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}
	defer mon.Stop()

	// HTTP API
	httpCfg := config.GetHTTPConfig()
	var srv *http.Server
	if httpCfg.Enabled {
		srv = &http.Server{
			Addr:              httpCfg.Listen,
			Handler:           newServer(cl, mon, logger.With("component", "http")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP API listening", "address", httpCfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	logger.Info("Connecting to MOSAIC", "url", clientCfg.URL(), "maxRetries", clientCfg.MaxRetries)
	runErr := cl.Run(ctx)

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown failed", "error", err)
		}
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("OTel shutdown failed", "error", err)
	}
	_ = slogManager.Close(shutdownCtx)
	return runErr
}

// bindFlags lets command line flags override the configuration file.
func bindFlags(flags *pflag.FlagSet) {
	bind := map[string]string{
		"log-level": "logLevel",
		"host":      "socket.host",
		"port":      "socket.port",
	}
	for flag, key := range bind {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// setupStorage initializes the configured recorder. A recorder that
// fails to start is replaced by one that discards everything.
func setupStorage(cfg config.StorageConfig, log zerolog.Logger, logger *slog.Logger) storage.Backend {
	b, err := storage.NewBackend(cfg, log.With().Str("component", "storage").Logger())
	if err != nil {
		logger.Error("Invalid storage configuration", "error", err)
		return storage.Noop{}
	}
	if err := b.Init(); err != nil {
		logger.Error("Storage backend failed to initialize, recording disabled", "type", cfg.Type, "error", err)
		return storage.Noop{}
	}
	logger.Info("Storage backend initialized", "type", cfg.Type)
	return b
}

// writerOrNil avoids handing a typed nil *os.File to an io.Writer field.
func writerOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}
