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
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/pdf360/planview/internal/api"
	"github.com/pdf360/planview/internal/catalog"
	"github.com/pdf360/planview/internal/config"
	"github.com/pdf360/planview/internal/database"
	"github.com/pdf360/planview/internal/files"
	"github.com/pdf360/planview/internal/logging"
	"github.com/pdf360/planview/internal/markers"
	"github.com/pdf360/planview/internal/monitor"
	intOtel "github.com/pdf360/planview/internal/otel"
	"github.com/pdf360/planview/internal/session"
	"github.com/pdf360/planview/internal/telemetry"
	"github.com/pdf360/planview/internal/workspace"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "planview"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	args := os.Args[1:]
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "version":
			fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
			return
		case "upload":
			if err := runUpload(args[1:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case "serve":
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
			os.Exit(2)
		}
	}

	if err := serve(); err != nil {
		Logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

// configDir is where planview.cfg.json is looked up
func configDir() string {
	if dir := os.Getenv("PLANVIEW_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// setupLogging switches from the console to the configured outputs.
// The returned zerolog logger writes to the same destination for the packages logging through zerolog.
func setupLogging(wc *workspace.Context) (*os.File, zerolog.Logger) {
	level := viper.GetString("logLevel")

	var (
		logFile *os.File
		out     io.Writer
	)
	if logsDir := viper.GetString("logsDir"); logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
		} else {
			path := logging.LogFilePath(logsDir, AppName, SessionStartTime)
			if _, err := os.Stat(path); err == nil {
				_ = os.Rename(path, path+".old")
			}
			f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				Logger.Error("Failed to create/open log file!", "error", err, "path", path)
			} else {
				logFile = f
				out = f
				Logger.Info("Begin logging in logs directory", "path", path)
			}
		}
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, out))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	opts := []logging.Option{logging.WithContext(logging.WorkspaceProvider(wc))}
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			opts = append(opts, logging.WithGraylog(w))
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(out, level, otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	var zw io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if out != nil {
		zw = out
	}
	zlog := zerolog.New(zw).With().Timestamp().Str("app", AppName).Logger()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		zlog = zlog.Level(lvl)
	}

	return logFile, zlog
}

func serve() error {
	if err := config.Load(configDir()); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wc := workspace.NewContext()
	logFile, zlog := setupLogging(wc)
	if logFile != nil {
		defer logFile.Close()
	}
	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	backend, err := initStorage(database.NewManager(zlog))
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	markerCache, closeCache := initCache(ctx)
	defer func() { _ = closeCache() }()

	serverCfg := config.GetServerConfig()
	docs := files.NewOS(serverCfg.FilesRoot)
	if err := docs.EnsureFolder(""); err != nil {
		return fmt.Errorf("failed to prepare document root: %w", err)
	}

	recorder, closeTelemetry := initTelemetry(ctx, zlog)
	defer closeTelemetry()

	cat := catalog.New(catalog.Dependencies{Store: backend, Files: docs, Cache: markerCache, Logger: Logger})
	svc := markers.New(markers.Dependencies{Store: backend, Files: docs, Cache: markerCache, Logger: Logger})

	app := api.New(api.Dependencies{
		Catalog: cat,
		Markers: svc,
		Files:   docs,
		Ready: func(ctx context.Context) error {
			if p, ok := markerCache.(interface{ Ping(context.Context) error }); ok {
				return p.Ping(ctx)
			}
			return nil
		},
		Logger: Logger.With("component", "api"),
	})

	sessions := session.NewServer(session.Dependencies{
		Catalog:          cat,
		Markers:          svc,
		Workspace:        wc,
		Telemetry:        recorder,
		Interaction:      config.GetInteractionConfig(),
		Viewer:           config.GetViewerConfig(),
		Logger:           Logger.With("component", "session"),
		DispatcherLogger: logging.NewDispatcherLogger(zlog),
	})
	statusPath := ""
	if logsDir := viper.GetString("logsDir"); logsDir != "" {
		statusPath = filepath.Join(logsDir, "status.json")
	}
	monitorService := monitor.NewService(monitor.Dependencies{
		Sessions:         sessions.Len,
		TelemetryPending: recorder.Pending,
		Workspace:        wc,
		StatusPath:       statusPath,
		Logger:           Logger.With("component", "monitor"),
	})
	if OTelProvider != nil {
		if err := monitorService.RegisterMetrics(OTelProvider.Meter("github.com/pdf360/planview/internal/monitor")); err != nil {
			Logger.Warn("Failed to register status metrics", "error", err)
		}
	}
	monitorService.Start()
	defer monitorService.Stop()

	sessionHTTP := &http.Server{
		Addr:              serverCfg.SessionListen,
		Handler:           sessions,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		Logger.Info("REST API listening", "addr", serverCfg.HTTPListen)
		errCh <- app.Listen(serverCfg.HTTPListen)
	}()
	go func() {
		Logger.Info("Session server listening", "addr", serverCfg.SessionListen)
		if err := sessionHTTP.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		Logger.Info("Shutting down...")
	case runErr = <-errCh:
		Logger.Error("Listener failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sessions.Close(); err != nil {
		Logger.Warn("Failed to close sessions", "error", err)
	}
	if err := sessionHTTP.Shutdown(shutdownCtx); err != nil {
		Logger.Warn("Failed to stop session server", "error", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		Logger.Warn("Failed to stop REST API", "error", err)
	}

	// Flush OTel data if provider is available
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(shutdownCtx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
	}
	return runErr
}

// initTelemetry connects to InfluxDB when enabled. The returned recorder drops points otherwise.
func initTelemetry(ctx context.Context, zlog zerolog.Logger) (*telemetry.Recorder, func()) {
	telemetryCfg := config.GetTelemetryConfig()
	if !telemetryCfg.Enabled {
		r := telemetry.NewRecorder(nil, 0, zlog)
		return r, r.Close
	}

	backupPath := filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_telemetry_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")))
	influx := telemetry.NewManager(telemetryCfg, zlog, backupPath)
	if err := influx.Connect(ctx); err != nil {
		Logger.Error("Failed to set up interaction telemetry", "error", err)
		r := telemetry.NewRecorder(nil, 0, zlog)
		return r, r.Close
	}

	recorder := telemetry.NewRecorder(influx, 0, zlog)
	recorder.Start()
	Logger.Info("Interaction telemetry enabled", "url", telemetryCfg.URL, "bucket", telemetryCfg.Bucket)
	return recorder, func() {
		recorder.Close()
		if err := influx.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB client", "error", err)
		}
	}
}
