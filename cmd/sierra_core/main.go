package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C" // This is required to import the C code

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/RogersSierra/extension/internal/api"
	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/events"
	"github.com/RogersSierra/extension/internal/handlers"
	"github.com/RogersSierra/extension/internal/influx"
	"github.com/RogersSierra/extension/internal/journey"
	"github.com/RogersSierra/extension/internal/logging"
	"github.com/RogersSierra/extension/internal/monitor"
	intOtel "github.com/RogersSierra/extension/internal/otel"
	"github.com/RogersSierra/extension/internal/storage"
	"github.com/RogersSierra/extension/internal/telemetry"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/internal/worker"
	"github.com/RogersSierra/extension/pkg/hostabi"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "sierra_core"
)

// file paths
var (
	// HostDir is the directory of the game executable.
	HostDir string

	// ModulePath is the absolute path to this library file.
	ModulePath string

	// ModuleFolder is the parent folder of ModulePath. The config file,
	// init log and status file live here.
	ModuleFolder string

	InitLogFilePath string
	InitLogFile     *os.File
	CoreLogFilePath string
	CoreLogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger backs the dispatcher and the storage writers.
	ZLogger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// graylogWriter is closed on shutdown when Graylog is enabled.
	graylogWriter io.Closer

	SessionStartTime time.Time = time.Now()

	// Services
	fleet           *train.Fleet
	journeys        *journey.Context
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	recorder        *telemetry.Recorder
	eventDispatcher *dispatcher.Dispatcher
	apiClient       *api.Client
	influxManager   *influx.Manager

	storageBackend storage.Backend

	// coreReady is closed once every service is registered.
	coreReady = make(chan struct{})
)

// init is run automatically when the module is loaded
func init() {
	var err error

	HostDir, err = hostabi.GetHostDir()
	if err != nil {
		panic(err)
	}

	ModuleFolder = HostDir
	if ModulePath, err = hostabi.ModulePath(); err == nil {
		ModuleFolder = filepath.Dir(ModulePath)
	}

	InitLogFilePath = filepath.Join(ModuleFolder, "init.log")
	InitLogFile, err = os.Create(InitLogFilePath)
	if err != nil {
		// Log to stderr since logging isn't set up yet
		fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
	}

	// Initialize slog manager with initial config
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(fileOrNil(InitLogFile), viper.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	// load config
	if err = config.Load(ModuleFolder); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := resolvePath(viper.GetString("logsDir"))
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	CoreLogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)

	// keep the previous log of the same second instead of appending to it
	if _, err := os.Stat(CoreLogFilePath); err == nil {
		_ = os.Rename(CoreLogFilePath, CoreLogFilePath+".old")
	}

	CoreLogFile, err = os.OpenFile(CoreLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", CoreLogFilePath)
	}

	Logger.Info("Begin logging in logs directory", "path", CoreLogFilePath)

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentExtensionVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      fileOrNil(CoreLogFile),
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var extra []slog.Handler
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		h, w, err := logging.NewGelfHandler(graylogCfg.Address, viper.GetString("logLevel"), ExtensionName)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", graylogCfg.Address)
		} else {
			extra = append(extra, h)
			graylogWriter = w
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(fileOrNil(CoreLogFile), viper.GetString("logLevel"), otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", CoreLogFilePath)

	var zout io.Writer = os.Stdout
	if CoreLogFile != nil {
		zout = CoreLogFile
	}
	ZLogger = logging.NewZerolog(zout, viper.GetString("logLevel"))

	Logger.Info("Setting up host interface...")
	if err = setupHostInterface(); err != nil {
		Logger.Error("Failed to set up host interface!", "error", err)
		panic(err)
	}
	Logger.Info("Set up host interface")

	go func() {
		if err := startGoroutines(); err != nil {
			Logger.Error("Failed to start services", "error", err)
			return
		}

		// log journey server status
		checkServerStatus()
	}()
}

// fileOrNil keeps a nil *os.File from becoming a non-nil io.Writer.
func fileOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

// resolvePath anchors relative config paths at the module folder.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ModuleFolder, p)
}

func initExtension() {
	if err := hostabi.WriteCallback(ExtensionName, ":CORE:READY:", ""); err != nil {
		Logger.Warn("Failed to send ready callback", "error", err)
	}
	if err := hostabi.WriteCallback(ExtensionName, ":VERSION:", CurrentExtensionVersion); err != nil {
		Logger.Warn("Failed to send version callback", "error", err)
	}
}

func setupHostInterface() error {
	hostabi.SetVersion(CurrentExtensionVersion)

	// Create early dispatcher for commands that don't need storage or trains.
	// This ensures :INIT: and friends work as soon as the library loads.
	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("failed to create early dispatcher: %w", err)
	}

	registerLifecycleHandlers(d)
	hostabi.SetDispatcher(d)
	eventDispatcher = d

	Logger.Info("Early dispatcher initialized with lifecycle handlers")
	return nil
}

func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go initExtension()
		return "ok", nil
	})

	d.Register(":GETDIR:HOST:", func(e dispatcher.Event) (any, error) {
		return HostDir, nil
	})

	d.Register(":GETDIR:MODULE:", func(e dispatcher.Event) (any, error) {
		return ModulePath, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return CoreLogFilePath, nil
	})

	d.Register(":SHUTDOWN:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SHUTDOWN: command")
		if err := shutdown(); err != nil {
			Logger.Error("Shutdown finished with errors", "error", err)
			return nil, err
		}
		return "ok", nil
	})
}

// startGoroutines builds the fleet and the telemetry pipeline, registers
// their commands and opens the storage backend.
func startGoroutines() (err error) {
	functionName := "startGoroutines"
	defer close(coreReady)

	journeys = journey.NewContext(CurrentExtensionVersion, BuildDate, viper.GetString("defaultTag"))

	fleet, err = train.NewFleet(config.GetPhysicsConfig(), events.NewBus(Logger), Logger)
	if err != nil {
		return fmt.Errorf("failed to create fleet: %w", err)
	}

	// Set up dynamic state callbacks for logging
	SlogManager.GetActiveTrain = fleet.ActiveID
	SlogManager.GetJourneyID = journeys.ID
	SlogManager.GetFleetSize = fleet.Len

	apiCfg := config.GetAPIConfig()
	apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)

	storageCfg := config.GetStorageConfig()
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled || storageCfg.Type == "influx" {
		influxManager = newInfluxManager(influxCfg, storageCfg)
	}

	storageBackend, err = createStorageBackend(storageCfg, influxCfg)
	if err != nil {
		return err
	}

	telemetryCfg := config.GetTelemetryConfig()
	workerManager = worker.NewManager(worker.Dependencies{
		Journeys: journeys,
		Logger:   Logger,
		Uploader: apiClient,
	}, storageBackend, worker.Config{
		FlushInterval: telemetryCfg.FlushInterval,
		QueueLimit:    telemetryCfg.QueueLimit,
		Upload:        storageCfg.Memory.Upload,
	})

	recorder = telemetry.New(telemetry.Config{
		Enabled:        telemetryCfg.Enabled,
		SampleInterval: telemetryCfg.SampleInterval,
		PistonStrokes:  telemetryCfg.PistonStrokes,
	}, fleet, workerManager, Logger)
	recorder.Attach(fleet.Bus())
	workerManager.Observe(recorder)

	handlerService = handlers.NewService(handlers.Dependencies{
		Fleet:      fleet,
		Recorder:   recorder,
		LogManager: SlogManager,
		Version:    CurrentExtensionVersion,
		BuildDate:  BuildDate,
	})

	// Register with the early dispatcher (created in setupHostInterface)
	Logger.Debug("Registering train and journey handlers with dispatcher")
	handlerService.RegisterHandlers(eventDispatcher)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Train and journey handlers registered with dispatcher")

	workerManager.Start()

	monitorService = monitor.NewService(monitor.Dependencies{
		Fleet:     fleet,
		Journeys:  journeys,
		Queues:    workerManager,
		Logger:    Logger,
		Writers:   performanceWriters(),
		StatusDir: ModuleFolder,
		Interval:  config.GetDuration("monitor.interval"),
	})
	monitorService.RegisterHandlers(eventDispatcher)

	if !monitorService.IsRunning() {
		Logger.Debug("Status process not running, starting it")
		monitorService.Start()
	}

	if err := initStorage(storageCfg); err != nil {
		SlogManager.WriteLog(functionName, fmt.Sprintf("Storage initialization failed: %v", err), "ERROR")
	}

	SlogManager.WriteLog(functionName, "Goroutines started successfully", "INFO")
	return nil
}

// initStorage opens the storage backend and, when it is not the storage
// backend itself, the influx manager used for performance snapshots.
func initStorage(storageCfg config.StorageConfig) error {
	if err := storageBackend.Init(); err != nil {
		_ = hostabi.WriteCallback(ExtensionName, ":STORAGE:ERROR:", err.Error())
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}

	if influxManager != nil && storageCfg.Type != "influx" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := influxManager.Connect(ctx); err != nil {
			Logger.Warn("Influx unavailable, performance snapshots disabled", "error", err)
		}
	}

	if err := hostabi.WriteCallback(ExtensionName, ":STORAGE:OK:", storageCfg.Type); err != nil {
		Logger.Debug("Failed to send STORAGE:OK callback", "error", err)
	}
	Logger.Info("Storage initialized", "type", storageCfg.Type)
	return nil
}

// performanceWriters collects every sink for monitor snapshots.
func performanceWriters() []monitor.PerformanceWriter {
	var out []monitor.PerformanceWriter
	if w, ok := storageBackend.(monitor.PerformanceWriter); ok {
		out = append(out, w)
	}
	if influxManager != nil {
		out = append(out, influxManager)
	}
	return out
}

// shutdown closes the open journey and releases every service. The host
// calls it once before unloading the library.
func shutdown() error {
	var errs []error

	if monitorService != nil {
		monitorService.Stop()
	}
	if workerManager != nil {
		if journeys.Current() != nil {
			if _, err := workerManager.EndJourney(); err != nil {
				errs = append(errs, fmt.Errorf("ending journey: %w", err))
			}
		}
		workerManager.Stop()
	}
	if recorder != nil {
		recorder.Detach()
	}
	if fleet != nil {
		if err := fleet.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	if influxManager != nil && config.GetStorageConfig().Type != "influx" {
		if err := influxManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influx: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush OTel logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if graylogWriter != nil {
		_ = graylogWriter.Close()
	}
	return errors.Join(errs...)
}

func checkServerStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiClient.Healthcheck(ctx); err != nil {
		Logger.Info("Journey server is offline", "error", err)
	} else {
		Logger.Info("Journey server is online")
	}
}

// dispatchDemoEvent dispatches an event through the dispatcher for demo/test purposes
func dispatchDemoEvent(command string, args []string) (any, error) {
	if eventDispatcher == nil {
		return nil, errors.New("dispatcher not initialized")
	}
	return eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
}
