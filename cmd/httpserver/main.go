package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/vehicle-registry/cmd/flags"
	"github.com/ruteri/vehicle-registry/cmd/ledgercommon"
	"github.com/ruteri/vehicle-registry/common"
	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/httpserver"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
	"github.com/ruteri/vehicle-registry/storage"
	"github.com/ruteri/vehicle-registry/vehicleapi"
)

func main() {
	var appFlags []cli.Flag
	appFlags = append(appFlags, flags.LogFlags...)
	appFlags = append(appFlags, flags.ServerFlags...)
	appFlags = append(appFlags, ledgercommon.LedgerFlags...)

	app := &cli.App{
		Name:    "vehicle-registry-server",
		Usage:   "Serve the vehicle registry API",
		Version: common.Version,
		Flags:   appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.NewMetrics(common.MetricsNamespace, reg)

			backend, err := ledgercommon.OpenLedger(cCtx, m, logger)
			if err != nil {
				logger.Error("Failed to open ledger", "err", err)
				return err
			}
			defer backend.Close()

			handlerCfg := httpserver.HandlerConfig{
				Registry: backend.Registry,
				Records:  backend.Records,
				History:  backend.History,
				Metrics:  m,
			}

			if locations := cCtx.StringSlice(flags.SnapshotStorageFlag.Name); len(locations) > 0 {
				uris := make([]interfaces.StorageBackendLocation, 0, len(locations))
				for _, loc := range locations {
					uris = append(uris, interfaces.StorageBackendLocation(loc))
				}
				snapshotBackend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(uris)
				if err != nil {
					logger.Error("Failed to create snapshot storage", "err", err)
					return err
				}
				handlerCfg.Archive = history.NewArchive(snapshotBackend, logger)
				logger.Info("History snapshots enabled", "location", snapshotBackend.LocationURI())
			}

			if baseURL := cCtx.String(flags.VehicleAPIFlag.Name); baseURL != "" {
				lookup, err := vehicleapi.NewClient(vehicleapi.Config{
					BaseURL:  baseURL,
					CacheTTL: cCtx.Duration(flags.VehicleAPICacheTTLFlag.Name),
				}, nil, m, logger)
				if err != nil {
					logger.Error("Failed to create vehicle API client", "err", err)
					return err
				}
				handlerCfg.Lookup = lookup
			}

			cfg := flags.ConfigureServer(cCtx, logger)
			cfg.Gatherer = reg

			server, err := httpserver.New(cfg, httpserver.NewHandler(handlerCfg, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "ledger", backend.Mode)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
