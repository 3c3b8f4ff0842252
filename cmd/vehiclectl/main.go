package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/vehicle-registry/api/clients"
	"github.com/ruteri/vehicle-registry/cmd/flags"
	"github.com/ruteri/vehicle-registry/cmd/ledgercommon"
	"github.com/ruteri/vehicle-registry/common"
	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/ledger"
	"github.com/ruteri/vehicle-registry/storage"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server",
	Usage:   "registry server address; when empty the ledger flags are used directly",
	EnvVars: []string{"VEHICLE_REGISTRY_SERVER"},
}
var flagCaller = &cli.StringFlag{
	Name:    "caller",
	Usage:   "address the operation is submitted as",
	EnvVars: []string{"VEHICLE_REGISTRY_CALLER"},
}
var flagFollow = &cli.BoolFlag{
	Name:  "follow",
	Usage: "keep polling and print new events as they appear",
}
var flagInterval = &cli.DurationFlag{
	Name:  "interval",
	Value: 5 * time.Second,
	Usage: "poll interval with --follow",
}
var flagExport = &cli.StringFlag{
	Name:  "export",
	Usage: "archive the history snapshot to this storage URI (file://, s3://, ipfs://)",
}

// session is the registry as seen by one command invocation.
type session struct {
	registry interfaces.VehicleRegistry
	records  interfaces.RecordReader
	history  interfaces.HistoryProvider
	local    *ledger.Local
	log      *slog.Logger
	close    func() error
}

func openSession(cCtx *cli.Context) (*session, error) {
	logger := flags.SetupLogger(cCtx)

	if addr := cCtx.String(flagServerAddr.Name); addr != "" {
		client := clients.NewRegistryClient(addr, nil)
		return &session{
			registry: client,
			records:  client,
			history:  client,
			log:      logger,
			close:    func() error { return nil },
		}, nil
	}

	backend, err := ledgercommon.OpenLedger(cCtx, nil, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		registry: backend.Registry,
		records:  backend.Records,
		history:  backend.History,
		local:    backend.Local,
		log:      logger,
		close:    backend.Close,
	}, nil
}

// withSession runs fn against a session and prints its result envelope.
func withSession(fn func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error)) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		s, err := openSession(cCtx)
		if err != nil {
			return err
		}
		defer s.close()

		data, message, err := fn(cCtx.Context, s, cCtx)
		if err != nil {
			printResult(interfaces.ErrResult(err))
			return cli.Exit("", 1)
		}
		printResult(interfaces.OkResult(data, message))
		return nil
	}
}

func printResult(result interfaces.Result) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(out))
}

func argRegistration(cCtx *cli.Context) (interfaces.Registration, error) {
	if cCtx.NArg() < 1 {
		return "", errors.New("registration argument is required")
	}
	return interfaces.NewRegistration(cCtx.Args().First())
}

func argAt(cCtx *cli.Context, i int, name string) (string, error) {
	if cCtx.NArg() <= i {
		return "", fmt.Errorf("%s argument is required", name)
	}
	return cCtx.Args().Get(i), nil
}

func caller(cCtx *cli.Context) interfaces.Address {
	return interfaces.Address(cCtx.String(flagCaller.Name))
}

func receiptResult(receipt *interfaces.Receipt, err error) (any, string, error) {
	if err != nil {
		return nil, "", err
	}
	return receipt, receipt.Message, nil
}

func main() {
	var globalFlags []cli.Flag
	globalFlags = append(globalFlags, flagServerAddr, flagCaller)
	globalFlags = append(globalFlags, flags.LogFlags...)
	globalFlags = append(globalFlags, ledgercommon.LedgerFlags...)

	app := &cli.App{
		Name:    "vehiclectl",
		Usage:   "Register, transfer and service vehicles and inspect their history",
		Version: common.Version,
		Flags:   globalFlags,
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "register a vehicle to the caller",
				ArgsUsage: "<registration>",
				Action: withSession(func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error) {
					reg, err := argRegistration(cCtx)
					if err != nil {
						return nil, "", err
					}
					return receiptResult(s.registry.Register(ctx, reg, caller(cCtx)))
				}),
			},
			{
				Name:      "transfer",
				Usage:     "transfer ownership of a vehicle",
				ArgsUsage: "<registration> <new-owner>",
				Action: withSession(func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error) {
					reg, err := argRegistration(cCtx)
					if err != nil {
						return nil, "", err
					}
					newOwner, err := argAt(cCtx, 1, "new owner")
					if err != nil {
						return nil, "", err
					}
					return receiptResult(s.registry.Transfer(ctx, reg, interfaces.Address(newOwner), caller(cCtx)))
				}),
			},
			{
				Name:      "service",
				Usage:     "add a service record, e.g. " + fmt.Sprint(interfaces.ServiceTypes),
				ArgsUsage: "<registration> <service-details>",
				Action: withSession(func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error) {
					reg, err := argRegistration(cCtx)
					if err != nil {
						return nil, "", err
					}
					details, err := argAt(cCtx, 1, "service details")
					if err != nil {
						return nil, "", err
					}
					return receiptResult(s.registry.AddServiceRecord(ctx, reg, details, caller(cCtx)))
				}),
			},
			{
				Name:  "info",
				Usage: "print the registry program version",
				Action: withSession(func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error) {
					return receiptResult(s.registry.GetInfo(ctx, caller(cCtx)))
				}),
			},
			{
				Name:      "show",
				Usage:     "print the current record of a vehicle",
				ArgsUsage: "<registration>",
				Action: withSession(func(ctx context.Context, s *session, cCtx *cli.Context) (any, string, error) {
					reg, err := argRegistration(cCtx)
					if err != nil {
						return nil, "", err
					}
					record, err := s.records.Record(ctx, reg)
					return record, "", err
				}),
			},
			{
				Name:      "history",
				Usage:     "reconstruct the history of a vehicle",
				ArgsUsage: "<registration>",
				Flags:     []cli.Flag{flagFollow, flagInterval, flagExport},
				Action:    runHistory,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runHistory(cCtx *cli.Context) error {
	reg, err := argRegistration(cCtx)
	if err != nil {
		printResult(interfaces.ErrResult(err))
		return cli.Exit("", 1)
	}

	s, err := openSession(cCtx)
	if err != nil {
		return err
	}
	defer s.close()

	if !cCtx.Bool(flagFollow.Name) {
		hist, err := s.history.History(cCtx.Context, reg)
		if err != nil {
			printResult(interfaces.ErrResult(err))
			return cli.Exit("", 1)
		}
		if uri := cCtx.String(flagExport.Name); uri != "" {
			id, err := exportSnapshot(cCtx.Context, uri, hist, s.log)
			if err != nil {
				printResult(interfaces.ErrResult(err))
				return cli.Exit("", 1)
			}
			s.log.Info("Exported history snapshot", "contentID", id.String())
		}
		printResult(interfaces.OkResult(hist, fmt.Sprintf("%d events for %s", len(hist.Events), hist.Registration)))
		return nil
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := history.NewWatcher(s.history, cCtx.Duration(flagInterval.Name), s.log)
	snapshots := make(chan history.Snapshot, 16)
	sub := watcher.Subscribe(snapshots)
	defer sub.Unsubscribe()

	// An in-process ledger announces new transactions; poll right away.
	if s.local != nil {
		txs := make(chan interfaces.LedgerTransaction, 16)
		txSub := s.local.SubscribeTransactions(txs)
		defer txSub.Unsubscribe()
		go func() {
			for {
				select {
				case <-txs:
					watcher.Notify()
				case <-txSub.Err():
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx, reg) }()

	for {
		select {
		case snap := <-snapshots:
			printResult(interfaces.OkResult(snap.NewEvents, fmt.Sprintf("%d new events for %s at round %d",
				len(snap.NewEvents), snap.History.Registration, snap.History.LatestRound)))
			if uri := cCtx.String(flagExport.Name); uri != "" {
				if _, err := exportSnapshot(ctx, uri, snap.History, s.log); err != nil {
					s.log.Warn("Failed to export history snapshot", "err", err)
				}
			}
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func exportSnapshot(ctx context.Context, uri string, hist *interfaces.History, log *slog.Logger) (interfaces.ContentID, error) {
	backend, err := storage.NewStorageBackendFactory(log).StorageBackendFor(interfaces.StorageBackendLocation(uri))
	if err != nil {
		return interfaces.ContentID{}, err
	}
	return history.NewArchive(backend, log).Store(ctx, hist)
}
