// Package ledgercommon opens the ledger backend selected on the command line
// and wires the registry client, record reader and history service on top of
// it. It is shared by the server and the CLI.
package ledgercommon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/indexer"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/ledger"
	"github.com/ruteri/vehicle-registry/metrics"
	"github.com/ruteri/vehicle-registry/registry"
	"github.com/ruteri/vehicle-registry/signer"
)

const (
	ModeDevnet   = "devnet"
	ModeAlgorand = "algorand"
)

var LedgerModeFlag = &cli.StringFlag{
	Name:    "ledger",
	Value:   ModeDevnet,
	Usage:   "ledger backend: 'devnet' (in-process) or 'algorand'",
	EnvVars: []string{"VEHICLE_REGISTRY_LEDGER"},
}
var DevnetDBFlag = &cli.StringFlag{
	Name:    "devnet-db",
	Usage:   "SQLite file persisting the devnet ledger, empty for in-memory",
	EnvVars: []string{"VEHICLE_REGISTRY_DEVNET_DB"},
}
var AppIDFlag = &cli.Uint64Flag{
	Name:    "app-id",
	Value:   1001,
	Usage:   "registry application id",
	EnvVars: []string{"VEHICLE_REGISTRY_APP_ID"},
}
var AlgodAddrFlag = &cli.StringFlag{
	Name:    "algod-addr",
	Value:   "http://127.0.0.1:4001",
	Usage:   "algod API address",
	EnvVars: []string{"VEHICLE_REGISTRY_ALGOD_ADDR"},
}
var AlgodTokenFlag = &cli.StringFlag{
	Name:    "algod-token",
	Usage:   "algod API token",
	EnvVars: []string{"VEHICLE_REGISTRY_ALGOD_TOKEN"},
}
var IndexerAddrFlag = &cli.StringFlag{
	Name:    "indexer-addr",
	Value:   "http://127.0.0.1:8980",
	Usage:   "indexer API address",
	EnvVars: []string{"VEHICLE_REGISTRY_INDEXER_ADDR"},
}
var IndexerTokenFlag = &cli.StringFlag{
	Name:    "indexer-token",
	Usage:   "indexer API token",
	EnvVars: []string{"VEHICLE_REGISTRY_INDEXER_TOKEN"},
}
var SignerMnemonicFlag = &cli.StringFlag{
	Name:    "signer-mnemonic",
	Usage:   "25-word mnemonic of the signing account",
	EnvVars: []string{"VEHICLE_REGISTRY_SIGNER_MNEMONIC"},
}
var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Usage:   "Vault address to read the signer mnemonic from",
	EnvVars: []string{"VEHICLE_REGISTRY_VAULT_ADDR"},
}
var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Usage:   "Vault token",
	EnvVars: []string{"VEHICLE_REGISTRY_VAULT_TOKEN"},
}
var VaultSecretPathFlag = &cli.StringFlag{
	Name:    "vault-secret-path",
	Value:   "secret/data/vehicle-registry/signer",
	Usage:   "KV v2 path of the secret holding the signer mnemonic",
	EnvVars: []string{"VEHICLE_REGISTRY_VAULT_SECRET_PATH"},
}
var ExplorerURLFlag = &cli.StringFlag{
	Name:    "explorer-url",
	Value:   "https://lora.algokit.io/testnet",
	Usage:   "block explorer base URL for transaction links, empty to disable",
	EnvVars: []string{"VEHICLE_REGISTRY_EXPLORER_URL"},
}
var HistoryPageSizeFlag = &cli.IntFlag{
	Name:    "history-page-size",
	Value:   history.DefaultPageSize,
	Usage:   "indexer page size for history scans",
	EnvVars: []string{"VEHICLE_REGISTRY_HISTORY_PAGE_SIZE"},
}
var HistoryTimeoutFlag = &cli.DurationFlag{
	Name:    "history-timeout",
	Value:   time.Minute,
	Usage:   "upper bound of one history reconstruction",
	EnvVars: []string{"VEHICLE_REGISTRY_HISTORY_TIMEOUT"},
}
var StaleFallbackFlag = &cli.BoolFlag{
	Name:    "history-stale-fallback",
	Value:   false,
	Usage:   "serve the last good history, flagged degraded, when the indexer fails",
	EnvVars: []string{"VEHICLE_REGISTRY_HISTORY_STALE_FALLBACK"},
}
var StaleTTLFlag = &cli.DurationFlag{
	Name:    "history-stale-ttl",
	Value:   time.Hour,
	Usage:   "how long a good history stays eligible as a stale fallback",
	EnvVars: []string{"VEHICLE_REGISTRY_HISTORY_STALE_TTL"},
}

var LedgerFlags = []cli.Flag{
	LedgerModeFlag,
	DevnetDBFlag,
	AppIDFlag,
	AlgodAddrFlag,
	AlgodTokenFlag,
	IndexerAddrFlag,
	IndexerTokenFlag,
	SignerMnemonicFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultSecretPathFlag,
	ExplorerURLFlag,
	HistoryPageSizeFlag,
	HistoryTimeoutFlag,
	StaleFallbackFlag,
	StaleTTLFlag,
}

// Ledger bundles the services built on the selected ledger backend.
type Ledger struct {
	Mode     string
	Registry interfaces.VehicleRegistry
	Records  interfaces.RecordReader
	History  interfaces.HistoryProvider
	// Local is the in-process ledger in devnet mode, nil otherwise.
	Local *ledger.Local

	closers []func() error
}

// Close releases the backend.
func (l *Ledger) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenLedger builds the ledger selected by the command line flags. m may be nil.
func OpenLedger(cCtx *cli.Context, m *metrics.Metrics, log *slog.Logger) (*Ledger, error) {
	ctx := cCtx.Context
	if ctx == nil {
		ctx = context.Background()
	}
	app := interfaces.ApplicationID(cCtx.Uint64(AppIDFlag.Name))
	explorerURL := cCtx.String(ExplorerURLFlag.Name)

	out := &Ledger{Mode: cCtx.String(LedgerModeFlag.Name)}
	var idx interfaces.Indexer

	switch out.Mode {
	case ModeDevnet:
		store, txlog, err := openDevnetStorage(ctx, cCtx.String(DevnetDBFlag.Name), log, out)
		if err != nil {
			return nil, err
		}
		local, err := ledger.NewLocal(ctx, app, store, txlog, log)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Local = local
		out.Registry = registry.NewClient(local, explorerURL, log)
		out.Records = local
		idx = local
		log.Info("Using devnet ledger",
			slog.Uint64("appID", uint64(app)),
			slog.Uint64("latestRound", local.LatestRound()))

	case ModeAlgorand:
		submitter, err := ledger.NewAlgodSubmitter(cCtx.String(AlgodAddrFlag.Name), cCtx.String(AlgodTokenFlag.Name), app, log)
		if err != nil {
			return nil, err
		}
		account, err := loadAccount(ctx, cCtx, log)
		if err != nil {
			return nil, err
		}
		submitter.SetAccount(account)

		indexerClient, err := indexer.NewClient(cCtx.String(IndexerAddrFlag.Name), cCtx.String(IndexerTokenFlag.Name), indexer.DefaultPageTimeout, log)
		if err != nil {
			return nil, err
		}
		out.Registry = registry.NewClient(submitter, explorerURL, log)
		idx = indexerClient
		log.Info("Using Algorand ledger",
			slog.Uint64("appID", uint64(app)),
			slog.String("sender", submitter.Sender().String()))

	default:
		return nil, fmt.Errorf("invalid ledger mode %q", out.Mode)
	}

	reconstructor := history.NewReconstructor(history.Config{
		ApplicationID: app,
		PageSize:      cCtx.Int(HistoryPageSizeFlag.Name),
		ExplorerURL:   explorerURL,
	}, idx, m, log)

	out.History = history.NewService(history.ServiceConfig{
		ScanTimeout:   cCtx.Duration(HistoryTimeoutFlag.Name),
		StaleFallback: cCtx.Bool(StaleFallbackFlag.Name),
		StaleTTL:      cCtx.Duration(StaleTTLFlag.Name),
	}, reconstructor, m, log)

	// Algorand state is read back from the reconstructed history.
	if out.Records == nil {
		out.Records = history.NewReplayReader(out.History, log)
	}
	return out, nil
}

func openDevnetStorage(ctx context.Context, path string, log *slog.Logger, out *Ledger) (interfaces.RecordStore, ledger.TransactionLog, error) {
	if path == "" {
		log.Warn("Devnet ledger is in memory and will not survive restarts")
		return registry.NewMemoryStore(), ledger.NewMemoryLog(), nil
	}
	db, err := ledger.OpenSQLiteStore(ctx, path, log)
	if err != nil {
		return nil, nil, err
	}
	out.closers = append(out.closers, db.Close)
	return db, db, nil
}

func loadAccount(ctx context.Context, cCtx *cli.Context, log *slog.Logger) (*crypto.Account, error) {
	if phrase := cCtx.String(SignerMnemonicFlag.Name); phrase != "" {
		return signer.FromMnemonic(phrase)
	}
	if addr := cCtx.String(VaultAddrFlag.Name); addr != "" {
		loader, err := signer.NewVaultLoader(signer.VaultConfig{
			Address:    addr,
			Token:      cCtx.String(VaultTokenFlag.Name),
			SecretPath: cCtx.String(VaultSecretPathFlag.Name),
		}, log)
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx)
	}
	return nil, ledger.ErrNoSigner
}
