package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/vehicle-registry/interfaces"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	registration  TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	registered    INTEGER NOT NULL,
	service_count INTEGER NOT NULL DEFAULT 0,
	registered_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	sender    TEXT NOT NULL,
	round     INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	app_id    INTEGER NOT NULL,
	args      TEXT NOT NULL
);
`

// SQLiteStore persists devnet state. It implements interfaces.RecordStore,
// TransactionLog and Committer.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info("Opened devnet database", slog.String("path", path))
	return &SQLiteStore{db: db, log: log}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements interfaces.RecordStore.
func (s *SQLiteStore) Get(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner, registered, service_count, registered_at FROM vehicles WHERE registration = ?`,
		string(registration))

	var (
		owner        string
		registered   bool
		serviceCount int64
		registeredAt int64
	)
	if err := row.Scan(&owner, &registered, &serviceCount, &registeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying vehicle %s: %w", registration, err)
	}

	return &interfaces.VehicleRecord{
		Registration: registration,
		Owner:        interfaces.Address(owner),
		Registered:   registered,
		ServiceCount: uint64(serviceCount),
		RegisteredAt: time.Unix(registeredAt, 0).UTC(),
	}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Put implements interfaces.RecordStore.
func (s *SQLiteStore) Put(ctx context.Context, record *interfaces.VehicleRecord) error {
	return putVehicle(ctx, s.db, record)
}

// Append implements TransactionLog.
func (s *SQLiteStore) Append(ctx context.Context, tx interfaces.LedgerTransaction) error {
	return appendTransaction(ctx, s.db, tx)
}

// Commit implements Committer: the record upsert and the transaction insert
// land in one database transaction. A nil record only appends.
func (s *SQLiteStore) Commit(ctx context.Context, record *interfaces.VehicleRecord, tx interfaces.LedgerTransaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit of %s: %w", tx.ID, err)
	}
	defer dbTx.Rollback()

	if record != nil {
		if err := putVehicle(ctx, dbTx, record); err != nil {
			return err
		}
	}
	if err := appendTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", tx.ID, err)
	}
	return nil
}

func putVehicle(ctx context.Context, ex execer, record *interfaces.VehicleRecord) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO vehicles (registration, owner, registered, service_count, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(registration) DO UPDATE SET
			owner = excluded.owner,
			registered = excluded.registered,
			service_count = excluded.service_count,
			registered_at = excluded.registered_at`,
		string(record.Registration),
		string(record.Owner),
		record.Registered,
		int64(record.ServiceCount),
		record.RegisteredAt.Unix())
	if err != nil {
		return fmt.Errorf("storing vehicle %s: %w", record.Registration, err)
	}
	return nil
}

func appendTransaction(ctx context.Context, ex execer, tx interfaces.LedgerTransaction) error {
	args := make([]hexutil.Bytes, len(tx.Args))
	for i, arg := range tx.Args {
		args[i] = arg
	}
	encodedArgs, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding args of %s: %w", tx.ID, err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO transactions (id, sender, round, timestamp, app_id, args) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Sender), int64(tx.Round), tx.Timestamp.Unix(), int64(tx.ApplicationID), string(encodedArgs))
	if err != nil {
		return fmt.Errorf("appending transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Range implements TransactionLog.
func (s *SQLiteStore) Range(ctx context.Context, offset, limit int) ([]interfaces.LedgerTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, round, timestamp, app_id, args FROM transactions ORDER BY seq LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []interfaces.LedgerTransaction
	for rows.Next() {
		var (
			tx          interfaces.LedgerTransaction
			sender      string
			round       int64
			timestamp   int64
			appID       int64
			encodedArgs string
		)
		if err := rows.Scan(&tx.ID, &sender, &round, &timestamp, &appID, &encodedArgs); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		var args []hexutil.Bytes
		if err := json.Unmarshal([]byte(encodedArgs), &args); err != nil {
			return nil, fmt.Errorf("decoding args of %s: %w", tx.ID, err)
		}
		tx.Args = make([][]byte, len(args))
		for i, arg := range args {
			tx.Args[i] = arg
		}
		tx.Sender = interfaces.Address(sender)
		tx.Round = uint64(round)
		tx.Timestamp = time.Unix(timestamp, 0).UTC()
		tx.ApplicationID = interfaces.ApplicationID(appID)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Len implements TransactionLog.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}
