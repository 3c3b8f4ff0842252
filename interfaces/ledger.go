package interfaces

import (
	"context"
	"time"
)

// LedgerTransaction is an application call as reported by an indexer.
type LedgerTransaction struct {
	ID     string
	Sender Address
	Round  uint64
	// IntraRoundOffset is the position of the transaction within its round.
	IntraRoundOffset uint64
	Timestamp        time.Time
	ApplicationID    ApplicationID
	// Args are the raw application arguments: the method selector followed
	// by the encoded positional arguments.
	Args [][]byte
}

// TransactionPage is one page of an indexer search. An empty NextToken marks
// the last page.
type TransactionPage struct {
	Transactions []LedgerTransaction
	NextToken    string
}

// Indexer searches historical transactions addressed to an application.
// Implementations must return transactions in ledger order (round, then
// intra-round offset) and be safe for concurrent use.
type Indexer interface {
	SearchApplicationTransactions(ctx context.Context, app ApplicationID, limit int, nextToken string) (*TransactionPage, error)
}

// ApplicationCall is an operation encoded for submission.
type ApplicationCall struct {
	Sender Address
	Args   [][]byte
}

// Submission describes an application call accepted by the ledger.
type Submission struct {
	TxID        string
	Round       uint64
	Timestamp   time.Time
	ReturnValue string
}

// Submitter appends application calls to the ledger.
type Submitter interface {
	Submit(ctx context.Context, call ApplicationCall) (*Submission, error)
}
