// Package indexer adapts the Algorand indexer REST API to interfaces.Indexer.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/ruteri/vehicle-registry/interfaces"
)

// DefaultPageTimeout bounds a single page request.
const DefaultPageTimeout = 15 * time.Second

// Client searches application call transactions through an Algorand indexer.
type Client struct {
	client      *indexer.Client
	pageTimeout time.Duration
	log         *slog.Logger
}

// NewClient creates a client for the indexer at address.
func NewClient(address, token string, pageTimeout time.Duration, log *slog.Logger) (*Client, error) {
	client, err := indexer.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("creating indexer client: %w", err)
	}
	if pageTimeout <= 0 {
		pageTimeout = DefaultPageTimeout
	}
	return &Client{client: client, pageTimeout: pageTimeout, log: log}, nil
}

// SearchApplicationTransactions returns one page of application calls to app.
func (c *Client) SearchApplicationTransactions(ctx context.Context, app interfaces.ApplicationID, limit int, nextToken string) (*interfaces.TransactionPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	query := c.client.SearchForTransactions().
		ApplicationId(uint64(app)).
		TxType("appl")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if nextToken != "" {
		query = query.NextToken(nextToken)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("searching transactions of application %d: %w", app, err)
	}

	page := &interfaces.TransactionPage{
		Transactions: make([]interfaces.LedgerTransaction, 0, len(resp.Transactions)),
	}
	for _, tx := range resp.Transactions {
		page.Transactions = append(page.Transactions, convertTransaction(tx))
	}
	// The indexer keeps returning a token after the last page; an empty page
	// is the real end.
	if len(resp.Transactions) > 0 {
		page.NextToken = resp.NextToken
	}

	c.log.Debug("Fetched indexer page",
		slog.Uint64("appID", uint64(app)),
		slog.Int("transactions", len(page.Transactions)),
		slog.Bool("more", page.NextToken != ""))
	return page, nil
}

// Healthy reports whether the indexer answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()
	_, err := c.client.HealthCheck().Do(ctx)
	return err
}

func convertTransaction(tx models.Transaction) interfaces.LedgerTransaction {
	return interfaces.LedgerTransaction{
		ID:               tx.Id,
		Sender:           interfaces.Address(tx.Sender),
		Round:            tx.ConfirmedRound,
		IntraRoundOffset: tx.IntraRoundOffset,
		Timestamp:        time.Unix(int64(tx.RoundTime), 0).UTC(),
		ApplicationID:    interfaces.ApplicationID(tx.ApplicationTransaction.ApplicationId),
		Args:             tx.ApplicationTransaction.ApplicationArgs,
	}
}
