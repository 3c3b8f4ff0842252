package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/txcodec"
)

// ErrNoSubmitter is returned when an operation is attempted on a client
// without a ledger submitter.
var ErrNoSubmitter = errors.New("no ledger submitter available")

// Client implements interfaces.VehicleRegistry by submitting encoded
// operations to a ledger.
type Client struct {
	submitter   interfaces.Submitter
	explorerURL string
	log         *slog.Logger
}

// NewClient creates a client submitting through submitter. explorerURL is the
// base of transaction links put on receipts; empty disables links.
func NewClient(submitter interfaces.Submitter, explorerURL string, log *slog.Logger) *Client {
	return &Client{
		submitter:   submitter,
		explorerURL: strings.TrimSuffix(explorerURL, "/"),
		log:         log,
	}
}

// Register submits a registerVehicle call.
func (c *Client) Register(ctx context.Context, registration interfaces.Registration, caller interfaces.Address) (*interfaces.Receipt, error) {
	op := interfaces.RegisterOp(registration)
	op.Caller = caller
	return c.submit(ctx, op)
}

// Transfer submits a transferOwnership call.
func (c *Client) Transfer(ctx context.Context, registration interfaces.Registration, newOwner interfaces.Address, caller interfaces.Address) (*interfaces.Receipt, error) {
	op := interfaces.TransferOp(registration, newOwner)
	op.Caller = caller
	return c.submit(ctx, op)
}

// AddServiceRecord submits an addServiceRecord call.
func (c *Client) AddServiceRecord(ctx context.Context, registration interfaces.Registration, serviceDetails string, caller interfaces.Address) (*interfaces.Receipt, error) {
	op := interfaces.AddServiceOp(registration, serviceDetails)
	op.Caller = caller
	return c.submit(ctx, op)
}

// GetInfo submits a getInfo call and returns the program's version string.
func (c *Client) GetInfo(ctx context.Context, caller interfaces.Address) (*interfaces.Receipt, error) {
	op := interfaces.GetInfoOp()
	op.Caller = caller
	return c.submit(ctx, op)
}

// ExplorerURL returns the explorer link for a transaction id.
func (c *Client) ExplorerURL(txID string) string {
	return TransactionURL(c.explorerURL, txID)
}

// TransactionURL joins an explorer base URL and a transaction id.
func TransactionURL(base, txID string) string {
	if base == "" || txID == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/transaction/" + txID
}

func (c *Client) submit(ctx context.Context, op interfaces.Operation) (*interfaces.Receipt, error) {
	if c.submitter == nil {
		return nil, ErrNoSubmitter
	}

	args, err := txcodec.Encode(op)
	if err != nil {
		return nil, errInvalidInput(op.Kind, op.Registration, op.Caller, err)
	}

	submission, err := c.submitter.Submit(ctx, interfaces.ApplicationCall{Sender: op.Caller, Args: args})
	if err != nil {
		c.log.Warn("Registry operation rejected",
			slog.String("op", string(op.Kind)),
			slog.String("registration", op.Registration.String()),
			"err", err)

		var regErr *interfaces.RegistryError
		if errors.As(err, &regErr) {
			return nil, err
		}
		return nil, &interfaces.RegistryError{
			Kind:         interfaces.KindSubmissionFailed,
			Op:           op.Kind,
			Registration: op.Registration,
			Caller:       op.Caller,
			Reason:       fmt.Sprintf("submitting %s", op.Kind),
			Err:          err,
		}
	}

	receipt := &interfaces.Receipt{
		Op:             op.Kind,
		Registration:   op.Registration,
		Caller:         op.Caller,
		ServiceDetails: op.ServiceDetails,
		TxID:           submission.TxID,
		Round:          submission.Round,
		Timestamp:      submission.Timestamp,
		ExplorerURL:    c.ExplorerURL(submission.TxID),
		ReturnValue:    submission.ReturnValue,
	}
	switch op.Kind {
	case interfaces.OpRegister:
		receipt.Owner = op.Caller
	case interfaces.OpTransfer:
		receipt.Owner = op.NewOwner
		receipt.PreviousOwner = op.Caller
	case interfaces.OpGetInfo:
		receipt.Info = submission.ReturnValue
	}

	receipt.Message = submission.ReturnValue
	if receipt.Message == "" {
		receipt.Message = RenderMessage(receipt)
	}

	c.log.Info("Registry operation confirmed",
		slog.String("op", string(op.Kind)),
		slog.String("registration", op.Registration.String()),
		slog.String("txID", submission.TxID),
		slog.Uint64("round", submission.Round))
	return receipt, nil
}
