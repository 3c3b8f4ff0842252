package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/txcodec"
)

// ConfirmationRounds is how many rounds a submission waits for confirmation.
const ConfirmationRounds = 4

// ErrNoSigner is returned when a submission is attempted without an account.
var ErrNoSigner = errors.New("no signing account available")

// AlgodSubmitter submits registry calls to an Algorand node.
type AlgodSubmitter struct {
	client  *algod.Client
	app     interfaces.ApplicationID
	account *crypto.Account
	now     func() time.Time
	log     *slog.Logger
}

// NewAlgodSubmitter connects to the algod REST API at address.
func NewAlgodSubmitter(address, token string, app interfaces.ApplicationID, log *slog.Logger) (*AlgodSubmitter, error) {
	client, err := algod.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("creating algod client: %w", err)
	}
	return &AlgodSubmitter{
		client: client,
		app:    app,
		now:    time.Now,
		log:    log,
	}, nil
}

// SetAccount sets the account used to sign every submission.
func (s *AlgodSubmitter) SetAccount(account *crypto.Account) {
	s.account = account
}

// Sender returns the signing address, or "" without an account.
func (s *AlgodSubmitter) Sender() interfaces.Address {
	if s.account == nil {
		return ""
	}
	return interfaces.Address(s.account.Address.String())
}

// Submit signs call as an application NoOp call, sends it and waits for
// confirmation. The sender must match the signing account.
func (s *AlgodSubmitter) Submit(ctx context.Context, call interfaces.ApplicationCall) (*interfaces.Submission, error) {
	if s.account == nil {
		return nil, ErrNoSigner
	}

	op := txcodec.Decode(interfaces.LedgerTransaction{Sender: call.Sender, Args: call.Args})
	if call.Sender != "" && call.Sender != s.Sender() {
		return nil, interfaces.NewRegistryError(interfaces.KindInvalidInput, op.Kind, op.Registration, call.Sender,
			"caller %s does not match signing account %s", call.Sender, s.Sender())
	}

	sp, err := s.client.SuggestedParams().Do(ctx)
	if err != nil {
		return nil, submissionError(op, call.Sender, "fetching suggested params", err)
	}

	tx, err := transaction.MakeApplicationNoOpTx(uint64(s.app), call.Args, nil, nil, nil, sp,
		s.account.Address, nil, types.Digest{}, [32]byte{}, types.Address{})
	if err != nil {
		return nil, interfaces.NewRegistryError(interfaces.KindInvalidInput, op.Kind, op.Registration, call.Sender,
			"building application call: %v", err)
	}

	txID, signed, err := crypto.SignTransaction(s.account.PrivateKey, tx)
	if err != nil {
		return nil, submissionError(op, call.Sender, "signing transaction", err)
	}

	if _, err := s.client.SendRawTransaction(signed).Do(ctx); err != nil {
		return nil, MapAlgodError(op, call.Sender, err)
	}
	s.log.Debug("Submitted application call",
		slog.String("txID", txID),
		slog.String("method", op.Method))

	confirmed, err := transaction.WaitForConfirmation(s.client, txID, ConfirmationRounds, ctx)
	if err != nil {
		return nil, MapAlgodError(op, call.Sender, err)
	}

	returnValue, err := txcodec.DecodeReturn(confirmed.Logs)
	if err != nil {
		s.log.Debug("No return value in confirmed transaction", slog.String("txID", txID), "err", err)
	}

	return &interfaces.Submission{
		TxID:        txID,
		Round:       confirmed.ConfirmedRound,
		Timestamp:   s.now().UTC(),
		ReturnValue: returnValue,
	}, nil
}

var assertionKinds = []struct {
	fragment string
	kind     interfaces.ErrorKind
}{
	{"already registered", interfaces.KindAlreadyRegistered},
	{"not found", interfaces.KindNotFound},
	{"only owner", interfaces.KindNotOwner},
}

// MapAlgodError classifies a node rejection by the program's assertion
// message. Anything unrecognized is a submission failure.
func MapAlgodError(op interfaces.Operation, caller interfaces.Address, err error) error {
	msg := strings.ToLower(err.Error())
	for _, a := range assertionKinds {
		if strings.Contains(msg, a.fragment) {
			return &interfaces.RegistryError{
				Kind:         a.kind,
				Op:           op.Kind,
				Registration: op.Registration,
				Caller:       caller,
				Reason:       fmt.Sprintf("%s rejected by registry program", op.Kind),
				Err:          err,
			}
		}
	}
	return submissionError(op, caller, "submitting transaction", err)
}

func submissionError(op interfaces.Operation, caller interfaces.Address, reason string, err error) error {
	return &interfaces.RegistryError{
		Kind:         interfaces.KindSubmissionFailed,
		Op:           op.Kind,
		Registration: op.Registration,
		Caller:       caller,
		Reason:       reason,
		Err:          err,
	}
}
