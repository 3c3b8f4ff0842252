package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/txcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClient_Register(t *testing.T) {
	submitter := &MockSubmitter{}
	client := NewClient(submitter, "https://lora.algokit.io/testnet/", slog.New(slog.NewTextHandler(io.Discard, nil)))

	expectedArgs, err := txcodec.Encode(interfaces.RegisterOp("12D12345"))
	require.NoError(t, err)

	ts := time.Unix(1_700_000_000, 0).UTC()
	submitter.On("Submit", mock.Anything, interfaces.ApplicationCall{Sender: ownerA, Args: expectedArgs}).
		Return(&interfaces.Submission{TxID: "TXID1", Round: 42, Timestamp: ts}, nil)

	receipt, err := client.Register(context.Background(), "12D12345", ownerA)
	require.NoError(t, err)
	assert.Equal(t, "TXID1", receipt.TxID)
	assert.Equal(t, uint64(42), receipt.Round)
	assert.Equal(t, ts, receipt.Timestamp)
	assert.Equal(t, "https://lora.algokit.io/testnet/transaction/TXID1", receipt.ExplorerURL)
	assert.Equal(t, "Vehicle 12D12345 registered successfully to AAAAOWNER", receipt.Message)
	submitter.AssertExpectations(t)
}

func TestClient_PrefersReturnValue(t *testing.T) {
	submitter := &MockSubmitter{}
	client := NewClient(submitter, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	submitter.On("Submit", mock.Anything, mock.Anything).
		Return(&interfaces.Submission{TxID: "TXID2", ReturnValue: InfoString}, nil)

	receipt, err := client.GetInfo(context.Background(), ownerA)
	require.NoError(t, err)
	assert.Equal(t, InfoString, receipt.Info)
	assert.Equal(t, InfoString, receipt.Message)
	assert.Empty(t, receipt.ExplorerURL)
}

func TestClient_Errors(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no submitter", func(t *testing.T) {
		_, err := NewClient(nil, "", log).Register(context.Background(), "AB1", ownerA)
		assert.ErrorIs(t, err, ErrNoSubmitter)
	})

	t.Run("invalid input is not submitted", func(t *testing.T) {
		submitter := &MockSubmitter{}
		_, err := NewClient(submitter, "", log).Transfer(context.Background(), "AB1", "", ownerA)
		assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("registry errors pass through", func(t *testing.T) {
		submitter := &MockSubmitter{}
		rejected := interfaces.NewRegistryError(interfaces.KindNotOwner, interfaces.OpTransfer, "AB1", ownerB, "Only owner can transfer AB1")
		submitter.On("Submit", mock.Anything, mock.Anything).Return(nil, rejected)

		_, err := NewClient(submitter, "", log).Transfer(context.Background(), "AB1", ownerC, ownerB)
		assert.ErrorIs(t, err, interfaces.ErrNotOwner)
	})

	t.Run("transport errors become submission failures", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := NewClient(submitter, "", log).Register(context.Background(), "AB1", ownerA)
		assert.ErrorIs(t, err, interfaces.ErrSubmissionFailed)
		assert.ErrorContains(t, err, "connection refused")
		assert.True(t, interfaces.KindOf(err).Retryable())
	})
}
