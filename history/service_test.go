package history

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type blockingProvider struct {
	calls   atomic.Int32
	release chan struct{}
	history *interfaces.History
}

func (b *blockingProvider) History(ctx context.Context, registration interfaces.Registration) (*interfaces.History, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return b.history, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sampleHistory() *interfaces.History {
	return &interfaces.History{
		Registration: "AB1",
		Events: []interfaces.HistoryEvent{
			{ID: "T1:registerVehicle", Type: interfaces.EventRegister, TransactionID: "T1", Round: 1},
		},
		ScannedTransactions: 1,
		LatestRound:         1,
	}
}

func TestService_CoalescesConcurrentRequests(t *testing.T) {
	source := &blockingProvider{release: make(chan struct{}), history: sampleHistory()}
	svc := NewService(ServiceConfig{}, source, nil, testLogger())

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*interfaces.History, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := svc.History(context.Background(), "ab-1")
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
	for _, h := range results {
		require.NotNil(t, h)
		assert.Equal(t, sampleHistory().Events, h.Events)
	}
	// Each caller owns its copy.
	results[0].Events[0].ID = "mutated"
	assert.Equal(t, "T1:registerVehicle", results[1].Events[0].ID)
}

func TestService_StaleFallback(t *testing.T) {
	unavailable := &interfaces.RegistryError{
		Kind:         interfaces.KindHistorySourceUnavailable,
		Op:           interfaces.OpHistory,
		Registration: "AB1",
		Reason:       "history source unavailable",
	}

	t.Run("disabled returns the error", func(t *testing.T) {
		source := &MockHistoryProvider{}
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(sampleHistory(), nil).Once()
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(nil, unavailable).Once()
		svc := NewService(ServiceConfig{}, source, nil, testLogger())

		_, err := svc.History(context.Background(), "AB1")
		require.NoError(t, err)
		_, err = svc.History(context.Background(), "AB1")
		assert.ErrorIs(t, err, interfaces.ErrHistorySourceUnavailable)
	})

	t.Run("enabled serves flagged stale data", func(t *testing.T) {
		source := &MockHistoryProvider{}
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(sampleHistory(), nil).Once()
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(nil, unavailable).Once()
		svc := NewService(ServiceConfig{StaleFallback: true, StaleTTL: time.Minute}, source, nil, testLogger())

		fresh, err := svc.History(context.Background(), "AB1")
		require.NoError(t, err)
		assert.False(t, fresh.Degraded)

		stale, err := svc.History(context.Background(), "AB1")
		require.NoError(t, err)
		assert.True(t, stale.Degraded)
		assert.Contains(t, stale.DegradedReason, "history source unavailable")
		assert.Equal(t, fresh.Events, stale.Events)
	})

	t.Run("enabled without a previous result returns the error", func(t *testing.T) {
		source := &MockHistoryProvider{}
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(nil, unavailable)
		svc := NewService(ServiceConfig{StaleFallback: true}, source, nil, testLogger())

		_, err := svc.History(context.Background(), "AB1")
		assert.ErrorIs(t, err, interfaces.ErrHistorySourceUnavailable)
	})

	t.Run("other errors never fall back", func(t *testing.T) {
		invalid := interfaces.NewRegistryError(interfaces.KindInvalidInput, interfaces.OpHistory, "AB1", "", "bad")
		source := &MockHistoryProvider{}
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(sampleHistory(), nil).Once()
		source.On("History", mock.Anything, interfaces.Registration("AB1")).Return(nil, invalid).Once()
		svc := NewService(ServiceConfig{StaleFallback: true}, source, nil, testLogger())

		_, err := svc.History(context.Background(), "AB1")
		require.NoError(t, err)
		_, err = svc.History(context.Background(), "AB1")
		assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
	})
}

func TestService_CallerCancellation(t *testing.T) {
	source := &blockingProvider{release: make(chan struct{}), history: sampleHistory()}
	defer close(source.release)
	svc := NewService(ServiceConfig{}, source, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.History(ctx, "AB1")
	assert.ErrorIs(t, err, interfaces.ErrHistorySourceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
