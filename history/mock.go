package history

import (
	"context"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockHistoryProvider mocks the interfaces.HistoryProvider interface
type MockHistoryProvider struct {
	mock.Mock
}

// History mocks the History method
func (m *MockHistoryProvider) History(ctx context.Context, registration interfaces.Registration) (*interfaces.History, error) {
	args := m.Called(ctx, registration)
	history, _ := args.Get(0).(*interfaces.History)
	return history, args.Error(1)
}

// MockIndexer mocks the interfaces.Indexer interface
type MockIndexer struct {
	mock.Mock
}

// SearchApplicationTransactions mocks the SearchApplicationTransactions method
func (m *MockIndexer) SearchApplicationTransactions(ctx context.Context, app interfaces.ApplicationID, limit int, nextToken string) (*interfaces.TransactionPage, error) {
	args := m.Called(ctx, app, limit, nextToken)
	page, _ := args.Get(0).(*interfaces.TransactionPage)
	return page, args.Error(1)
}
