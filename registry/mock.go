package registry

import (
	"context"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockSubmitter mocks the interfaces.Submitter interface
type MockSubmitter struct {
	mock.Mock
}

// Submit mocks the Submit method
func (m *MockSubmitter) Submit(ctx context.Context, call interfaces.ApplicationCall) (*interfaces.Submission, error) {
	args := m.Called(ctx, call)
	submission, _ := args.Get(0).(*interfaces.Submission)
	return submission, args.Error(1)
}

// MockRecordStore mocks the interfaces.RecordStore interface
type MockRecordStore struct {
	mock.Mock
}

// Get mocks the Get method
func (m *MockRecordStore) Get(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	args := m.Called(ctx, registration)
	record, _ := args.Get(0).(*interfaces.VehicleRecord)
	return record, args.Error(1)
}

// Put mocks the Put method
func (m *MockRecordStore) Put(ctx context.Context, record *interfaces.VehicleRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
