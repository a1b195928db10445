package mocks

import (
	"context"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) RunRounds(ctx context.Context, initial fl.GlobalState, numRounds uint64, workers []fl.WorkerHandle, metricKey string) (fl.Selection, error) {
	args := m.Called(ctx, initial, numRounds, workers, metricKey)

	return args.Get(0).(fl.Selection), args.Error(1)
}

func (m *MockService) Rounds(ctx context.Context, offset, limit uint64) (coordinator.RoundPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.RoundPage), args.Error(1)
}

func (m *MockService) Round(ctx context.Context, round uint64) (fl.RoundRecord, error) {
	args := m.Called(ctx, round)

	return args.Get(0).(fl.RoundRecord), args.Error(1)
}

func (m *MockService) Best(ctx context.Context) (fl.RoundRecord, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.RoundRecord), args.Error(1)
}
