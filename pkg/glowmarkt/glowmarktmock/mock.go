package glowmarktmock

import (
	"context"
	"time"

	"github.com/raterudder/glowmeter/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockAPI stands in for a connected glowmarkt.Client.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListVirtualEntities(ctx context.Context) ([]types.VirtualEntity, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		ves, _ := args.Get(0).([]types.VirtualEntity)
		return ves, args.Error(1)
	}
	return nil, nil
}

func (m *MockAPI) ListResources(ctx context.Context, veID string) ([]types.Resource, error) {
	args := m.Called(ctx, veID)
	if len(args) > 0 {
		resources, _ := args.Get(0).([]types.Resource)
		return resources, args.Error(1)
	}
	return nil, nil
}

func (m *MockAPI) Catchup(ctx context.Context, resourceID string) error {
	args := m.Called(ctx, resourceID)
	return args.Error(0)
}

func (m *MockAPI) GetReading(ctx context.Context, resourceID string, from, to time.Time, period types.Period) (types.Reading, error) {
	args := m.Called(ctx, resourceID, from, to, period)
	if len(args) > 0 {
		return args.Get(0).(types.Reading), args.Error(1)
	}
	return types.Reading{}, nil
}

func (m *MockAPI) GetTariff(ctx context.Context, resourceID string) (types.TariffRates, error) {
	args := m.Called(ctx, resourceID)
	if len(args) > 0 {
		return args.Get(0).(types.TariffRates), args.Error(1)
	}
	return types.TariffRates{}, nil
}

func (m *MockAPI) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAPI) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockAPI) Location() *time.Location {
	args := m.Called()
	if len(args) > 0 {
		loc, _ := args.Get(0).(*time.Location)
		return loc
	}
	return nil
}
