package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/glowmeter/pkg/glowmarkt/glowmarktmock"
	"github.com/raterudder/glowmeter/pkg/schedule"
	"github.com/raterudder/glowmeter/pkg/types"
)

func homeResources() []types.Resource {
	return []types.Resource{
		{ResourceID: "e-cost", Classifier: types.ClassifierElectricityConsumptionCost},
		{ResourceID: "e-use", Classifier: types.ClassifierElectricityConsumption},
		{ResourceID: "export", Classifier: "electricity.export"},
		{ResourceID: "g-use", Classifier: types.ClassifierGasConsumption},
		{ResourceID: "g-cost", Classifier: types.ClassifierGasConsumptionCost},
	}
}

func sensorIDs(p *Platform) []string {
	var ids []string
	for _, s := range p.Sensors() {
		ids = append(ids, s.ID())
	}
	return ids
}

func TestSetup(t *testing.T) {
	api := new(glowmarktmock.MockAPI)
	api.On("ListVirtualEntities", mock.Anything).Return([]types.VirtualEntity{
		{ID: "ve-1", Name: "Home"},
		{ID: "ve-2", Name: "Garage"},
	}, nil)
	api.On("ListResources", mock.Anything, "ve-1").Return(homeResources(), nil)
	// the garage only has a cost stream and no meter for it
	api.On("ListResources", mock.Anything, "ve-2").Return([]types.Resource{
		{ResourceID: "orphan-cost", Classifier: types.ClassifierGasConsumptionCost},
	}, nil)

	p, err := Setup(context.Background(), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"e-use", "e-use-tariff", "e-use-rate",
		"g-use", "g-use-tariff", "g-use-rate",
		"e-cost", "g-cost",
	}, sensorIDs(p))
	require.Len(t, p.Coordinators(), 2)
	assert.Equal(t, "e-use", p.Coordinators()[0].ResourceID())
	assert.Equal(t, "g-use", p.Coordinators()[1].ResourceID())

	cost, ok := p.Sensor("e-cost")
	require.True(t, ok)
	assert.Equal(t, Device{
		ID:           "e-use",
		Name:         "Home smart electricity meter",
		Manufacturer: "Hildebrand",
		Model:        "Glow (DCC)",
	}, cost.State().Device)

	gasCost, ok := p.Sensor("g-cost")
	require.True(t, ok)
	assert.Equal(t, "g-use", gasCost.State().Device.ID)
	assert.Equal(t, "Home smart gas meter", gasCost.State().Device.Name)

	rate, ok := p.Sensor("g-use-rate")
	require.True(t, ok)
	assert.Equal(t, "g-use", rate.State().Device.ID)

	_, ok = p.Sensor("orphan-cost")
	assert.False(t, ok)
	_, ok = p.Sensor("export")
	assert.False(t, ok)
	api.AssertExpectations(t)
}

func TestSetupErrors(t *testing.T) {
	t.Run("virtual entities", func(t *testing.T) {
		api := new(glowmarktmock.MockAPI)
		api.On("ListVirtualEntities", mock.Anything).Return(nil, errors.New("boom"))
		_, err := Setup(context.Background(), api, Options{})
		assert.Error(t, err)
	})

	t.Run("resources", func(t *testing.T) {
		api := new(glowmarktmock.MockAPI)
		api.On("ListVirtualEntities", mock.Anything).Return([]types.VirtualEntity{{ID: "ve-1"}}, nil)
		api.On("ListResources", mock.Anything, "ve-1").Return(nil, errors.New("boom"))
		_, err := Setup(context.Background(), api, Options{})
		assert.ErrorContains(t, err, "ve-1")
	})

	t.Run("zero policy", func(t *testing.T) {
		api := new(glowmarktmock.MockAPI)
		_, err := Setup(context.Background(), api, Options{ZeroPolicy: "maybe"})
		assert.Error(t, err)
		api.AssertNotCalled(t, "ListVirtualEntities", mock.Anything)
	})

	t.Run("no entities", func(t *testing.T) {
		api := new(glowmarktmock.MockAPI)
		api.On("ListVirtualEntities", mock.Anything).Return([]types.VirtualEntity{}, nil)
		p, err := Setup(context.Background(), api, Options{})
		require.NoError(t, err)
		assert.Empty(t, p.Sensors())
		assert.Empty(t, p.States())
	})
}

func TestPlatformRefresh(t *testing.T) {
	loc := london(t)
	now := time.Date(2026, 3, 10, 14, 37, 0, 0, loc)

	api := new(glowmarktmock.MockAPI)
	api.On("ListVirtualEntities", mock.Anything).Return([]types.VirtualEntity{{ID: "ve-1", Name: "Home"}}, nil)
	api.On("ListResources", mock.Anything, "ve-1").Return(homeResources(), nil)
	api.On("Catchup", mock.Anything, mock.Anything).Return(nil)
	api.On("GetReading", mock.Anything, "e-use", mock.Anything, mock.Anything, types.PeriodDaily).Return(reading(4.5), nil)
	api.On("GetReading", mock.Anything, "g-use", mock.Anything, mock.Anything, types.PeriodDaily).Return(reading(10), nil)
	api.On("GetReading", mock.Anything, "e-cost", mock.Anything, mock.Anything, types.PeriodDaily).Return(reading(110), nil)
	api.On("GetReading", mock.Anything, "g-cost", mock.Anything, mock.Anything, types.PeriodDaily).Return(reading(65), nil)
	api.On("GetTariff", mock.Anything, "e-use").Return(types.TariffRates{Rate: 24.5, StandingCharge: 60}, nil)
	api.On("GetTariff", mock.Anything, "g-use").Return(types.TariffRates{Rate: 6.5, StandingCharge: 30}, nil)

	p, err := Setup(context.Background(), api, Options{
		Clock:       schedule.FixedClock(now),
		Location:    loc,
		Concurrency: 2,
	})
	require.NoError(t, err)
	p.Refresh(context.Background())

	want := map[string]float64{
		"e-use":        4.5,
		"e-use-rate":   0.245,
		"e-use-tariff": 0.6,
		"g-use":        10,
		"g-use-rate":   0.065,
		"g-use-tariff": 0.3,
		"e-cost":       1.1,
		"g-cost":       0.65,
	}
	for _, st := range p.States() {
		require.NotNil(t, st.Value, st.UniqueID)
		assert.InDelta(t, want[st.UniqueID], *st.Value, 1e-9, st.UniqueID)
	}

	// a tick outside the gate fetches nothing
	calls := len(api.Calls)
	p.Refresh(context.Background())
	assert.Len(t, api.Calls, calls)
}
