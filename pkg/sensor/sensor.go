package sensor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/raterudder/glowmeter/pkg/types"
)

const (
	manufacturer = "Hildebrand"
	model        = "Glow (DCC)"
)

// DeviceClass describes what a sensor's value measures.
type DeviceClass string

const (
	DeviceClassNone     DeviceClass = ""
	DeviceClassEnergy   DeviceClass = "energy"
	DeviceClassMonetary DeviceClass = "monetary"
)

// StateClass describes how a sensor's value evolves.
type StateClass string

const (
	StateClassNone StateClass = ""
	// StateClassTotal values accumulate from LastReset.
	StateClassTotal StateClass = "total"
)

// Device groups sensors that belong to the same physical meter.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// State is the externally visible reading of a sensor.
type State struct {
	UniqueID         string      `json:"uniqueId"`
	Name             string      `json:"name"`
	Device           Device      `json:"device"`
	Value            *float64    `json:"value"`
	Unit             string      `json:"unit"`
	DeviceClass      DeviceClass `json:"deviceClass,omitempty"`
	StateClass       StateClass  `json:"stateClass,omitempty"`
	Icon             string      `json:"icon,omitempty"`
	EnabledByDefault bool        `json:"enabledByDefault"`
	LastReset        time.Time   `json:"lastReset,omitzero"`
	UpdatedAt        time.Time   `json:"updatedAt,omitzero"`
}

// Sensor is a single value exposed to the host.
type Sensor interface {
	// ID returns the unique id of the sensor.
	ID() string

	// Update refreshes the sensor if a refresh is due. Failures are logged and
	// leave the previous value in place.
	Update(ctx context.Context)

	// State returns a snapshot of the sensor.
	State() State
}

// ZeroPolicy decides what a daily total of exactly zero means.
type ZeroPolicy string

const (
	// ZeroIsValue displays a zero total like any other value.
	ZeroIsValue ZeroPolicy = "value"
	// ZeroIsNoData treats a zero total as "no new data" and keeps the
	// previously displayed value.
	ZeroIsNoData ZeroPolicy = "no-data"
)

// Validate returns an error for an unknown policy.
func (p ZeroPolicy) Validate() error {
	switch p {
	case ZeroIsValue, ZeroIsNoData:
		return nil
	}
	return fmt.Errorf("unknown zero policy: %q", string(p))
}

// DeviceName returns the display name of the meter a resource belongs to.
func DeviceName(ve types.VirtualEntity, r types.Resource) (string, error) {
	supply, err := r.Classifier.SupplyType()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s smart %s meter", ve.Name, supply), nil
}

func newDevice(ve types.VirtualEntity, r types.Resource, deviceID string) (Device, error) {
	name, err := DeviceName(ve, r)
	if err != nil {
		return Device{}, err
	}
	return Device{
		ID:           deviceID,
		Name:         name,
		Manufacturer: manufacturer,
		Model:        model,
	}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
