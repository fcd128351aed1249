package types

import (
	"time"
)

// Credentials is the username/password pair used to obtain a session token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ResourceSummary is the short form of a resource listed under a virtual
// entity.
type ResourceSummary struct {
	ResourceID     string `json:"resourceId"`
	ResourceTypeID string `json:"resourceTypeId"`
	Name           string `json:"name"`
}

// VirtualEntity is a site or account that groups one or more metering
// resources.
type VirtualEntity struct {
	ID        string            `json:"veId"`
	Name      string            `json:"name"`
	Resources []ResourceSummary `json:"resources"`
}

// ResourceTypeInfo describes the unit and fuel of a resource's data source.
type ResourceTypeInfo struct {
	Unit string `json:"unit"`
	// Type is GAS or ELEC
	Type string `json:"type"`
}

// Resource is a single meter-derived data stream, either consumption or cost.
type Resource struct {
	ResourceID         string           `json:"resourceId"`
	ResourceTypeID     string           `json:"resourceTypeId"`
	OwnerID            string           `json:"ownerId"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Label              string           `json:"label"`
	Active             bool             `json:"active"`
	Classifier         Classifier       `json:"classifier"`
	BaseUnit           string           `json:"baseUnit"`
	DataSourceType     string           `json:"dataSourceType"`
	DataSourceTypeInfo ResourceTypeInfo `json:"dataSourceResourceTypeInfo"`
	DataSourceUnitInfo map[string]any   `json:"dataSourceUnitInfo"`
	CreatedAt          string           `json:"createdAt"`
	UpdatedAt          string           `json:"updatedAt"`
}

// ReadingPoint is one (timestamp, value) pair of a reading.
type ReadingPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Reading is the ordered points returned for a requested window.
type Reading struct {
	Points []ReadingPoint `json:"points"`
}

// Sum returns the total of every point in the reading.
func (r Reading) Sum() float64 {
	var v float64
	for _, p := range r.Points {
		v += p.Value
	}
	return v
}

// TariffRates holds the current tariff in minor units (pence). Rate is per
// kWh and StandingCharge is per day.
type TariffRates struct {
	Rate           float64 `json:"rate"`
	StandingCharge float64 `json:"standingCharge"`
}
