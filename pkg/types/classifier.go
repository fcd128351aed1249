package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownClassifier is returned when a classifier doesn't belong to a known
// supply.
var ErrUnknownClassifier = errors.New("unknown classifier")

// Classifier identifies the semantic role of a resource.
type Classifier string

const (
	ClassifierElectricityConsumption     Classifier = "electricity.consumption"
	ClassifierGasConsumption             Classifier = "gas.consumption"
	ClassifierElectricityConsumptionCost Classifier = "electricity.consumption.cost"
	ClassifierGasConsumptionCost         Classifier = "gas.consumption.cost"
)

// IsConsumption reports whether the classifier is a usage stream that gets a
// usage sensor and tariff sensors.
func (c Classifier) IsConsumption() bool {
	return c == ClassifierElectricityConsumption || c == ClassifierGasConsumption
}

// IsCost reports whether the classifier is a cost stream.
func (c Classifier) IsCost() bool {
	return c == ClassifierElectricityConsumptionCost || c == ClassifierGasConsumptionCost
}

// ConsumptionClassifier returns the usage classifier a cost classifier is
// priced against.
func (c Classifier) ConsumptionClassifier() (Classifier, bool) {
	switch c {
	case ClassifierElectricityConsumptionCost:
		return ClassifierElectricityConsumption, true
	case ClassifierGasConsumptionCost:
		return ClassifierGasConsumption, true
	}
	return "", false
}

// SupplyType is the fuel a resource meters.
type SupplyType string

const (
	SupplyElectricity SupplyType = "electricity"
	SupplyGas         SupplyType = "gas"
)

// SupplyType returns the supply for the classifier. Any classifier containing
// "electricity.consumption" or "gas.consumption" matches.
func (c Classifier) SupplyType() (SupplyType, error) {
	s := string(c)
	if strings.Contains(s, string(ClassifierElectricityConsumption)) {
		return SupplyElectricity, nil
	}
	if strings.Contains(s, string(ClassifierGasConsumption)) {
		return SupplyGas, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClassifier, s)
}
