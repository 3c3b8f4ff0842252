package interfaces

import (
	"context"
	"errors"
)

// ErrVehicleNotFound is returned by a VehicleLookup for unknown registrations.
var ErrVehicleNotFound = errors.New("vehicle not found")

// VehicleData is static descriptive data about a vehicle from an external
// lookup service. It is never written to the registry.
type VehicleData struct {
	Registration Registration `json:"registration"`
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	Year         int          `json:"year"`
	Colour       string       `json:"colour,omitempty"`
	FuelType     string       `json:"fuel_type,omitempty"`
	EngineSize   string       `json:"engine_size,omitempty"`
	Vin          string       `json:"vin,omitempty"`
}

// VehicleLookup resolves static vehicle data by registration.
type VehicleLookup interface {
	Lookup(ctx context.Context, registration Registration) (*VehicleData, error)
}

// ServiceTypes is the catalogue of well-known service descriptions offered to
// clients. Free-form service details are accepted as well.
var ServiceTypes = []string{
	"oil-change",
	"tire-rotation",
	"brake-service",
	"general-maintenance",
	"major-service",
}
